// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package common

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// HashLength is the expected length of the common.Hash type
const HashLength = 32

// EmptyHash is the all-zero hash
var EmptyHash = Hash{}

// Hash is used to store a blake2b hash
type Hash [HashLength]byte

// NewHash casts a byte slice to a Hash.
// If the input is longer than 32 bytes, it takes the first 32 bytes.
func NewHash(in []byte) (res Hash) {
	copy(res[:], in)
	return res
}

// BytesToHash sets the last bytes of the input to the hash, left-padding
// with zeroes if the input is shorter than 32 bytes.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// ToBytes turns a hash to a byte slice
func (h Hash) ToBytes() []byte {
	b := [HashLength]byte(h)
	return b[:]
}

// IsEmpty returns true if the hash is all zeroes
func (h Hash) IsEmpty() bool {
	return h == EmptyHash
}

// String returns the hex string for the hash, prefixed with 0x
func (h Hash) String() string {
	return fmt.Sprintf("0x%x", h[:])
}

// Short returns the first 4 bytes and last 4 bytes of the hex string for the hash
func (h Hash) Short() string {
	const nBytes = 4
	return fmt.Sprintf("0x%x...%x", h[:nBytes], h[len(h)-nBytes:])
}

// HexToHash turns a 0x prefixed hex string into a Hash
func HexToHash(in string) (Hash, error) {
	if !strings.HasPrefix(in, "0x") {
		return Hash{}, fmt.Errorf("%w: %s", ErrNoPrefix, in)
	}
	in = strings.TrimPrefix(in, "0x")
	if len(in)%2 != 0 {
		in = "0" + in
	}
	out, err := hex.DecodeString(in)
	if err != nil {
		return Hash{}, err
	}
	if len(out) != HashLength {
		return Hash{}, fmt.Errorf("%w: got %d bytes", ErrHashLength, len(out))
	}
	var h Hash
	copy(h[:], out)
	return h, nil
}

// MustHexToHash turns a 0x prefixed hex string into a Hash.
// It panics if the string cannot be decoded, and is meant for tests
// and hardcoded values only.
func MustHexToHash(in string) Hash {
	h, err := HexToHash(in)
	if err != nil {
		panic(err)
	}
	return h
}
