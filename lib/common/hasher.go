// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package common

import (
	"errors"

	"golang.org/x/crypto/blake2b"
)

var (
	// ErrNoPrefix is returned when a hex string is missing its 0x prefix
	ErrNoPrefix = errors.New("could not byteify non 0x prefixed string")
	// ErrHashLength is returned when a decoded hash is not 32 bytes
	ErrHashLength = errors.New("invalid hash length")
)

// Blake2bHash returns the 256-bit blake2b hash of the input data
func Blake2bHash(in []byte) (Hash, error) {
	h, err := blake2b.New256(nil)
	if err != nil {
		return Hash{}, err
	}

	_, err = h.Write(in)
	if err != nil {
		return Hash{}, err
	}

	return NewHash(h.Sum(nil)), nil
}

// MustBlake2bHash returns the 256-bit blake2b hash of the input data,
// panicking on error. blake2b only fails on invalid key sizes, which
// cannot happen here.
func MustBlake2bHash(in []byte) Hash {
	h, err := Blake2bHash(in)
	if err != nil {
		panic(err)
	}
	return h
}
