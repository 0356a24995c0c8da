// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package parachaintypes holds the primitive types shared by the
// prospective-parachains packages: candidate receipts, commitments,
// head data and persisted validation data.
package parachaintypes

import (
	"bytes"
	"fmt"

	"github.com/ChainSafe/prospective-parachains/lib/common"
	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// ParaID is the numeric identifier of a parachain
type ParaID uint32

// UpwardMessage is a message from a parachain to its relay chain
type UpwardMessage []byte

// OutboundHrmpMessage is an HRMP message seen from the perspective of its sender
type OutboundHrmpMessage struct {
	Recipient uint32
	Data      []byte
}

// ValidationCode is parachain validation code
type ValidationCode []byte

// ValidationCodeHash makes it easy to enforce that a hash is a
// validation code hash on the type level
type ValidationCodeHash common.Hash

func (v ValidationCodeHash) String() string {
	return common.Hash(v).String()
}

// CollatorID is the public key of a collator
type CollatorID [32]byte

// CollatorSignature is the signature of a collator on a candidate descriptor
type CollatorSignature [64]byte

// CandidateHash makes it easy to enforce that a hash is a candidate
// hash on the type level
type CandidateHash struct {
	Value common.Hash
}

func (c CandidateHash) String() string {
	return c.Value.String()
}

// HeadData is parachain head data included in the chain
type HeadData struct {
	Data []byte
}

// Hash returns the blake2b hash of the SCALE encoded head data
func (h HeadData) Hash() (common.Hash, error) {
	return scaleHash(h)
}

// Equal tells whether the head data is equal to other
func (h HeadData) Equal(other HeadData) bool {
	return bytes.Equal(h.Data, other.Data)
}

// CandidateCommitments are the commitments of a candidate to the relay chain
type CandidateCommitments struct {
	// Messages destined to be interpreted by the relay chain itself
	UpwardMessages []UpwardMessage
	// Horizontal messages sent by the parachain
	HorizontalMessages []OutboundHrmpMessage
	// New validation code, if any
	NewValidationCode *ValidationCode
	// The head data produced as a result of execution
	HeadData HeadData
	// The number of messages processed from the DMQ
	ProcessedDownwardMessages uint32
	// The mark up to which all inbound HRMP messages are processed
	HrmpWatermark uint32
}

func (cc CandidateCommitments) encode(enc *scale.Encoder) error {
	if err := enc.Encode(cc.UpwardMessages); err != nil {
		return fmt.Errorf("encoding upward messages: %w", err)
	}
	if err := enc.Encode(cc.HorizontalMessages); err != nil {
		return fmt.Errorf("encoding horizontal messages: %w", err)
	}
	var newCode ValidationCode
	if cc.NewValidationCode != nil {
		newCode = *cc.NewValidationCode
	}
	if err := enc.EncodeOption(cc.NewValidationCode != nil, newCode); err != nil {
		return fmt.Errorf("encoding new validation code: %w", err)
	}
	if err := enc.Encode(cc.HeadData); err != nil {
		return fmt.Errorf("encoding head data: %w", err)
	}
	if err := enc.Encode(cc.ProcessedDownwardMessages); err != nil {
		return fmt.Errorf("encoding processed downward messages: %w", err)
	}
	if err := enc.Encode(cc.HrmpWatermark); err != nil {
		return fmt.Errorf("encoding hrmp watermark: %w", err)
	}
	return nil
}

// CandidateDescriptor is a unique descriptor of a candidate receipt
type CandidateDescriptor struct {
	ParaID                      ParaID
	RelayParent                 common.Hash
	Collator                    CollatorID
	PersistedValidationDataHash common.Hash
	PovHash                     common.Hash
	ErasureRoot                 common.Hash
	Signature                   CollatorSignature
	ParaHead                    common.Hash
	ValidationCodeHash          ValidationCodeHash
}

// CommittedCandidateReceipt is a candidate receipt along with the
// commitments it makes
type CommittedCandidateReceipt struct {
	Descriptor  CandidateDescriptor
	Commitments CandidateCommitments
}

// Hash returns the blake2b hash of the SCALE encoded receipt
func (c CommittedCandidateReceipt) Hash() (CandidateHash, error) {
	var buf bytes.Buffer
	enc := scale.NewEncoder(&buf)
	if err := enc.Encode(c.Descriptor); err != nil {
		return CandidateHash{}, fmt.Errorf("encoding descriptor: %w", err)
	}
	if err := c.Commitments.encode(enc); err != nil {
		return CandidateHash{}, fmt.Errorf("encoding commitments: %w", err)
	}
	hash, err := common.Blake2bHash(buf.Bytes())
	if err != nil {
		return CandidateHash{}, err
	}
	return CandidateHash{Value: hash}, nil
}

// PersistedValidationData provides information about how to create the
// inputs for the validation of a candidate. This information is derived
// from the parachain state and will vary from parachain to parachain.
type PersistedValidationData struct {
	ParentHead             HeadData
	RelayParentNumber      uint32
	RelayParentStorageRoot common.Hash
	MaxPovSize             uint32
}

// Hash returns the blake2b hash of the SCALE encoded validation data
func (p PersistedValidationData) Hash() (common.Hash, error) {
	return scaleHash(p)
}

// Equal tells whether the validation data is equal to other
func (p PersistedValidationData) Equal(other PersistedValidationData) bool {
	return p.ParentHead.Equal(other.ParentHead) &&
		p.RelayParentNumber == other.RelayParentNumber &&
		p.RelayParentStorageRoot == other.RelayParentStorageRoot &&
		p.MaxPovSize == other.MaxPovSize
}

// UpgradeRestriction is a possible restriction that prevents a parachain
// from performing an upgrade
type UpgradeRestriction interface {
	isUpgradeRestriction()
}

var _ UpgradeRestriction = (*Present)(nil)

// Present means there is an upgrade restriction and there are no details
// about its specifics
type Present struct{}

func (*Present) isUpgradeRestriction() {}

func scaleHash(value interface{}) (common.Hash, error) {
	var buf bytes.Buffer
	if err := scale.NewEncoder(&buf).Encode(value); err != nil {
		return common.Hash{}, fmt.Errorf("scale encoding: %w", err)
	}
	return common.Blake2bHash(buf.Bytes())
}
