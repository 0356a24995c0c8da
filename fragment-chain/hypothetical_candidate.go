// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package fragmentchain

import (
	"fmt"

	"github.com/ChainSafe/prospective-parachains/lib/common"
	parachaintypes "github.com/ChainSafe/prospective-parachains/types"
)

// HypotheticalCandidate represents a candidate to be evaluated for
// membership in the fragment chain, built by the caller from whichever
// information it currently has about the candidate.
//
// Hypothetical candidates are either complete or incomplete. A complete
// candidate carries the full receipt and persisted validation data, an
// incomplete one is only described by its relay parent and the head data
// it builds on.
type HypotheticalCandidate interface {
	isHypotheticalCandidate()

	// RelayParent returns the hash of the relay-chain block the
	// candidate is built against
	RelayParent() common.Hash
	// ParentHeadDataHash returns the hash of the head data the
	// candidate builds on
	ParentHeadDataHash() (common.Hash, error)
	// OutputHeadDataHash returns the hash of the head data the
	// candidate outputs, or nil when unknown
	OutputHeadDataHash() (*common.Hash, error)
}

// HypotheticalCandidateComplete is a candidate whose receipt and
// persisted validation data are fully known
type HypotheticalCandidateComplete struct {
	Receipt                 parachaintypes.CommittedCandidateReceipt
	PersistedValidationData parachaintypes.PersistedValidationData
}

func (HypotheticalCandidateComplete) isHypotheticalCandidate() {}

// RelayParent returns the relay parent recorded in the candidate descriptor
func (h HypotheticalCandidateComplete) RelayParent() common.Hash {
	return h.Receipt.Descriptor.RelayParent
}

// ParentHeadDataHash returns the hash of the parent head data carried in
// the persisted validation data
func (h HypotheticalCandidateComplete) ParentHeadDataHash() (common.Hash, error) {
	hash, err := h.PersistedValidationData.ParentHead.Hash()
	if err != nil {
		return common.EmptyHash, fmt.Errorf("hashing parent head data: %w", err)
	}
	return hash, nil
}

// OutputHeadDataHash returns the hash of the head data committed by
// the candidate
func (h HypotheticalCandidateComplete) OutputHeadDataHash() (*common.Hash, error) {
	hash, err := h.Receipt.Commitments.HeadData.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing output head data: %w", err)
	}
	return &hash, nil
}

// HypotheticalCandidateIncomplete is a candidate whose receipt has not
// been fetched yet; only its relay parent and the head data it builds
// on are known.
type HypotheticalCandidateIncomplete struct {
	CandidateRelayParent common.Hash
	ParentHeadHash common.Hash
}

func (HypotheticalCandidateIncomplete) isHypotheticalCandidate() {}

// RelayParent returns the relay parent the candidate is claimed to be
// built against
func (h HypotheticalCandidateIncomplete) RelayParent() common.Hash {
	return h.CandidateRelayParent
}

// ParentHeadDataHash returns the hash of the head data the candidate is
// claimed to build on
func (h HypotheticalCandidateIncomplete) ParentHeadDataHash() (common.Hash, error) {
	return h.ParentHeadHash, nil
}

// OutputHeadDataHash returns nil: the output of an incomplete candidate
// is unknown
func (h HypotheticalCandidateIncomplete) OutputHeadDataHash() (*common.Hash, error) {
	return nil, nil
}
