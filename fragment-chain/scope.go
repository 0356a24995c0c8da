// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package fragmentchain

import (
	inclusionemulator "github.com/ChainSafe/prospective-parachains/inclusion-emulator"
	"github.com/ChainSafe/prospective-parachains/lib/common"
	parachaintypes "github.com/ChainSafe/prospective-parachains/types"
	"github.com/tidwall/btree"
)

// PendingAvailability is a candidate on-chain but pending availability,
// for special treatment in the Scope
type PendingAvailability struct {
	CandidateHash parachaintypes.CandidateHash
	RelayParent   inclusionemulator.RelayChainBlockInfo
}

// Scope is the admissibility window of a fragment chain for one
// relay-chain leaf. Immutable once constructed.
type Scope struct {
	// the parachain the scope refers to
	paraID parachaintypes.ParaID
	// the relay parent we're currently building on top of
	relayParent inclusionemulator.RelayChainBlockInfo
	// the other relay parents candidates are allowed to build upon,
	// mapped by the block number
	ancestors *btree.Map[uint, inclusionemulator.RelayChainBlockInfo]
	// the other relay parents candidates are allowed to build upon,
	// mapped by hash
	ancestorsByHash map[common.Hash]inclusionemulator.RelayChainBlockInfo
	// candidates pending availability at this block
	pendingAvailability []*PendingAvailability
	// the base constraints derived from the latest included candidate
	baseConstraints *inclusionemulator.Constraints
	// equal to the maximum candidate depth
	maxDepth uint
}

// NewScopeWithAncestors defines a new scope. Ancestors must be supplied
// in strictly descending, contiguous block-number order, starting with
// the parent of the relay parent. Ancestors not following these
// conditions are rejected with ErrUnexpectedAncestor.
//
// Ancestors are only consumed up to the MinRelayParentNumber of the base
// constraints; it is allowed to provide no ancestors at all.
func NewScopeWithAncestors(
	paraID parachaintypes.ParaID,
	relayParent inclusionemulator.RelayChainBlockInfo,
	baseConstraints *inclusionemulator.Constraints,
	pendingAvailability []*PendingAvailability,
	maxDepth uint,
	ancestors []inclusionemulator.RelayChainBlockInfo,
) (*Scope, error) {
	ancestorsMap := btree.NewMap[uint, inclusionemulator.RelayChainBlockInfo](16)
	ancestorsByHash := make(map[common.Hash]inclusionemulator.RelayChainBlockInfo)

	prev := relayParent.Number
	for _, ancestor := range ancestors {
		if prev == 0 {
			return nil, ErrUnexpectedAncestor{Number: ancestor.Number, Prev: prev}
		}

		if ancestor.Number != prev-1 {
			return nil, ErrUnexpectedAncestor{Number: ancestor.Number, Prev: prev}
		}

		if prev == baseConstraints.MinRelayParentNumber {
			break
		}

		prev = ancestor.Number
		ancestorsByHash[ancestor.Hash] = ancestor
		ancestorsMap.Set(ancestor.Number, ancestor)
	}

	return &Scope{
		paraID:              paraID,
		relayParent:         relayParent,
		ancestors:           ancestorsMap,
		ancestorsByHash:     ancestorsByHash,
		pendingAvailability: pendingAvailability,
		baseConstraints:     baseConstraints,
		maxDepth:            maxDepth,
	}, nil
}

// ParaID returns the parachain the scope refers to
func (s *Scope) ParaID() parachaintypes.ParaID {
	return s.paraID
}

// RelayParent returns the relay parent the scope is built on
func (s *Scope) RelayParent() inclusionemulator.RelayChainBlockInfo {
	return s.relayParent
}

// MaxDepth returns the maximum candidate depth of the scope
func (s *Scope) MaxDepth() uint {
	return s.maxDepth
}

// BaseConstraints returns the constraints derived from the latest
// included candidate
func (s *Scope) BaseConstraints() *inclusionemulator.Constraints {
	return s.baseConstraints
}

// EarliestRelayParent gets the earliest relay parent allowed in the
// scope: the oldest retained ancestor, or the relay parent itself if
// there are none.
func (s *Scope) EarliestRelayParent() inclusionemulator.RelayChainBlockInfo {
	if iter := s.ancestors.Iter(); iter.First() {
		return iter.Value()
	}
	return s.relayParent
}

// Ancestor resolves a relay-chain block hash within the scope. The relay
// parent itself is part of the scope.
func (s *Scope) Ancestor(hash common.Hash) *inclusionemulator.RelayChainBlockInfo {
	if hash == s.relayParent.Hash {
		relayParent := s.relayParent
		return &relayParent
	}

	if blockInfo, ok := s.ancestorsByHash[hash]; ok {
		return &blockInfo
	}

	return nil
}

// GetPendingAvailability returns the pending availability entry for the
// candidate, or nil if the candidate is not pending availability in
// this scope.
func (s *Scope) GetPendingAvailability(
	candidateHash parachaintypes.CandidateHash) *PendingAvailability {
	for _, pending := range s.pendingAvailability {
		if pending.CandidateHash == candidateHash {
			return pending
		}
	}
	return nil
}
