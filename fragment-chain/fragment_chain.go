// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package fragmentchain

import (
	"bytes"
	"fmt"
	"sort"

	log "github.com/ChainSafe/log15"
	inclusionemulator "github.com/ChainSafe/prospective-parachains/inclusion-emulator"
	"github.com/ChainSafe/prospective-parachains/lib/common"
	parachaintypes "github.com/ChainSafe/prospective-parachains/types"
)

// FragmentNode is one candidate occupying one position (depth) in the
// chain. It holds the externally validated fragment and the cumulative
// constraint modifications from the chain root through this node.
type FragmentNode struct {
	fragment                *inclusionemulator.Fragment
	candidateHash           parachaintypes.CandidateHash
	parentHeadDataHash      common.Hash
	outputHeadDataHash      common.Hash
	cumulativeModifications *inclusionemulator.ConstraintModifications
}

func (f *FragmentNode) relayParent() common.Hash {
	return f.fragment.RelayParent().Hash
}

// FragmentChain is the single linear sequence of candidates from a
// CandidateStorage that is consistent with a Scope. The chain is a dense
// append-only slice whose position is the depth; it never shrinks except
// by being rebuilt.
//
// The chain never owns or mutates storage: it holds a reference only for
// the duration of a single call and otherwise stores hashes and derived
// constraint deltas.
type FragmentChain struct {
	scope *Scope
	chain []*FragmentNode

	// chain-local indexes, restricted to the candidates in the chain
	candidates   map[parachaintypes.CandidateHash]struct{}
	byParentHead map[common.Hash]parachaintypes.CandidateHash
	byOutputHead map[common.Hash]parachaintypes.CandidateHash

	logger log.Logger
}

// NewFragmentChain creates a chain under the given scope and populates it
// from the storage. A nil logger falls back to a package-scoped default.
func NewFragmentChain(
	scope *Scope,
	storage *CandidateStorage,
	logger log.Logger,
) *FragmentChain {
	if logger == nil {
		logger = log.New("pkg", "fragmentchain")
	}

	fragmentChain := &FragmentChain{
		scope:        scope,
		chain:        nil,
		candidates:   make(map[parachaintypes.CandidateHash]struct{}),
		byParentHead: make(map[common.Hash]parachaintypes.CandidateHash),
		byOutputHead: make(map[common.Hash]parachaintypes.CandidateHash),
		logger:       logger,
	}

	fragmentChain.populateChain(storage)
	return fragmentChain
}

// Repopulate extends the chain with any candidates introduced to the
// storage since the last population
func (fc *FragmentChain) Repopulate(storage *CandidateStorage) {
	fc.populateChain(storage)
}

// Scope returns the scope the chain was built under
func (fc *FragmentChain) Scope() *Scope {
	return fc.scope
}

// Len returns the number of candidates in the chain
func (fc *FragmentChain) Len() int {
	return len(fc.chain)
}

// Candidates returns the hashes of the chain's candidates, in depth order
func (fc *FragmentChain) Candidates() []parachaintypes.CandidateHash {
	hashes := make([]parachaintypes.CandidateHash, len(fc.chain))
	for i, node := range fc.chain {
		hashes[i] = node.candidateHash
	}
	return hashes
}

// ContainsCandidate returns whether the candidate occupies a position in
// the chain
func (fc *FragmentChain) ContainsCandidate(candidateHash parachaintypes.CandidateHash) bool {
	_, ok := fc.candidates[candidateHash]
	return ok
}

// earliestRelayParent is the earliest relay parent the next candidate may
// be anchored to: the relay parent of the last chain node, or the scope's
// earliest allowed relay parent for an empty chain.
func (fc *FragmentChain) earliestRelayParent() inclusionemulator.RelayChainBlockInfo {
	if len(fc.chain) == 0 {
		return fc.scope.EarliestRelayParent()
	}

	lastNode := fc.chain[len(fc.chain)-1]
	if blockInfo := fc.scope.Ancestor(lastNode.relayParent()); blockInfo != nil {
		return *blockInfo
	}

	pending := fc.scope.GetPendingAvailability(lastNode.candidateHash)
	if pending == nil {
		// a chain node's relay parent must resolve to either an in-scope
		// ancestor or a pending availability entry
		panic(fmt.Sprintf("relay parent %s of chain candidate %s not in scope",
			lastNode.relayParent(), lastNode.candidateHash))
	}
	return pending.RelayParent
}

// checkForksAndCycles decides whether a candidate may occupy the next
// depth of the chain. A candidate that already occupies an earlier depth
// may re-occupy it (cycles are tolerated and bounded by the depth limit);
// a different candidate claiming an occupied parent position is a fork,
// and a different candidate reproducing an occupied output is a second
// path to the same state.
func (fc *FragmentChain) checkForksAndCycles(candidate *CandidateEntry) bool {
	if _, inChain := fc.candidates[candidate.candidateHash]; inChain {
		return true
	}

	if _, ok := fc.byParentHead[candidate.parentHeadDataHash]; ok {
		return false
	}

	if _, ok := fc.byOutputHead[candidate.outputHeadDataHash]; ok {
		return false
	}

	return true
}

// populateChain repeatedly extends the chain, one depth at a time,
// committing to the first viable candidate at each depth. It stops when
// the depth limit is reached, no candidate can occupy the current depth,
// or the constraint algebra itself fails.
func (fc *FragmentChain) populateChain(storage *CandidateStorage) {
	var cumulativeModifications *inclusionemulator.ConstraintModifications
	if len(fc.chain) > 0 {
		cumulativeModifications = fc.chain[len(fc.chain)-1].cumulativeModifications.Clone()
	} else {
		cumulativeModifications = inclusionemulator.NewConstraintModificationsIdentity()
	}

	earliestRelayParent := fc.earliestRelayParent()

	for len(fc.chain) < int(fc.scope.maxDepth)+1 {
		childConstraints, err := inclusionemulator.ApplyModifications(
			fc.scope.baseConstraints, cumulativeModifications)
		if err != nil {
			fc.logger.Debug("failed to apply modifications", "error", err)
			break
		}

		requiredHeadHash, err := childConstraints.RequiredParent.Hash()
		if err != nil {
			panic(fmt.Sprintf("failed to hash required parent head data: %s", err))
		}

		extended := false
		for _, candidate := range storage.PossibleParaChildren(requiredHeadHash) {
			if !fc.checkForksAndCycles(candidate) {
				continue
			}

			pending := fc.scope.GetPendingAvailability(candidate.candidateHash)

			var relayParent inclusionemulator.RelayChainBlockInfo
			var minRelayParentNumber uint
			if pending != nil {
				relayParent = pending.RelayParent
				if len(fc.chain) == 0 {
					// an on-chain candidate may anchor to a relay parent
					// older than the nominal window
					minRelayParentNumber = pending.RelayParent.Number
				} else {
					minRelayParentNumber = earliestRelayParent.Number
				}
			} else {
				blockInfo := fc.scope.Ancestor(candidate.relayParent)
				if blockInfo == nil {
					continue
				}
				relayParent = *blockInfo
				minRelayParentNumber = earliestRelayParent.Number
			}

			if relayParent.Number < minRelayParentNumber {
				continue
			}

			constraints := childConstraints
			if pending != nil {
				constraints = childConstraints.Clone()
				constraints.MinRelayParentNumber = pending.RelayParent.Number
			}

			candidatePayload := candidate.candidate
			fragment, err := inclusionemulator.NewFragment(
				relayParent, constraints, &candidatePayload)
			if err != nil {
				// only one candidate may occupy a depth, so a validity
				// rejection means the depth cannot be filled
				fc.logger.Debug("candidate failed constraint checks",
					"candidateHash", candidate.candidateHash, "error", err)
				break
			}

			cumulativeModifications.Stack(fragment.ConstraintModifications())
			earliestRelayParent = relayParent

			node := &FragmentNode{
				fragment:                fragment,
				candidateHash:           candidate.candidateHash,
				parentHeadDataHash:      candidate.parentHeadDataHash,
				outputHeadDataHash:      candidate.outputHeadDataHash,
				cumulativeModifications: cumulativeModifications.Clone(),
			}

			fc.chain = append(fc.chain, node)
			fc.candidates[node.candidateHash] = struct{}{}
			fc.byParentHead[node.parentHeadDataHash] = node.candidateHash
			fc.byOutputHead[node.outputHeadDataHash] = node.candidateHash

			extended = true
			break
		}

		if !extended {
			break
		}
	}
}

// checkPotential applies the admission checks for a candidate that is not
// part of the chain: no trivial cycle, no fork with the chain, no second
// path to a chain state, no cycle back into the built prefix, and a relay
// parent that resolves within scope no older than the chain's earliest.
func (fc *FragmentChain) checkPotential(
	relayParent common.Hash,
	parentHeadDataHash common.Hash,
	outputHeadDataHash *common.Hash,
) bool {
	if outputHeadDataHash != nil && parentHeadDataHash == *outputHeadDataHash {
		return false
	}

	if _, ok := fc.byParentHead[parentHeadDataHash]; ok {
		return false
	}

	if outputHeadDataHash != nil {
		if _, ok := fc.byOutputHead[*outputHeadDataHash]; ok {
			return false
		}
		if _, ok := fc.byParentHead[*outputHeadDataHash]; ok {
			return false
		}
	}

	blockInfo := fc.scope.Ancestor(relayParent)
	if blockInfo == nil {
		return false
	}

	return blockInfo.Number >= fc.earliestRelayParent().Number
}

// CanAddCandidateAsPotential decides whether a candidate could become part
// of the chain in this scope, either immediately or once its predecessors
// arrive. Admission of not-yet-connected candidates is bounded: the chain
// length plus the number of unconnected potential candidates may not
// reach the maximum depth.
func (fc *FragmentChain) CanAddCandidateAsPotential(
	storage *CandidateStorage,
	relayParent common.Hash,
	parentHeadDataHash common.Hash,
	outputHeadDataHash *common.Hash,
) bool {
	if len(fc.chain) > int(fc.scope.maxDepth) {
		return false
	}

	if !fc.checkPotential(relayParent, parentHeadDataHash, outputHeadDataHash) {
		return false
	}

	limit := int(fc.scope.maxDepth) - len(fc.chain)
	unconnected := fc.FindUnconnectedPotentialCandidates(storage, &limit)

	return len(fc.chain)+len(unconnected) < int(fc.scope.maxDepth)
}

// FindUnconnectedPotentialCandidates returns the storage candidates that
// are not part of the chain but individually pass the potential-admission
// checks, in ascending candidate-hash order, optionally capped at limit.
func (fc *FragmentChain) FindUnconnectedPotentialCandidates(
	storage *CandidateStorage,
	limit *int,
) []parachaintypes.CandidateHash {
	hashes := storage.Candidates()
	sort.Slice(hashes, func(i, j int) bool {
		return bytes.Compare(hashes[i].Value[:], hashes[j].Value[:]) < 0
	})

	var potential []parachaintypes.CandidateHash
	for _, candidateHash := range hashes {
		if limit != nil && len(potential) >= *limit {
			break
		}

		if _, inChain := fc.candidates[candidateHash]; inChain {
			continue
		}

		entry, ok := storage.byCandidateHash[candidateHash]
		if !ok {
			continue
		}

		outputHeadDataHash := entry.outputHeadDataHash
		if fc.checkPotential(entry.relayParent, entry.parentHeadDataHash, &outputHeadDataHash) {
			potential = append(potential, candidateHash)
		}
	}

	return potential
}

// HypotheticalMembership answers whether a candidate would be, or could
// become, a member of the chain. Complete candidates that would attach
// immediately to the chain tail must additionally pass the constraint
// checks; incomplete ones are accepted optimistically.
func (fc *FragmentChain) HypotheticalMembership(
	candidateHash parachaintypes.CandidateHash,
	candidate HypotheticalCandidate,
	storage *CandidateStorage,
) bool {
	if _, inChain := fc.candidates[candidateHash]; inChain {
		return true
	}

	parentHeadDataHash, err := candidate.ParentHeadDataHash()
	if err != nil {
		fc.logger.Warn("failed to hash hypothetical parent head data",
			"candidateHash", candidateHash, "error", err)
		return false
	}

	outputHeadDataHash, err := candidate.OutputHeadDataHash()
	if err != nil {
		fc.logger.Warn("failed to hash hypothetical output head data",
			"candidateHash", candidateHash, "error", err)
		return false
	}

	if !fc.CanAddCandidateAsPotential(storage, candidate.RelayParent(),
		parentHeadDataHash, outputHeadDataHash) {
		return false
	}

	var cumulativeModifications *inclusionemulator.ConstraintModifications
	if len(fc.chain) > 0 {
		cumulativeModifications = fc.chain[len(fc.chain)-1].cumulativeModifications
	} else {
		cumulativeModifications = inclusionemulator.NewConstraintModificationsIdentity()
	}

	childConstraints, err := inclusionemulator.ApplyModifications(
		fc.scope.baseConstraints, cumulativeModifications)
	if err != nil {
		fc.logger.Debug("failed to apply modifications", "error", err)
		return false
	}

	requiredHeadHash, err := childConstraints.RequiredParent.Hash()
	if err != nil {
		panic(fmt.Sprintf("failed to hash required parent head data: %s", err))
	}

	if parentHeadDataHash != requiredHeadHash {
		// not attaching immediately: a legitimately unconnected candidate
		// that may join once its predecessor arrives
		return true
	}

	complete, ok := candidate.(HypotheticalCandidateComplete)
	if !ok {
		// incomplete candidates attaching immediately are accepted
		// optimistically, the receipt is not known yet
		return true
	}

	blockInfo := fc.scope.Ancestor(candidate.RelayParent())
	if blockInfo == nil {
		return false
	}

	_, err = inclusionemulator.CheckAgainstConstraints(
		*blockInfo,
		childConstraints,
		complete.Receipt.Commitments,
		complete.Receipt.Descriptor.ValidationCodeHash,
		complete.PersistedValidationData,
	)
	return err == nil
}

// findAncestorPath walks the chain from depth zero, consuming matching
// hashes from the ancestor set, and returns the index of the first chain
// position whose candidate is not in the set.
func (fc *FragmentChain) findAncestorPath(
	ancestors map[parachaintypes.CandidateHash]struct{}) int {
	for i, node := range fc.chain {
		if _, ok := ancestors[node.candidateHash]; !ok {
			return i
		}
		delete(ancestors, node.candidateHash)
	}
	return len(fc.chain)
}

// FindBackableChain returns a contiguous run of up to count candidate
// hashes starting right after the ancestor prefix, where every candidate
// is not pending availability and satisfies the predicate. The run stops
// at the first failure of either condition. The ancestor set is consumed.
func (fc *FragmentChain) FindBackableChain(
	ancestors map[parachaintypes.CandidateHash]struct{},
	count uint32,
	pred func(parachaintypes.CandidateHash) bool,
) []parachaintypes.CandidateHash {
	if count == 0 {
		return nil
	}

	base := fc.findAncestorPath(ancestors)

	var backable []parachaintypes.CandidateHash
	for i := base; i < len(fc.chain) && uint32(len(backable)) < count; i++ {
		candidateHash := fc.chain[i].candidateHash

		if fc.scope.GetPendingAvailability(candidateHash) != nil {
			break
		}

		if !pred(candidateHash) {
			break
		}

		backable = append(backable, candidateHash)
	}

	return backable
}
