// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package fragmentchain tracks, per parachain, which speculative candidate
// blocks legally extend that parachain's history within a bounded window of
// recent relay-chain blocks. The CandidateStorage holds every known
// candidate for one parachain; a Scope describes one relay-chain leaf's
// admissibility window; a FragmentChain is the single linear sequence of
// candidates from storage that is consistent with a Scope.
//
// Everything in this package is a plain in-memory computation with no
// internal locking. Storage mutation must be serialised with any
// in-progress chain population by the owning subsystem.
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

// CandidateState is the backing state of a candidate in the storage
type CandidateState int

const (
	// Seconded means the candidate has been seconded by at least one validator
	Seconded CandidateState = iota
	// Backed means the candidate has been fully backed
	Backed
)

// CandidateEntry is one known candidate, independent of any chain
type CandidateEntry struct {
	candidateHash      parachaintypes.CandidateHash
	parentHeadDataHash common.Hash
	outputHeadDataHash common.Hash
	relayParent        common.Hash
	candidate          inclusionemulator.ProspectiveCandidate
	state              CandidateState
}

// Hash returns the candidate hash of the entry
func (c *CandidateEntry) Hash() parachaintypes.CandidateHash {
	return c.candidateHash
}

// RelayParent returns the hash of the relay-chain block the candidate
// is built against
func (c *CandidateEntry) RelayParent() common.Hash {
	return c.relayParent
}

func newCandidateEntry(
	candidateHash parachaintypes.CandidateHash,
	receipt parachaintypes.CommittedCandidateReceipt,
	persistedValidationData parachaintypes.PersistedValidationData,
	state CandidateState,
) (*CandidateEntry, error) {
	pvdHash, err := persistedValidationData.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing persisted validation data: %w", err)
	}

	if pvdHash != receipt.Descriptor.PersistedValidationDataHash {
		return nil, ErrPersistedValidationDataMismatch
	}

	parentHeadDataHash, err := persistedValidationData.ParentHead.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing parent head data: %w", err)
	}

	outputHeadDataHash, err := receipt.Commitments.HeadData.Hash()
	if err != nil {
		return nil, fmt.Errorf("hashing output head data: %w", err)
	}

	return &CandidateEntry{
		candidateHash:      candidateHash,
		parentHeadDataHash: parentHeadDataHash,
		outputHeadDataHash: outputHeadDataHash,
		relayParent:        receipt.Descriptor.RelayParent,
		state:              state,
		candidate: inclusionemulator.ProspectiveCandidate{
			Commitments:             receipt.Commitments,
			PersistedValidationData: persistedValidationData,
			PoVHash:                 receipt.Descriptor.PovHash,
			ValidationCodeHash:      receipt.Descriptor.ValidationCodeHash,
		},
	}, nil
}

// CandidateStorage is a utility for storing candidates and information
// about them such as their relay-parents and their backing states. This
// does not assume any restriction on whether or not the candidates form
// a chain: it may legitimately hold same-parent candidates from different
// relay-chain forks.
type CandidateStorage struct {
	byParentHead    map[common.Hash]map[parachaintypes.CandidateHash]struct{}
	byOutputHead    map[common.Hash]map[parachaintypes.CandidateHash]struct{}
	byCandidateHash map[parachaintypes.CandidateHash]*CandidateEntry
	logger          log.Logger
}

// NewCandidateStorage creates an empty candidate storage. A nil logger
// falls back to a package-scoped default.
func NewCandidateStorage(logger log.Logger) *CandidateStorage {
	if logger == nil {
		logger = log.New("pkg", "fragmentchain")
	}

	return &CandidateStorage{
		byParentHead:    make(map[common.Hash]map[parachaintypes.CandidateHash]struct{}),
		byOutputHead:    make(map[common.Hash]map[parachaintypes.CandidateHash]struct{}),
		byCandidateHash: make(map[parachaintypes.CandidateHash]*CandidateEntry),
		logger:          logger,
	}
}

// AddCandidate introduces a new candidate to the storage and returns its
// hash. It fails with ErrCandidateAlreadyKnown if the hash already exists,
// or with ErrPersistedValidationDataMismatch if the supplied persisted
// validation data does not match the candidate descriptor.
func (c *CandidateStorage) AddCandidate(
	receipt parachaintypes.CommittedCandidateReceipt,
	persistedValidationData parachaintypes.PersistedValidationData,
	state CandidateState,
) (parachaintypes.CandidateHash, error) {
	candidateHash, err := receipt.Hash()
	if err != nil {
		return parachaintypes.CandidateHash{}, fmt.Errorf("hashing candidate receipt: %w", err)
	}

	if _, ok := c.byCandidateHash[candidateHash]; ok {
		return parachaintypes.CandidateHash{}, ErrCandidateAlreadyKnown{CandidateHash: candidateHash}
	}

	entry, err := newCandidateEntry(candidateHash, receipt, persistedValidationData, state)
	if err != nil {
		return parachaintypes.CandidateHash{}, err
	}

	c.byCandidateHash[candidateHash] = entry

	setOfCandidates := c.byParentHead[entry.parentHeadDataHash]
	if setOfCandidates == nil {
		setOfCandidates = make(map[parachaintypes.CandidateHash]struct{})
	}
	setOfCandidates[candidateHash] = struct{}{}
	c.byParentHead[entry.parentHeadDataHash] = setOfCandidates

	setOfCandidates = c.byOutputHead[entry.outputHeadDataHash]
	if setOfCandidates == nil {
		setOfCandidates = make(map[parachaintypes.CandidateHash]struct{})
	}
	setOfCandidates[candidateHash] = struct{}{}
	c.byOutputHead[entry.outputHeadDataHash] = setOfCandidates

	return candidateHash, nil
}

// RemoveCandidate removes the candidate from the storage and prunes
// now-empty index buckets
func (c *CandidateStorage) RemoveCandidate(candidateHash parachaintypes.CandidateHash) {
	entry, ok := c.byCandidateHash[candidateHash]
	if !ok {
		return
	}

	delete(c.byCandidateHash, candidateHash)

	if setOfCandidates, ok := c.byParentHead[entry.parentHeadDataHash]; ok {
		delete(setOfCandidates, candidateHash)
		if len(setOfCandidates) == 0 {
			delete(c.byParentHead, entry.parentHeadDataHash)
		}
	}

	if setOfCandidates, ok := c.byOutputHead[entry.outputHeadDataHash]; ok {
		delete(setOfCandidates, candidateHash)
		if len(setOfCandidates) == 0 {
			delete(c.byOutputHead, entry.outputHeadDataHash)
		}
	}
}

// MarkBacked promotes the candidate from Seconded to Backed. Idempotent,
// a no-op with a log line if the candidate is unknown.
func (c *CandidateStorage) MarkBacked(candidateHash parachaintypes.CandidateHash) {
	entry, ok := c.byCandidateHash[candidateHash]
	if !ok {
		c.logger.Warn("marking unknown candidate as backed", "candidateHash", candidateHash)
		return
	}

	entry.state = Backed
}

// IsBacked returns whether a candidate is known and backed
func (c *CandidateStorage) IsBacked(candidateHash parachaintypes.CandidateHash) bool {
	entry, ok := c.byCandidateHash[candidateHash]
	return ok && entry.state == Backed
}

// Contains returns whether the candidate hash is known
func (c *CandidateStorage) Contains(candidateHash parachaintypes.CandidateHash) bool {
	_, ok := c.byCandidateHash[candidateHash]
	return ok
}

// Len returns the number of stored candidates
func (c *CandidateStorage) Len() int {
	return len(c.byCandidateHash)
}

// Candidates returns the hashes of all stored candidates, in arbitrary order
func (c *CandidateStorage) Candidates() []parachaintypes.CandidateHash {
	hashes := make([]parachaintypes.CandidateHash, 0, len(c.byCandidateHash))
	for candidateHash := range c.byCandidateHash {
		hashes = append(hashes, candidateHash)
	}
	return hashes
}

// Retain removes all candidates failing the hash-keyed predicate. Used to
// prune out-of-scope and included candidates in bulk.
func (c *CandidateStorage) Retain(pred func(parachaintypes.CandidateHash) bool) {
	for candidateHash := range c.byCandidateHash {
		if !pred(candidateHash) {
			c.RemoveCandidate(candidateHash)
		}
	}
}

// HeadDataByHash is a best-effort reverse lookup of head data from either
// index: it prefers a candidate whose output equals the hash over one
// whose parent equals it.
func (c *CandidateStorage) HeadDataByHash(hash common.Hash) *parachaintypes.HeadData {
	if setOfCandidateHashes, ok := c.byOutputHead[hash]; ok {
		for candidateHash := range setOfCandidateHashes {
			if entry, ok := c.byCandidateHash[candidateHash]; ok {
				return &entry.candidate.Commitments.HeadData
			}
		}
	}

	if setOfCandidateHashes, ok := c.byParentHead[hash]; ok {
		for candidateHash := range setOfCandidateHashes {
			if entry, ok := c.byCandidateHash[candidateHash]; ok {
				return &entry.candidate.PersistedValidationData.ParentHead
			}
		}
	}

	return nil
}

// RelayParentByCandidateHash returns the relay parent of a known candidate
func (c *CandidateStorage) RelayParentByCandidateHash(
	candidateHash parachaintypes.CandidateHash) *common.Hash {
	if entry, ok := c.byCandidateHash[candidateHash]; ok {
		relayParent := entry.relayParent
		return &relayParent
	}
	return nil
}

// PossibleParaChildren returns the candidates that could extend the given
// parent head, across all backing states. Entries are sorted ascending by
// candidate hash so that chain population commits to a deterministic
// first match at each depth.
func (c *CandidateStorage) PossibleParaChildren(parentHeadHash common.Hash) []*CandidateEntry {
	setOfCandidateHashes, ok := c.byParentHead[parentHeadHash]
	if !ok {
		return nil
	}

	entries := make([]*CandidateEntry, 0, len(setOfCandidateHashes))
	for candidateHash := range setOfCandidateHashes {
		if entry, ok := c.byCandidateHash[candidateHash]; ok {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare(entries[i].candidateHash.Value[:],
			entries[j].candidateHash.Value[:]) < 0
	})

	return entries
}
