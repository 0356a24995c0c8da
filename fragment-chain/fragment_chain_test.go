// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package fragmentchain

import (
	"bytes"
	"testing"

	inclusionemulator "github.com/ChainSafe/prospective-parachains/inclusion-emulator"
	"github.com/ChainSafe/prospective-parachains/lib/common"
	parachaintypes "github.com/ChainSafe/prospective-parachains/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testParaID parachaintypes.ParaID = 100

var testValidationCodeHash = parachaintypes.ValidationCodeHash(
	common.BytesToHash(bytes.Repeat([]byte{42}, 32)))

func makeConstraints(
	minRelayParentNumber uint,
	validWatermarks []uint,
	requiredParent parachaintypes.HeadData,
) *inclusionemulator.Constraints {
	return &inclusionemulator.Constraints{
		MinRelayParentNumber:  minRelayParentNumber,
		MaxPoVSize:            1_000_000,
		MaxCodeSize:           1_000_000,
		UmpRemaining:          10,
		UmpRemainingBytes:     1_000,
		MaxUmpNumPerCandidate: 10,
		DmpRemainingMessages:  make([]uint, 10),
		HrmpInbound: inclusionemulator.InboundHrmpLimitations{
			ValidWatermarks: validWatermarks,
		},
		HrmpChannelsOut: make(
			map[parachaintypes.ParaID]inclusionemulator.OutboundHrmpChannelLimitations),
		MaxHrmpNumPerCandidate: 5,
		RequiredParent:         requiredParent,
		ValidationCodeHash:     testValidationCodeHash,
	}
}

func makeCommittedCandidate(
	t *testing.T,
	relayParent common.Hash,
	relayParentNumber uint32,
	parentHead parachaintypes.HeadData,
	outputHead parachaintypes.HeadData,
) (parachaintypes.CommittedCandidateReceipt, parachaintypes.PersistedValidationData) {
	t.Helper()

	pvd := parachaintypes.PersistedValidationData{
		ParentHead:             parentHead,
		RelayParentNumber:      relayParentNumber,
		RelayParentStorageRoot: common.EmptyHash,
		MaxPovSize:             1_000_000,
	}

	pvdHash, err := pvd.Hash()
	require.NoError(t, err)

	paraHead, err := outputHead.Hash()
	require.NoError(t, err)

	receipt := parachaintypes.CommittedCandidateReceipt{
		Descriptor: parachaintypes.CandidateDescriptor{
			ParaID:                      testParaID,
			RelayParent:                 relayParent,
			PersistedValidationDataHash: pvdHash,
			PovHash:                     common.BytesToHash([]byte{9, 9, 9}),
			ErasureRoot:                 common.EmptyHash,
			ParaHead:                    paraHead,
			ValidationCodeHash:          testValidationCodeHash,
		},
		Commitments: parachaintypes.CandidateCommitments{
			HeadData:                  outputHead,
			ProcessedDownwardMessages: 1,
			HrmpWatermark:             relayParentNumber,
		},
	}

	return receipt, pvd
}

func addCandidate(
	t *testing.T,
	storage *CandidateStorage,
	receipt parachaintypes.CommittedCandidateReceipt,
	pvd parachaintypes.PersistedValidationData,
	state CandidateState,
) parachaintypes.CandidateHash {
	t.Helper()

	candidateHash, err := storage.AddCandidate(receipt, pvd, state)
	require.NoError(t, err)
	return candidateHash
}

func TestCandidateStorageInsertionRoundTrip(t *testing.T) {
	storage := NewCandidateStorage(nil)

	parentHead := parachaintypes.HeadData{Data: []byte{0x0a}}
	outputHead := parachaintypes.HeadData{Data: []byte{0x0b}}
	relayParent := common.BytesToHash([]byte{1})

	receipt, pvd := makeCommittedCandidate(t, relayParent, 0, parentHead, outputHead)
	candidateHash := addCandidate(t, storage, receipt, pvd, Seconded)

	assert.True(t, storage.Contains(candidateHash))
	assert.Equal(t, 1, storage.Len())
	assert.Equal(t, []parachaintypes.CandidateHash{candidateHash}, storage.Candidates())
	assert.False(t, storage.IsBacked(candidateHash))

	storage.MarkBacked(candidateHash)
	assert.True(t, storage.IsBacked(candidateHash))

	// duplicate insertion
	_, err := storage.AddCandidate(receipt, pvd, Seconded)
	assert.ErrorAs(t, err, &ErrCandidateAlreadyKnown{})

	// persisted validation data mismatch
	badPVD := pvd
	badPVD.MaxPovSize = 2
	otherReceipt, _ := makeCommittedCandidate(t, relayParent, 0, parentHead,
		parachaintypes.HeadData{Data: []byte{0x0c}})
	_, err = storage.AddCandidate(otherReceipt, badPVD, Seconded)
	assert.ErrorIs(t, err, ErrPersistedValidationDataMismatch)

	parentHeadHash, err := parentHead.Hash()
	require.NoError(t, err)
	outputHeadHash, err := outputHead.Hash()
	require.NoError(t, err)

	children := storage.PossibleParaChildren(parentHeadHash)
	require.Len(t, children, 1)
	assert.Equal(t, candidateHash, children[0].Hash())

	assert.Equal(t, &outputHead, storage.HeadDataByHash(outputHeadHash))
	assert.Equal(t, &parentHead, storage.HeadDataByHash(parentHeadHash))
	require.NotNil(t, storage.RelayParentByCandidateHash(candidateHash))
	assert.Equal(t, relayParent, *storage.RelayParentByCandidateHash(candidateHash))

	storage.RemoveCandidate(candidateHash)
	assert.False(t, storage.Contains(candidateHash))
	assert.Empty(t, storage.PossibleParaChildren(parentHeadHash))
	assert.Nil(t, storage.HeadDataByHash(outputHeadHash))
	assert.Nil(t, storage.RelayParentByCandidateHash(candidateHash))
}

func TestCandidateStorageRetain(t *testing.T) {
	storage := NewCandidateStorage(nil)
	relayParent := common.BytesToHash([]byte{1})

	receiptA, pvdA := makeCommittedCandidate(t, relayParent, 0,
		parachaintypes.HeadData{Data: []byte{0x0a}},
		parachaintypes.HeadData{Data: []byte{0x0b}})
	receiptB, pvdB := makeCommittedCandidate(t, relayParent, 0,
		parachaintypes.HeadData{Data: []byte{0x0b}},
		parachaintypes.HeadData{Data: []byte{0x0c}})

	hashA := addCandidate(t, storage, receiptA, pvdA, Seconded)
	hashB := addCandidate(t, storage, receiptB, pvdB, Seconded)

	storage.Retain(func(hash parachaintypes.CandidateHash) bool {
		return hash == hashA
	})

	assert.True(t, storage.Contains(hashA))
	assert.False(t, storage.Contains(hashB))
	assert.Equal(t, 1, storage.Len())

	parentHeadHashB, err := parachaintypes.HeadData{Data: []byte{0x0b}}.Hash()
	require.NoError(t, err)
	assert.Empty(t, storage.PossibleParaChildren(parentHeadHashB))
}

func TestScopeRejectsAncestors(t *testing.T) {
	cases := map[string]struct {
		relayParent inclusionemulator.RelayChainBlockInfo
		ancestors   []inclusionemulator.RelayChainBlockInfo
		expectedErr error
	}{
		"skipped_block_number": {
			relayParent: inclusionemulator.RelayChainBlockInfo{
				Hash: common.BytesToHash([]byte{10}), Number: 10},
			ancestors: []inclusionemulator.RelayChainBlockInfo{
				{Hash: common.BytesToHash([]byte{8}), Number: 8},
			},
			expectedErr: ErrUnexpectedAncestor{Number: 8, Prev: 10},
		},
		"gap_after_first_ancestor": {
			relayParent: inclusionemulator.RelayChainBlockInfo{
				Hash: common.BytesToHash([]byte{10}), Number: 10},
			ancestors: []inclusionemulator.RelayChainBlockInfo{
				{Hash: common.BytesToHash([]byte{9}), Number: 9},
				{Hash: common.BytesToHash([]byte{7}), Number: 7},
			},
			expectedErr: ErrUnexpectedAncestor{Number: 7, Prev: 9},
		},
		"underflow_past_block_zero": {
			relayParent: inclusionemulator.RelayChainBlockInfo{
				Hash: common.BytesToHash([]byte{1}), Number: 0},
			ancestors: []inclusionemulator.RelayChainBlockInfo{
				{Hash: common.BytesToHash([]byte{2}), Number: 0},
			},
			expectedErr: ErrUnexpectedAncestor{Number: 0, Prev: 0},
		},
	}

	for name, tt := range cases {
		tt := tt
		t.Run(name, func(t *testing.T) {
			constraints := makeConstraints(0, []uint{},
				parachaintypes.HeadData{Data: []byte{0x0a}})
			_, err := NewScopeWithAncestors(testParaID, tt.relayParent,
				constraints, nil, 4, tt.ancestors)
			assert.Equal(t, tt.expectedErr, err)
		})
	}
}

func TestScopeOnlyTakesAncestorsUpToMin(t *testing.T) {
	relayParent := inclusionemulator.RelayChainBlockInfo{
		Hash:   common.BytesToHash([]byte{10}),
		Number: 10,
	}
	ancestors := []inclusionemulator.RelayChainBlockInfo{
		{Hash: common.BytesToHash([]byte{9}), Number: 9},
		{Hash: common.BytesToHash([]byte{8}), Number: 8},
		{Hash: common.BytesToHash([]byte{7}), Number: 7},
	}
	constraints := makeConstraints(8, []uint{}, parachaintypes.HeadData{Data: []byte{0x0a}})

	scope, err := NewScopeWithAncestors(testParaID, relayParent, constraints, nil, 4, ancestors)
	require.NoError(t, err)

	assert.Equal(t, uint(8), scope.EarliestRelayParent().Number)
	assert.NotNil(t, scope.Ancestor(common.BytesToHash([]byte{9})))
	assert.NotNil(t, scope.Ancestor(common.BytesToHash([]byte{8})))
	assert.Nil(t, scope.Ancestor(common.BytesToHash([]byte{7})))
	assert.NotNil(t, scope.Ancestor(relayParent.Hash))

	// no ancestors at all
	scope, err = NewScopeWithAncestors(testParaID, relayParent, constraints, nil, 4, nil)
	require.NoError(t, err)
	assert.Equal(t, relayParent, scope.EarliestRelayParent())
}

// testScope builds a scope anchored to a single relay-chain block at
// number zero with no ancestors.
func testScope(
	t *testing.T,
	requiredParent parachaintypes.HeadData,
	maxDepth uint,
) (*Scope, common.Hash) {
	t.Helper()

	relayParent := inclusionemulator.RelayChainBlockInfo{
		Hash:        common.BytesToHash([]byte{1}),
		StorageRoot: common.EmptyHash,
		Number:      0,
	}
	constraints := makeConstraints(0, []uint{}, requiredParent)

	scope, err := NewScopeWithAncestors(testParaID, relayParent, constraints, nil, maxDepth, nil)
	require.NoError(t, err)
	return scope, relayParent.Hash
}

func TestFragmentChainPopulateLinear(t *testing.T) {
	requiredParent := parachaintypes.HeadData{Data: []byte{0x0a}}
	scope, relayParent := testScope(t, requiredParent, 3)
	storage := NewCandidateStorage(nil)

	heads := []parachaintypes.HeadData{
		requiredParent,
		{Data: []byte{0x0b}},
		{Data: []byte{0x0c}},
		{Data: []byte{0x0d}},
		{Data: []byte{0x0e}},
	}

	expected := make([]parachaintypes.CandidateHash, 0, 4)
	for i := 0; i < 4; i++ {
		receipt, pvd := makeCommittedCandidate(t, relayParent, 0, heads[i], heads[i+1])
		expected = append(expected, addCandidate(t, storage, receipt, pvd, Backed))
	}

	chain := NewFragmentChain(scope, storage, nil)
	assert.Equal(t, 4, chain.Len())
	assert.Equal(t, expected, chain.Candidates())

	for _, candidateHash := range expected {
		assert.True(t, chain.ContainsCandidate(candidateHash))
	}

	// no two nodes share a parent or output head
	seenParents := make(map[common.Hash]struct{})
	seenOutputs := make(map[common.Hash]struct{})
	for _, node := range chain.chain {
		_, parentSeen := seenParents[node.parentHeadDataHash]
		_, outputSeen := seenOutputs[node.outputHeadDataHash]
		assert.False(t, parentSeen)
		assert.False(t, outputSeen)
		seenParents[node.parentHeadDataHash] = struct{}{}
		seenOutputs[node.outputHeadDataHash] = struct{}{}
	}
}

func TestFragmentChainDepthBoundZeroLengthCycle(t *testing.T) {
	// candidate A's output head equals its parent head; the chain must
	// still be cut off at the depth limit
	head := parachaintypes.HeadData{Data: []byte{0x0a}}
	scope, relayParent := testScope(t, head, 4)
	storage := NewCandidateStorage(nil)

	receipt, pvd := makeCommittedCandidate(t, relayParent, 0, head, head)
	hashA := addCandidate(t, storage, receipt, pvd, Backed)

	chain := NewFragmentChain(scope, storage, nil)
	require.Equal(t, 5, chain.Len())
	for _, candidateHash := range chain.Candidates() {
		assert.Equal(t, hashA, candidateHash)
	}
}

func TestFragmentChainTwoCandidateCycle(t *testing.T) {
	headA := parachaintypes.HeadData{Data: []byte{0x0a}}
	headB := parachaintypes.HeadData{Data: []byte{0x0b}}
	scope, relayParent := testScope(t, headA, 4)
	storage := NewCandidateStorage(nil)

	receiptA, pvdA := makeCommittedCandidate(t, relayParent, 0, headA, headB)
	receiptB, pvdB := makeCommittedCandidate(t, relayParent, 0, headB, headA)
	hashA := addCandidate(t, storage, receiptA, pvdA, Backed)
	hashB := addCandidate(t, storage, receiptB, pvdB, Backed)

	chain := NewFragmentChain(scope, storage, nil)
	assert.Equal(t, []parachaintypes.CandidateHash{
		hashA, hashB, hashA, hashB, hashA,
	}, chain.Candidates())
}

func TestFragmentChainDeterministicForkChoice(t *testing.T) {
	requiredParent := parachaintypes.HeadData{Data: []byte{0x0a}}
	scope, relayParent := testScope(t, requiredParent, 4)
	storage := NewCandidateStorage(nil)

	receiptX, pvdX := makeCommittedCandidate(t, relayParent, 0, requiredParent,
		parachaintypes.HeadData{Data: []byte{0x0b}})
	receiptY, pvdY := makeCommittedCandidate(t, relayParent, 0, requiredParent,
		parachaintypes.HeadData{Data: []byte{0x0c}})
	hashX := addCandidate(t, storage, receiptX, pvdX, Backed)
	hashY := addCandidate(t, storage, receiptY, pvdY, Backed)

	lowest := hashX
	if bytes.Compare(hashY.Value[:], hashX.Value[:]) < 0 {
		lowest = hashY
	}

	chain := NewFragmentChain(scope, storage, nil)
	require.Equal(t, 1, chain.Len())
	assert.Equal(t, lowest, chain.Candidates()[0])

	parentHeadHash, err := requiredParent.Hash()
	require.NoError(t, err)
	children := storage.PossibleParaChildren(parentHeadHash)
	require.Len(t, children, 2)
	child0Hash := children[0].Hash()
	child1Hash := children[1].Hash()
	assert.True(t, bytes.Compare(child0Hash.Value[:],
		child1Hash.Value[:]) < 0)
}

func TestFragmentChainRepopulate(t *testing.T) {
	requiredParent := parachaintypes.HeadData{Data: []byte{0x0a}}
	scope, relayParent := testScope(t, requiredParent, 4)
	storage := NewCandidateStorage(nil)

	receipt0, pvd0 := makeCommittedCandidate(t, relayParent, 0, requiredParent,
		parachaintypes.HeadData{Data: []byte{0x0b}})
	hash0 := addCandidate(t, storage, receipt0, pvd0, Backed)

	chain := NewFragmentChain(scope, storage, nil)
	require.Equal(t, []parachaintypes.CandidateHash{hash0}, chain.Candidates())

	receipt1, pvd1 := makeCommittedCandidate(t, relayParent, 0,
		parachaintypes.HeadData{Data: []byte{0x0b}},
		parachaintypes.HeadData{Data: []byte{0x0c}})
	hash1 := addCandidate(t, storage, receipt1, pvd1, Backed)

	chain.Repopulate(storage)
	assert.Equal(t, []parachaintypes.CandidateHash{hash0, hash1}, chain.Candidates())
}

func TestFindBackableChain(t *testing.T) {
	requiredParent := parachaintypes.HeadData{Data: []byte{0x0a}}
	scope, relayParent := testScope(t, requiredParent, 3)
	storage := NewCandidateStorage(nil)

	heads := []parachaintypes.HeadData{
		requiredParent,
		{Data: []byte{0x0b}},
		{Data: []byte{0x0c}},
		{Data: []byte{0x0d}},
		{Data: []byte{0x0e}},
	}

	hashes := make([]parachaintypes.CandidateHash, 0, 4)
	for i := 0; i < 4; i++ {
		receipt, pvd := makeCommittedCandidate(t, relayParent, 0, heads[i], heads[i+1])
		hashes = append(hashes, addCandidate(t, storage, receipt, pvd, Backed))
	}

	chain := NewFragmentChain(scope, storage, nil)
	require.Equal(t, 4, chain.Len())

	acceptAll := func(parachaintypes.CandidateHash) bool { return true }

	backable := chain.FindBackableChain(
		map[parachaintypes.CandidateHash]struct{}{}, 4, acceptAll)
	assert.Equal(t, hashes, backable)

	backable = chain.FindBackableChain(map[parachaintypes.CandidateHash]struct{}{
		hashes[0]: {}, hashes[1]: {},
	}, 2, acceptAll)
	assert.Equal(t, []parachaintypes.CandidateHash{hashes[2], hashes[3]}, backable)

	// count limits the run
	backable = chain.FindBackableChain(
		map[parachaintypes.CandidateHash]struct{}{}, 2, acceptAll)
	assert.Equal(t, hashes[:2], backable)

	// the run stops at the first predicate failure
	backable = chain.FindBackableChain(
		map[parachaintypes.CandidateHash]struct{}{}, 4,
		func(hash parachaintypes.CandidateHash) bool {
			return hash != hashes[2]
		})
	assert.Equal(t, hashes[:2], backable)

	// zero count yields nothing
	backable = chain.FindBackableChain(
		map[parachaintypes.CandidateHash]struct{}{}, 0, acceptAll)
	assert.Empty(t, backable)
}

func TestPendingAvailabilityRelayParentRelaxation(t *testing.T) {
	requiredParent := parachaintypes.HeadData{Data: []byte{0x0a}}
	outputP := parachaintypes.HeadData{Data: []byte{0x0b}}
	outputQ := parachaintypes.HeadData{Data: []byte{0x0c}}

	relayParent := inclusionemulator.RelayChainBlockInfo{
		Hash:        common.BytesToHash([]byte{10}),
		StorageRoot: common.EmptyHash,
		Number:      10,
	}
	ancestors := []inclusionemulator.RelayChainBlockInfo{
		{Hash: common.BytesToHash([]byte{9}), StorageRoot: common.EmptyHash, Number: 9},
		{Hash: common.BytesToHash([]byte{8}), StorageRoot: common.EmptyHash, Number: 8},
	}
	oldRelayParent := inclusionemulator.RelayChainBlockInfo{
		Hash:        common.BytesToHash([]byte{5}),
		StorageRoot: common.EmptyHash,
		Number:      5,
	}

	storage := NewCandidateStorage(nil)

	// pending availability candidate anchored below the window
	receiptP, pvdP := makeCommittedCandidate(t, oldRelayParent.Hash, 5,
		requiredParent, outputP)
	hashP := addCandidate(t, storage, receiptP, pvdP, Backed)

	// an equally old non-pending candidate building on top of it
	receiptQ, pvdQ := makeCommittedCandidate(t, oldRelayParent.Hash, 5,
		outputP, outputQ)
	hashQ := addCandidate(t, storage, receiptQ, pvdQ, Backed)

	constraints := makeConstraints(8, []uint{}, requiredParent)
	scope, err := NewScopeWithAncestors(testParaID, relayParent, constraints,
		[]*PendingAvailability{{CandidateHash: hashP, RelayParent: oldRelayParent}},
		4, ancestors)
	require.NoError(t, err)

	chain := NewFragmentChain(scope, storage, nil)
	assert.Equal(t, []parachaintypes.CandidateHash{hashP}, chain.Candidates())
	assert.False(t, chain.ContainsCandidate(hashQ))

	// a successor anchored inside the window still extends the chain
	receiptR, pvdR := makeCommittedCandidate(t, common.BytesToHash([]byte{8}), 8,
		outputP, outputQ)
	hashR := addCandidate(t, storage, receiptR, pvdR, Backed)

	chain = NewFragmentChain(scope, storage, nil)
	assert.Equal(t, []parachaintypes.CandidateHash{hashP, hashR}, chain.Candidates())
}

func TestCanAddCandidateAsPotential(t *testing.T) {
	requiredParent := parachaintypes.HeadData{Data: []byte{0x0a}}
	scope, relayParent := testScope(t, requiredParent, 4)
	storage := NewCandidateStorage(nil)
	chain := NewFragmentChain(scope, storage, nil)

	parentHeadHash, err := parachaintypes.HeadData{Data: []byte{0xaa}}.Hash()
	require.NoError(t, err)
	outputHeadHash, err := parachaintypes.HeadData{Data: []byte{0xbb}}.Hash()
	require.NoError(t, err)

	assert.True(t, chain.CanAddCandidateAsPotential(
		storage, relayParent, parentHeadHash, &outputHeadHash))

	// trivial zero-length cycle
	assert.False(t, chain.CanAddCandidateAsPotential(
		storage, relayParent, parentHeadHash, &parentHeadHash))

	// relay parent outside the scope
	assert.False(t, chain.CanAddCandidateAsPotential(
		storage, common.BytesToHash([]byte{99}), parentHeadHash, &outputHeadHash))

	// unknown output is acceptable
	assert.True(t, chain.CanAddCandidateAsPotential(
		storage, relayParent, parentHeadHash, nil))
}

func TestUnconnectedCandidateSpamBound(t *testing.T) {
	requiredParent := parachaintypes.HeadData{Data: []byte{0x0a}}
	scope, relayParent := testScope(t, requiredParent, 4)
	storage := NewCandidateStorage(nil)
	chain := NewFragmentChain(scope, storage, nil)

	// unconnected candidates: parents unrelated to the required parent
	for i := byte(0); i < 4; i++ {
		receipt, pvd := makeCommittedCandidate(t, relayParent, 0,
			parachaintypes.HeadData{Data: []byte{0xb0 + i}},
			parachaintypes.HeadData{Data: []byte{0xc0 + i}})
		addCandidate(t, storage, receipt, pvd, Seconded)

		parentHeadHash, err := parachaintypes.HeadData{Data: []byte{0xaa}}.Hash()
		require.NoError(t, err)
		outputHeadHash, err := parachaintypes.HeadData{Data: []byte{0xab}}.Hash()
		require.NoError(t, err)

		admissible := chain.CanAddCandidateAsPotential(
			storage, relayParent, parentHeadHash, &outputHeadHash)
		if i < 3 {
			assert.True(t, admissible, "unconnected count %d", i+1)
		} else {
			// chain length plus unconnected count reached the depth limit
			assert.False(t, admissible)
		}
	}

	limit := 10
	unconnected := chain.FindUnconnectedPotentialCandidates(storage, &limit)
	assert.Len(t, unconnected, 4)

	limit = 2
	unconnected = chain.FindUnconnectedPotentialCandidates(storage, &limit)
	assert.Len(t, unconnected, 2)
}

func TestHypotheticalMembership(t *testing.T) {
	requiredParent := parachaintypes.HeadData{Data: []byte{0x0a}}
	middleHead := parachaintypes.HeadData{Data: []byte{0x0b}}
	scope, relayParent := testScope(t, requiredParent, 4)
	storage := NewCandidateStorage(nil)

	receipt0, pvd0 := makeCommittedCandidate(t, relayParent, 0, requiredParent, middleHead)
	hash0 := addCandidate(t, storage, receipt0, pvd0, Backed)

	chain := NewFragmentChain(scope, storage, nil)
	require.Equal(t, 1, chain.Len())

	// a chain member is always a member
	assert.True(t, chain.HypotheticalMembership(hash0,
		HypotheticalCandidateComplete{Receipt: receipt0, PersistedValidationData: pvd0},
		storage))

	// complete candidate attaching directly to the chain tail
	receipt1, pvd1 := makeCommittedCandidate(t, relayParent, 0, middleHead,
		parachaintypes.HeadData{Data: []byte{0x0c}})
	hash1, err := receipt1.Hash()
	require.NoError(t, err)
	assert.True(t, chain.HypotheticalMembership(hash1,
		HypotheticalCandidateComplete{Receipt: receipt1, PersistedValidationData: pvd1},
		storage))

	// attaching directly but failing the constraint checks
	badReceipt := receipt1
	badReceipt.Descriptor.ValidationCodeHash = parachaintypes.ValidationCodeHash(
		common.BytesToHash([]byte{7}))
	badHash, err := badReceipt.Hash()
	require.NoError(t, err)
	assert.False(t, chain.HypotheticalMembership(badHash,
		HypotheticalCandidateComplete{Receipt: badReceipt, PersistedValidationData: pvd1},
		storage))

	// incomplete candidate attaching directly is accepted optimistically
	middleHeadHash, err := middleHead.Hash()
	require.NoError(t, err)
	assert.True(t, chain.HypotheticalMembership(hash1,
		HypotheticalCandidateIncomplete{
			CandidateRelayParent: relayParent,
			ParentHeadHash:       middleHeadHash,
		}, storage))

	// unconnected candidate with admissible relay parent
	unconnectedHeadHash, err := parachaintypes.HeadData{Data: []byte{0xdd}}.Hash()
	require.NoError(t, err)
	assert.True(t, chain.HypotheticalMembership(hash1,
		HypotheticalCandidateIncomplete{
			CandidateRelayParent: relayParent,
			ParentHeadHash:       unconnectedHeadHash,
		}, storage))

	// forking the chain is not a membership
	receiptFork, pvdFork := makeCommittedCandidate(t, relayParent, 0, requiredParent,
		parachaintypes.HeadData{Data: []byte{0x0e}})
	forkHash, err := receiptFork.Hash()
	require.NoError(t, err)
	assert.False(t, chain.HypotheticalMembership(forkHash,
		HypotheticalCandidateComplete{Receipt: receiptFork, PersistedValidationData: pvdFork},
		storage))

	// relay parent outside the scope
	assert.False(t, chain.HypotheticalMembership(hash1,
		HypotheticalCandidateIncomplete{
			CandidateRelayParent: common.BytesToHash([]byte{99}),
			ParentHeadHash:       middleHeadHash,
		}, storage))
}
