// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package fragmentchain

import (
	"errors"
	"fmt"

	parachaintypes "github.com/ChainSafe/prospective-parachains/types"
)

// ErrPersistedValidationDataMismatch is returned by AddCandidate when the
// supplied persisted validation data does not hash to the value recorded
// in the candidate descriptor.
var ErrPersistedValidationDataMismatch = errors.New(
	"candidate does not match the persisted validation data provided alongside it")

// ErrCandidateAlreadyKnown is returned by AddCandidate for a candidate
// hash already present in the storage.
type ErrCandidateAlreadyKnown struct {
	CandidateHash parachaintypes.CandidateHash
}

func (e ErrCandidateAlreadyKnown) Error() string {
	return fmt.Sprintf("candidate already known: %s", e.CandidateHash)
}

// ErrUnexpectedAncestor is returned by NewScopeWithAncestors when the
// supplied ancestors are not contiguous and strictly descending from the
// relay parent.
type ErrUnexpectedAncestor struct {
	// The block number that this error occurred at.
	Number uint
	// The previous seen block number, which did not match Number.
	Prev uint
}

func (e ErrUnexpectedAncestor) Error() string {
	return fmt.Sprintf("unexpected ancestor %d, expected predecessor of %d", e.Number, e.Prev)
}
