// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package inclusionemulator

import (
	"fmt"

	"github.com/ChainSafe/prospective-parachains/lib/common"
	parachaintypes "github.com/ChainSafe/prospective-parachains/types"
)

// ProspectiveCandidate includes key informations that represent a candidate
// without pinning it to a particular session. For example, everything related
// to the collator's signature and commitments are disregarded.
type ProspectiveCandidate struct {
	Commitments             parachaintypes.CandidateCommitments
	PersistedValidationData parachaintypes.PersistedValidationData
	PoVHash                 common.Hash
	ValidationCodeHash      parachaintypes.ValidationCodeHash
}

// Fragment represents another prospective parachain block. This is a type
// which guarantees that the candidate is valid under the operating constraints.
type Fragment struct {
	relayParent          RelayChainBlockInfo
	operatingConstraints *Constraints
	candidate            *ProspectiveCandidate
	modifications        *ConstraintModifications
}

// RelayParent returns the relay-chain block the candidate is anchored to
func (f *Fragment) RelayParent() RelayChainBlockInfo {
	return f.relayParent
}

// Candidate returns the prospective candidate of this fragment
func (f *Fragment) Candidate() *ProspectiveCandidate {
	return f.candidate
}

// ConstraintModifications returns the modifications the candidate makes
// to the operating constraints
func (f *Fragment) ConstraintModifications() *ConstraintModifications {
	return f.modifications
}

// NewFragment creates a new Fragment. This fails if the fragment isn't in line
// with the operating constraints. That is, either its inputs or outputs fail
// checks against the constraints.
// This does not check that the collator signature is valid or whether the PoV
// is small enough.
func NewFragment(
	relayParent RelayChainBlockInfo,
	operatingConstraints *Constraints,
	candidate *ProspectiveCandidate,
) (*Fragment, error) {
	modifications, err := CheckAgainstConstraints(
		relayParent,
		operatingConstraints,
		candidate.Commitments,
		candidate.ValidationCodeHash,
		candidate.PersistedValidationData,
	)
	if err != nil {
		return nil, err
	}

	return &Fragment{
		relayParent:          relayParent,
		operatingConstraints: operatingConstraints,
		candidate:            candidate,
		modifications:        modifications,
	}, nil
}

// CheckAgainstConstraints checks a candidate's commitments against the
// operating constraints, returning the constraint modifications the
// candidate makes.
func CheckAgainstConstraints(
	relayParent RelayChainBlockInfo,
	operatingConstraints *Constraints,
	commitments parachaintypes.CandidateCommitments,
	validationCodeHash parachaintypes.ValidationCodeHash,
	persistedValidationData parachaintypes.PersistedValidationData,
) (*ConstraintModifications, error) {
	umpMessagesSent := len(commitments.UpwardMessages)
	umpBytesSent := 0
	for _, message := range commitments.UpwardMessages {
		umpBytesSent += len(message)
	}

	hrmpWatermark := HrmpWatermarkUpdate{
		Type:  Trunk,
		Block: uint(commitments.HrmpWatermark),
	}
	if uint(commitments.HrmpWatermark) == relayParent.Number {
		hrmpWatermark.Type = Head
	}

	outboundHrmp := make(map[parachaintypes.ParaID]OutboundHrmpChannelModification)
	var lastRecipient *parachaintypes.ParaID

	for i, message := range commitments.HorizontalMessages {
		recipient := parachaintypes.ParaID(message.Recipient)
		if lastRecipient != nil && *lastRecipient >= recipient {
			return nil, &errHrmpMessagesDescendingOrDuplicate{index: uint(i)}
		}

		lastRecipient = &recipient
		record := outboundHrmp[recipient]
		record.BytesSubmitted += uint32(len(message.Data))
		record.MessagesSubmitted++
		outboundHrmp[recipient] = record
	}

	codeUpgradeApplied := false
	if operatingConstraints.FutureValidationCode != nil {
		codeUpgradeApplied = relayParent.Number >= operatingConstraints.FutureValidationCode.BlockNumber
	}

	modifications := &ConstraintModifications{
		RequiredParent:       &commitments.HeadData,
		HrmpWatermark:        &hrmpWatermark,
		OutboundHrmp:         outboundHrmp,
		UmpMessagesSent:      uint32(umpMessagesSent),
		UmpBytesSent:         uint32(umpBytesSent),
		DmpMessagesProcessed: commitments.ProcessedDownwardMessages,
		CodeUpgradeApplied:   codeUpgradeApplied,
	}

	err := validateAgainstConstraints(
		operatingConstraints,
		relayParent,
		commitments,
		persistedValidationData,
		validationCodeHash,
		modifications,
	)
	if err != nil {
		return nil, err
	}

	return modifications, nil
}

func validateAgainstConstraints(
	constraints *Constraints,
	relayParent RelayChainBlockInfo,
	commitments parachaintypes.CandidateCommitments,
	persistedValidationData parachaintypes.PersistedValidationData,
	validationCodeHash parachaintypes.ValidationCodeHash,
	modifications *ConstraintModifications,
) error {
	expectedPVD := parachaintypes.PersistedValidationData{
		ParentHead:             constraints.RequiredParent,
		RelayParentNumber:      uint32(relayParent.Number),
		RelayParentStorageRoot: relayParent.StorageRoot,
		MaxPovSize:             constraints.MaxPoVSize,
	}

	if !expectedPVD.Equal(persistedValidationData) {
		return fmt.Errorf("%w, expected: %+v, got: %+v",
			errPersistedValidationDataMismatch, expectedPVD, persistedValidationData)
	}

	if constraints.ValidationCodeHash != validationCodeHash {
		return &errValidationCodeMismatch{
			expected: constraints.ValidationCodeHash,
			got:      validationCodeHash,
		}
	}

	if relayParent.Number < constraints.MinRelayParentNumber {
		return &errRelayParentTooOld{
			minRelayParentNumber: constraints.MinRelayParentNumber,
			relayParentNumber:    relayParent.Number,
		}
	}

	if commitments.NewValidationCode != nil {
		switch constraints.UpgradeRestriction.(type) {
		case *parachaintypes.Present:
			return errCodeUpgradeRestricted
		}
	}

	announcedCodeSize := 0
	if commitments.NewValidationCode != nil {
		announcedCodeSize = len(*commitments.NewValidationCode)
	}

	if uint32(announcedCodeSize) > constraints.MaxCodeSize {
		return &errCodeSizeTooLarge{
			maxAllowed: constraints.MaxCodeSize,
			newSize:    uint32(announcedCodeSize),
		}
	}

	if modifications.DmpMessagesProcessed == 0 {
		if len(constraints.DmpRemainingMessages) > 0 &&
			constraints.DmpRemainingMessages[0] <= relayParent.Number {
			return errDmpAdvancementRule{}
		}
	}

	if len(commitments.HorizontalMessages) > int(constraints.MaxHrmpNumPerCandidate) {
		return &errHrmpMessagesPerCandidateOverflow{
			messagesAllowed:   constraints.MaxHrmpNumPerCandidate,
			messagesSubmitted: uint32(len(commitments.HorizontalMessages)),
		}
	}

	if modifications.UmpMessagesSent > constraints.MaxUmpNumPerCandidate {
		return &errUmpMessagesPerCandidateOverflow{
			messagesAllowed:   constraints.MaxUmpNumPerCandidate,
			messagesSubmitted: modifications.UmpMessagesSent,
		}
	}

	if err := CheckModifications(constraints, modifications); err != nil {
		return &errOutputsInvalid{modificationError: err}
	}

	return nil
}
