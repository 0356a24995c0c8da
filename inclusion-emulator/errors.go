// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

package inclusionemulator

import (
	"errors"
	"fmt"

	parachaintypes "github.com/ChainSafe/prospective-parachains/types"
)

var (
	errAppliedNonexistentCodeUpgrade   = errors.New("applied non-existent code upgrade")
	errCodeUpgradeRestricted           = errors.New("code upgrade is restricted")
	errPersistedValidationDataMismatch = errors.New("persisted validation data mismatch")
)

type errValidationCodeMismatch struct {
	expected parachaintypes.ValidationCodeHash
	got      parachaintypes.ValidationCodeHash
}

func (e *errValidationCodeMismatch) Error() string {
	return fmt.Sprintf("validation code mismatch: expected %s, got %s", e.expected, e.got)
}

// errOutputsInvalid wraps a modification error raised while checking the
// outputs of a candidate against the operating constraints.
type errOutputsInvalid struct {
	modificationError error
}

func (e *errOutputsInvalid) Error() string {
	return fmt.Sprintf("candidate outputs invalid: %s", e.modificationError)
}

func (e *errOutputsInvalid) Unwrap() error {
	return e.modificationError
}

type errDisallowedHrmpWatermark struct {
	blockNumber uint
}

func (e *errDisallowedHrmpWatermark) Error() string {
	return fmt.Sprintf("disallowed HRMP watermark: %d", e.blockNumber)
}

type errNoSuchHrmpChannel struct {
	paraID parachaintypes.ParaID
}

func (e *errNoSuchHrmpChannel) Error() string {
	return fmt.Sprintf("no such HRMP channel: %d", e.paraID)
}

type errHrmpBytesOverflow struct {
	paraID         parachaintypes.ParaID
	bytesRemaining uint32
	bytesSubmitted uint32
}

func (e *errHrmpBytesOverflow) Error() string {
	return fmt.Sprintf("HRMP bytes overflow for channel %d: remaining %d, submitted %d",
		e.paraID, e.bytesRemaining, e.bytesSubmitted)
}

type errHrmpMessagesOverflow struct {
	paraID            parachaintypes.ParaID
	messagesRemaining uint32
	messagesSubmitted uint32
}

func (e *errHrmpMessagesOverflow) Error() string {
	return fmt.Sprintf("HRMP messages overflow for channel %d: remaining %d, submitted %d",
		e.paraID, e.messagesRemaining, e.messagesSubmitted)
}

type errUmpMessagesOverflow struct {
	messagesRemaining uint32
	messagesSubmitted uint32
}

func (e *errUmpMessagesOverflow) Error() string {
	return fmt.Sprintf("UMP messages overflow: remaining %d, submitted %d",
		e.messagesRemaining, e.messagesSubmitted)
}

type errUmpBytesOverflow struct {
	bytesRemaining uint32
	bytesSubmitted uint32
}

func (e *errUmpBytesOverflow) Error() string {
	return fmt.Sprintf("UMP bytes overflow: remaining %d, submitted %d",
		e.bytesRemaining, e.bytesSubmitted)
}

type errDmpMessagesUnderflow struct {
	messagesRemaining uint32
	messagesProcessed uint32
}

func (e *errDmpMessagesUnderflow) Error() string {
	return fmt.Sprintf("DMP messages underflow: remaining %d, processed %d",
		e.messagesRemaining, e.messagesProcessed)
}

type errDmpAdvancementRule struct{}

func (errDmpAdvancementRule) Error() string {
	return "DMP advancement rule: mustn't go below minimum relay parent yet have messages pending"
}

type errUmpMessagesPerCandidateOverflow struct {
	messagesAllowed   uint32
	messagesSubmitted uint32
}

func (e *errUmpMessagesPerCandidateOverflow) Error() string {
	return fmt.Sprintf("UMP messages per candidate overflow: allowed %d, submitted %d",
		e.messagesAllowed, e.messagesSubmitted)
}

type errHrmpMessagesPerCandidateOverflow struct {
	messagesAllowed   uint32
	messagesSubmitted uint32
}

func (e *errHrmpMessagesPerCandidateOverflow) Error() string {
	return fmt.Sprintf("HRMP messages per candidate overflow: allowed %d, submitted %d",
		e.messagesAllowed, e.messagesSubmitted)
}

type errHrmpMessagesDescendingOrDuplicate struct {
	index uint
}

func (e *errHrmpMessagesDescendingOrDuplicate) Error() string {
	return fmt.Sprintf("HRMP messages are not sorted or contain duplicates at index %d", e.index)
}

type errRelayParentTooOld struct {
	minRelayParentNumber uint
	relayParentNumber    uint
}

func (e *errRelayParentTooOld) Error() string {
	return fmt.Sprintf("relay parent too old: minimum %d, actual %d",
		e.minRelayParentNumber, e.relayParentNumber)
}

type errCodeSizeTooLarge struct {
	maxAllowed uint32
	newSize    uint32
}

func (e *errCodeSizeTooLarge) Error() string {
	return fmt.Sprintf("validation code size too large: max %d, actual %d",
		e.maxAllowed, e.newSize)
}
