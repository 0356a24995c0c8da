// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package inclusionemulator emulates the relay-chain inclusion rules for
// prospective parachain blocks. Given the constraints in effect at some
// relay-chain block and the commitments of a candidate, it decides whether
// the candidate could be included and what constraints its successor
// would operate under.
package inclusionemulator

import (
	"sort"

	parachaintypes "github.com/ChainSafe/prospective-parachains/types"

	"github.com/ChainSafe/prospective-parachains/lib/common"
	ethmath "github.com/ethereum/go-ethereum/common/math"
)

// RelayChainBlockInfo contains the minimum information about a relay-chain
// block needed by the emulator.
type RelayChainBlockInfo struct {
	Hash        common.Hash
	StorageRoot common.Hash
	Number      uint
}

// InboundHrmpLimitations are the constraints on inbound HRMP channels.
type InboundHrmpLimitations struct {
	// An exhaustive set of all valid watermarks, sorted in ascending order.
	// It is only expected to contain block numbers at which messages were
	// previously sent to the para, excluding the most recent head.
	ValidWatermarks []uint
}

// OutboundHrmpChannelLimitations are the constraints on outbound HRMP channels.
type OutboundHrmpChannelLimitations struct {
	BytesRemaining    uint32
	MessagesRemaining uint32
}

// FutureValidationCode is the future validation code hash, if any, and at
// what relay-parent number the upgrade would be minimally applied.
type FutureValidationCode struct {
	BlockNumber        uint
	ValidationCodeHash parachaintypes.ValidationCodeHash
}

// Constraints on the actions that can be taken by a new parachain block.
// These limitations are implicitly associated with some particular
// parachain, which should be apparent from usage.
type Constraints struct {
	// The minimum relay-parent number accepted under these constraints.
	MinRelayParentNumber uint
	// The maximum Proof-of-Validity size allowed, in bytes.
	MaxPoVSize uint32
	// The maximum new validation code size allowed, in bytes.
	MaxCodeSize uint32
	// The amount of UMP messages remaining.
	UmpRemaining uint32
	// The amount of UMP bytes remaining.
	UmpRemainingBytes uint32
	// The maximum number of UMP messages allowed per candidate.
	MaxUmpNumPerCandidate uint32
	// Remaining DMP queue. Only includes sent-at block numbers.
	DmpRemainingMessages []uint
	// The limitations of all registered inbound HRMP channels.
	HrmpInbound InboundHrmpLimitations
	// The limitations of all registered outbound HRMP channels.
	HrmpChannelsOut map[parachaintypes.ParaID]OutboundHrmpChannelLimitations
	// The maximum number of HRMP messages allowed per candidate.
	MaxHrmpNumPerCandidate uint32
	// The required parent head-data of the parachain.
	RequiredParent parachaintypes.HeadData
	// The expected validation-code-hash of this parachain.
	ValidationCodeHash parachaintypes.ValidationCodeHash
	// The code upgrade restriction signal as-of this parachain.
	UpgradeRestriction parachaintypes.UpgradeRestriction
	// The future validation code hash, if any, and at what relay-parent
	// number the upgrade would be minimally applied.
	FutureValidationCode *FutureValidationCode
}

// Clone returns a deep copy of the constraints
func (c *Constraints) Clone() *Constraints {
	cloned := *c

	cloned.DmpRemainingMessages = make([]uint, len(c.DmpRemainingMessages))
	copy(cloned.DmpRemainingMessages, c.DmpRemainingMessages)

	cloned.HrmpInbound.ValidWatermarks = make([]uint, len(c.HrmpInbound.ValidWatermarks))
	copy(cloned.HrmpInbound.ValidWatermarks, c.HrmpInbound.ValidWatermarks)

	cloned.HrmpChannelsOut = make(map[parachaintypes.ParaID]OutboundHrmpChannelLimitations,
		len(c.HrmpChannelsOut))
	for id, limits := range c.HrmpChannelsOut {
		cloned.HrmpChannelsOut[id] = limits
	}

	if c.FutureValidationCode != nil {
		futureCode := *c.FutureValidationCode
		cloned.FutureValidationCode = &futureCode
	}

	return &cloned
}

// HrmpWatermarkUpdateType is the kind of HrmpWatermarkUpdate
type HrmpWatermarkUpdateType int

const (
	// Head means the update is to the relay parent itself
	Head HrmpWatermarkUpdateType = iota
	// Trunk means the update is to an older relay-chain block
	Trunk
)

// HrmpWatermarkUpdate is an update to the HRMP watermark
type HrmpWatermarkUpdate struct {
	Type  HrmpWatermarkUpdateType
	Block uint
}

// Watermark returns the block number of the update
func (h HrmpWatermarkUpdate) Watermark() uint {
	return h.Block
}

// OutboundHrmpChannelModification are modifications to an outbound HRMP channel
type OutboundHrmpChannelModification struct {
	BytesSubmitted    uint32
	MessagesSubmitted uint32
}

// ConstraintModifications are modifications to constraints as a result
// of prospective candidates.
type ConstraintModifications struct {
	// The required parent head to build upon.
	RequiredParent *parachaintypes.HeadData
	// The new HRMP watermark.
	HrmpWatermark *HrmpWatermarkUpdate
	// Outbound HRMP channel modifications.
	OutboundHrmp map[parachaintypes.ParaID]OutboundHrmpChannelModification
	// The amount of UMP messages sent.
	UmpMessagesSent uint32
	// The amount of UMP bytes sent.
	UmpBytesSent uint32
	// The amount of DMP messages processed.
	DmpMessagesProcessed uint32
	// Whether a pending code upgrade has been applied.
	CodeUpgradeApplied bool
}

// NewConstraintModificationsIdentity returns the identity modifications:
// these can be applied to any constraints and yield the same constraints.
func NewConstraintModificationsIdentity() *ConstraintModifications {
	return &ConstraintModifications{
		OutboundHrmp: make(map[parachaintypes.ParaID]OutboundHrmpChannelModification),
	}
}

// Clone returns a deep copy of the modifications
func (cm *ConstraintModifications) Clone() *ConstraintModifications {
	cloned := *cm
	cloned.OutboundHrmp = make(map[parachaintypes.ParaID]OutboundHrmpChannelModification,
		len(cm.OutboundHrmp))
	for id, mods := range cm.OutboundHrmp {
		cloned.OutboundHrmp[id] = mods
	}
	return &cloned
}

// Stack stacks other modifications on top of these. This does no
// sanity-checking, so if other is garbage relative to these, the new
// value will be garbage as well. This is an addition which is not
// commutative.
func (cm *ConstraintModifications) Stack(other *ConstraintModifications) {
	if other.RequiredParent != nil {
		cm.RequiredParent = other.RequiredParent
	}

	if other.HrmpWatermark != nil {
		cm.HrmpWatermark = other.HrmpWatermark
	}

	for id, mods := range other.OutboundHrmp {
		record := cm.OutboundHrmp[id]
		record.BytesSubmitted += mods.BytesSubmitted
		record.MessagesSubmitted += mods.MessagesSubmitted
		cm.OutboundHrmp[id] = record
	}

	cm.UmpMessagesSent += other.UmpMessagesSent
	cm.UmpBytesSent += other.UmpBytesSent
	cm.DmpMessagesProcessed += other.DmpMessagesProcessed
	cm.CodeUpgradeApplied = cm.CodeUpgradeApplied || other.CodeUpgradeApplied
}

// CheckModifications checks whether the modifications are valid against
// the constraints without applying them.
func CheckModifications(c *Constraints, modifications *ConstraintModifications) error {
	if modifications.HrmpWatermark != nil && modifications.HrmpWatermark.Type == Trunk {
		if !containsWatermark(c.HrmpInbound.ValidWatermarks, modifications.HrmpWatermark.Watermark()) {
			return &errDisallowedHrmpWatermark{blockNumber: modifications.HrmpWatermark.Watermark()}
		}
	}

	for id, outboundHrmpMod := range modifications.OutboundHrmp {
		outbound, ok := c.HrmpChannelsOut[id]
		if !ok {
			return &errNoSuchHrmpChannel{paraID: id}
		}

		if _, underflow := ethmath.SafeSub(uint64(outbound.BytesRemaining),
			uint64(outboundHrmpMod.BytesSubmitted)); underflow {
			return &errHrmpBytesOverflow{
				paraID:         id,
				bytesRemaining: outbound.BytesRemaining,
				bytesSubmitted: outboundHrmpMod.BytesSubmitted,
			}
		}

		if _, underflow := ethmath.SafeSub(uint64(outbound.MessagesRemaining),
			uint64(outboundHrmpMod.MessagesSubmitted)); underflow {
			return &errHrmpMessagesOverflow{
				paraID:            id,
				messagesRemaining: outbound.MessagesRemaining,
				messagesSubmitted: outboundHrmpMod.MessagesSubmitted,
			}
		}
	}

	if _, underflow := ethmath.SafeSub(uint64(c.UmpRemaining),
		uint64(modifications.UmpMessagesSent)); underflow {
		return &errUmpMessagesOverflow{
			messagesRemaining: c.UmpRemaining,
			messagesSubmitted: modifications.UmpMessagesSent,
		}
	}

	if _, underflow := ethmath.SafeSub(uint64(c.UmpRemainingBytes),
		uint64(modifications.UmpBytesSent)); underflow {
		return &errUmpBytesOverflow{
			bytesRemaining: c.UmpRemainingBytes,
			bytesSubmitted: modifications.UmpBytesSent,
		}
	}

	if _, underflow := ethmath.SafeSub(uint64(len(c.DmpRemainingMessages)),
		uint64(modifications.DmpMessagesProcessed)); underflow {
		return &errDmpMessagesUnderflow{
			messagesRemaining: uint32(len(c.DmpRemainingMessages)),
			messagesProcessed: modifications.DmpMessagesProcessed,
		}
	}

	if c.FutureValidationCode == nil && modifications.CodeUpgradeApplied {
		return errAppliedNonexistentCodeUpgrade
	}

	return nil
}

// ApplyModifications applies the modifications to the constraints,
// returning the new constraints the successor of the candidate which
// produced the modifications must operate under.
func ApplyModifications(c *Constraints, modifications *ConstraintModifications) (
	*Constraints, error) {
	newConstraints := c.Clone()

	if modifications.RequiredParent != nil {
		newConstraints.RequiredParent = *modifications.RequiredParent
	}

	if modifications.HrmpWatermark != nil {
		watermarks := newConstraints.HrmpInbound.ValidWatermarks
		watermark := modifications.HrmpWatermark.Watermark()
		pos := sort.Search(len(watermarks), func(i int) bool {
			return watermarks[i] >= watermark
		})

		switch {
		case pos < len(watermarks) && watermarks[pos] == watermark:
			// Exact match, so this is OK in all cases.
			newConstraints.HrmpInbound.ValidWatermarks = watermarks[pos+1:]
		case modifications.HrmpWatermark.Type == Head:
			// Updates to the relay parent are always OK.
			newConstraints.HrmpInbound.ValidWatermarks = watermarks[pos:]
		default:
			// Trunk update landing on a disallowed watermark is not OK.
			return nil, &errDisallowedHrmpWatermark{blockNumber: watermark}
		}
	}

	for id, outboundHrmpMod := range modifications.OutboundHrmp {
		outbound, ok := newConstraints.HrmpChannelsOut[id]
		if !ok {
			return nil, &errNoSuchHrmpChannel{paraID: id}
		}

		if outboundHrmpMod.BytesSubmitted > outbound.BytesRemaining {
			return nil, &errHrmpBytesOverflow{
				paraID:         id,
				bytesRemaining: outbound.BytesRemaining,
				bytesSubmitted: outboundHrmpMod.BytesSubmitted,
			}
		}

		if outboundHrmpMod.MessagesSubmitted > outbound.MessagesRemaining {
			return nil, &errHrmpMessagesOverflow{
				paraID:            id,
				messagesRemaining: outbound.MessagesRemaining,
				messagesSubmitted: outboundHrmpMod.MessagesSubmitted,
			}
		}

		outbound.BytesRemaining -= outboundHrmpMod.BytesSubmitted
		outbound.MessagesRemaining -= outboundHrmpMod.MessagesSubmitted
		newConstraints.HrmpChannelsOut[id] = outbound
	}

	if modifications.UmpMessagesSent > newConstraints.UmpRemaining {
		return nil, &errUmpMessagesOverflow{
			messagesRemaining: newConstraints.UmpRemaining,
			messagesSubmitted: modifications.UmpMessagesSent,
		}
	}
	newConstraints.UmpRemaining -= modifications.UmpMessagesSent

	if modifications.UmpBytesSent > newConstraints.UmpRemainingBytes {
		return nil, &errUmpBytesOverflow{
			bytesRemaining: newConstraints.UmpRemainingBytes,
			bytesSubmitted: modifications.UmpBytesSent,
		}
	}
	newConstraints.UmpRemainingBytes -= modifications.UmpBytesSent

	if modifications.DmpMessagesProcessed > uint32(len(newConstraints.DmpRemainingMessages)) {
		return nil, &errDmpMessagesUnderflow{
			messagesRemaining: uint32(len(newConstraints.DmpRemainingMessages)),
			messagesProcessed: modifications.DmpMessagesProcessed,
		}
	}
	newConstraints.DmpRemainingMessages =
		newConstraints.DmpRemainingMessages[modifications.DmpMessagesProcessed:]

	if modifications.CodeUpgradeApplied {
		if newConstraints.FutureValidationCode == nil {
			return nil, errAppliedNonexistentCodeUpgrade
		}

		newConstraints.ValidationCodeHash = newConstraints.FutureValidationCode.ValidationCodeHash
		newConstraints.FutureValidationCode = nil
	}

	return newConstraints, nil
}

func containsWatermark(validWatermarks []uint, watermark uint) bool {
	pos := sort.Search(len(validWatermarks), func(i int) bool {
		return validWatermarks[i] >= watermark
	})
	return pos < len(validWatermarks) && validWatermarks[pos] == watermark
}
