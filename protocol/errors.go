package protocol

import (
	"errors"
)

var (
	// ErrInput reports malformed local configuration or input. It is fatal
	// and never retried.
	ErrInput = errors.New("invalid input")

	// ErrNoPeersLeft is the terminal failure when exclusions empty the peer set.
	ErrNoPeersLeft = errors.New("no peers left")

	// ErrMaxRuns is returned when Config.MaxRuns runs failed to confirm.
	ErrMaxRuns = errors.New("run limit reached")

	// ErrProtocolViolation marks a payload that a peer could not have sent
	// while following the protocol. The sender gets excluded.
	ErrProtocolViolation = errors.New("protocol violation")
)

// ExclusionReason records why a peer was removed from the active set.
type ExclusionReason string

const (
	// ExclusionMissing is a broadcast that did not arrive before the deadline.
	ExclusionMissing ExclusionReason = "missing"
	// ExclusionInvalid is a payload that failed authentication or validation.
	ExclusionInvalid ExclusionReason = "invalid"
	// ExclusionReplayMismatch is a revealed secret that does not reproduce the
	// peer's broadcasts.
	ExclusionReplayMismatch ExclusionReason = "replay_mismatch"
	// ExclusionSlotCollision is a slot witness shared with another peer.
	ExclusionSlotCollision ExclusionReason = "slot_collision"
	// ExclusionConfirmationMismatch is a confirmation over a different transcript.
	ExclusionConfirmationMismatch ExclusionReason = "confirmation_mismatch"
)
