package protocol

import (
	"fmt"
)

// Phase is a broadcast step within a run.
type Phase uint8

const (
	PhaseKeyExchange Phase = iota + 1
	PhaseReveal
	PhaseDCExp
	PhaseDCXor
	PhaseConfirm
)

func (p Phase) String() string {
	switch p {
	case PhaseKeyExchange:
		return "key_exchange"
	case PhaseReveal:
		return "reveal"
	case PhaseDCExp:
		return "dc_exp"
	case PhaseDCXor:
		return "dc_xor"
	case PhaseConfirm:
		return "confirm"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// State is the position of an engine in the run loop.
type State int32

const (
	StateKeyExchange State = iota
	StateKeyRevealAndBlame
	StateSlotReservation
	StateMessageExchange
	StateConfirm
	StateSuccess
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateKeyExchange:
		return "KEY_EXCHANGE"
	case StateKeyRevealAndBlame:
		return "KEY_REVEAL_AND_BLAME"
	case StateSlotReservation:
		return "SLOT_RESERVATION"
	case StateMessageExchange:
		return "MESSAGE_EXCHANGE"
	case StateConfirm:
		return "CONFIRM"
	case StateSuccess:
		return "SUCCESS"
	case StateFatal:
		return "FATAL"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}
