// Package sco implements the single global SCO/eSCO state machine (C4) and
// its event dispatcher (C5): the core that drives one active synchronous
// voice link across any number of registered peers, coordinating the
// controller adapter and the codec negotiator to do it.
package sco

// State is one of the eleven states the core's global control block can be
// in. The zero value is StateShutdown, the machine's initial and terminal
// state.
type State int

// States, in the order spec.md §4.4 lists them. StateCodec only appears in
// the transition table when Config.WidebandEnabled is set.
const (
	StateShutdown State = iota
	StateListen
	StateCodec
	StateOpening
	StateOpenCl
	StateOpenXfer
	StateOpen
	StateClosing
	StateCloseOp
	StateCloseXfer
	StateShutting
)

func (s State) String() string {
	switch s {
	case StateShutdown:
		return "SHUTDOWN"
	case StateListen:
		return "LISTEN"
	case StateCodec:
		return "CODEC"
	case StateOpening:
		return "OPENING"
	case StateOpenCl:
		return "OPEN_CL"
	case StateOpenXfer:
		return "OPEN_XFER"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateCloseOp:
		return "CLOSE_OP"
	case StateCloseXfer:
		return "CLOSE_XFER"
	case StateShutting:
		return "SHUTTING"
	default:
		return "UNKNOWN"
	}
}

// Event is one of the ten events the machine consumes. CiData (outbound
// audio available) is handled on its own path, not through this enum
// (spec.md §4.5).
type Event int

// Events, in the order spec.md §4.4 lists them.
const (
	EventListen Event = iota
	EventOpen
	EventOpenPending
	EventXfer
	EventCodecDone
	EventReopen
	EventClose
	EventShutdown
	EventConnOpen
	EventConnClose
)

func (e Event) String() string {
	switch e {
	case EventListen:
		return "Listen"
	case EventOpen:
		return "Open"
	case EventOpenPending:
		return "OpenPending"
	case EventXfer:
		return "Xfer"
	case EventCodecDone:
		return "CodecDone"
	case EventReopen:
		return "Reopen"
	case EventClose:
		return "Close"
	case EventShutdown:
		return "Shutdown"
	case EventConnOpen:
		return "ConnOpen"
	case EventConnClose:
		return "ConnClose"
	default:
		return "Unknown"
	}
}
