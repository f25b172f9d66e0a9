// Package hciradio defines the controller adapter (C2): the thin capability
// set the SCO/eSCO core requires from a Bluetooth controller, plus a real
// Linux socket-backed implementation (socket) and a deterministic in-memory
// one for tests and the demo CLI (sim).
package hciradio

import (
	"golang.org/x/net/context"

	"github.com/pkg/errors"

	"github.com/CypherOS/system-bt/internal/scb"
)

// ErrUnknownHandle is returned by ReadPeerAddr for a handle the controller
// has no record of.
var ErrUnknownHandle = errors.New("hciradio: unknown connection handle")

// Status is the outcome of a controller request. It mirrors the small
// vocabulary the original BTM layer returns (BTM_CMD_STARTED, BTM_SUCCESS,
// BTM_UNKNOWN_ADDR, ...) without pulling in the full HCI status taxonomy.
type Status int

// Status values returned by Controller methods.
const (
	StatusStarted Status = iota
	StatusSuccess
	StatusAlreadyGone
	StatusUnknownAddr
	StatusImmediateFail
)

func (s Status) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusSuccess:
		return "success"
	case StatusAlreadyGone:
		return "already-gone"
	case StatusUnknownAddr:
		return "unknown-addr"
	case StatusImmediateFail:
		return "immediate-fail"
	default:
		return "unknown"
	}
}

// RetransmissionEffort selects the controller's eSCO retransmission policy.
type RetransmissionEffort uint8

// Retransmission effort values, mirroring ESCO_RETRANSMISSION_*.
const (
	RetransmissionEffortOptimizeBandwidth RetransmissionEffort = 0x00
	RetransmissionEffortPower             RetransmissionEffort = 0x01
	RetransmissionEffortOptimizeQuality   RetransmissionEffort = 0x02
	RetransmissionEffortDontCare          RetransmissionEffort = 0xFF
)

// Packet type mask bits, mirroring ESCO_PKT_TYPES_MASK_*. NoEDREsco is the OR
// of the four "disable EDR eSCO packet" bits and, when it swallows the whole
// requested mask, signals that the controller can offer plain SCO packet
// types only (spec.md §6, "downgrade to plain SCO" detection).
const (
	PacketTypeNo2EV3 uint16 = 1 << iota
	PacketTypeNo3EV3
	PacketTypeNo2EV5
	PacketTypeNo3EV5

	NoEDREsco = PacketTypeNo2EV3 | PacketTypeNo3EV3 | PacketTypeNo2EV5 | PacketTypeNo3EV5

	// EscoLinkOnlyMask and ScoLinkOnlyMask identify packet-type bits that
	// restrict a link to eSCO-only or SCO-only packets respectively.
	EscoLinkOnlyMask uint16 = 0x0360
	ScoLinkOnlyMask  uint16 = 0x0007
)

// DataPath selects where SCO audio is routed on the controller side.
type DataPath uint8

// Data path values, mirroring ESCO_DATA_PATH_*.
const (
	DataPathHCI DataPath = iota
	DataPathPCM
)

// SyncParams are the (enhanced) Setup Synchronous Connection parameters the
// core builds per spec.md §4.4's originate policy and §4.2's accept policy.
type SyncParams struct {
	TxBandwidth          uint32
	RxBandwidth          uint32
	MaxLatencyMS         uint16
	VoiceSetting         uint16
	RetransmissionEffort RetransmissionEffort
	PacketTypes          uint16
	InputDataPath        DataPath
}

// ReadFunc receives an inbound audio frame from the controller. The host
// path owns the frame's lifetime (spec.md §4.5).
type ReadFunc func(frame []byte)

// WriteFunc pulls the next pending outbound audio frame, reporting ok=false
// when none is left. Machine.CiData drains one and submits each frame through
// Controller.WriteAudio; ConfigAudioPath takes no WriteFunc.
type WriteFunc func() (frame []byte, ok bool)

// ConnRequestParams describes a peer-initiated connection request, handed to
// the ConnRequest handler. The core caches it while a transfer accept is
// pending, but answers RespondConnRequest with its own CVSD parameters rather
// than these.
type ConnRequestParams struct {
	LinkType uint8
	Params   SyncParams
}

// Controller is the capability set the core requires (spec.md §4.2). Event
// delivery is callback-based: the adapter invokes the registered handler on
// its own goroutine, and it is the caller's (C5's) responsibility to
// serialize those calls onto the single event loop.
type Controller interface {
	// CreateSync initiates a synchronous connection (isOriginator=true) or
	// prepares an accept slot (isOriginator=false, i.e. "listen"). ctx bounds
	// the underlying command round trip; the core itself never cancels it
	// (spec.md §1 leaves cancellation policy to the surrounding AG) but a
	// socket-backed controller may still honor ctx.Done() on the write.
	CreateSync(ctx context.Context, peer scb.Addr, isOriginator bool, params SyncParams) (idx uint16, status Status, err error)

	// RemoveSync requests teardown of idx.
	RemoveSync(ctx context.Context, idx uint16) (Status, error)

	// RespondConnRequest accepts or rejects a pending peer-initiated
	// request previously delivered via the ConnRequest handler.
	RespondConnRequest(ctx context.Context, idx uint16, accept bool, reason uint8, params SyncParams) error

	// SetEScoMode stores default parameters for the next CreateSync(..., isOriginator=true, ...).
	SetEScoMode(params SyncParams)

	// ReadPeerAddr resolves the peer address bound to idx.
	ReadPeerAddr(idx uint16) (scb.Addr, error)

	// SupportsEnhancedSetup reports whether the controller implements the
	// enhanced Setup/Accept Synchronous Connection commands, which bundle
	// voice settings. When false, SetVoiceSettings must be called
	// separately (spec.md §4.2, "Enhanced vs. legacy setup").
	SupportsEnhancedSetup() bool

	// SetVoiceSettings issues the legacy Write Voice Settings command. It is
	// a no-op when SupportsEnhancedSetup is true.
	SetVoiceSettings(v uint16) error

	// ConfigAudioPath wires (or tears down, enable=false) the host-routed
	// audio path. A controller that routes audio entirely on-chip may treat
	// this as a no-op.
	ConfigAudioPath(path DataPath, onRead ReadFunc, enable bool) error

	// WriteAudio submits one outbound audio frame for idx.
	WriteAudio(idx uint16, frame []byte) error

	// SetConnCompleteHandler registers the callback for ConnComplete(idx).
	SetConnCompleteHandler(func(idx uint16))
	// SetDiscCompleteHandler registers the callback for DiscComplete(idx).
	SetDiscCompleteHandler(func(idx uint16))
	// SetConnRequestHandler registers the callback for ConnRequest(idx, params).
	SetConnRequestHandler(func(idx uint16, params ConnRequestParams))
	// SetLinkChangeHandler registers the callback for LinkChange(idx, newParams).
	SetLinkChangeHandler(func(idx uint16, params SyncParams))
}
