package sco

import (
	"github.com/CypherOS/system-bt/internal/hciradio"
	"github.com/CypherOS/system-bt/internal/scb"
)

// control is the single global SCO control block (spec.md §3's "Global SCO
// control"). Only the event loop goroutine writes it; the api.go entry points
// (Open, Close, IsOpen, IsOpening) read it from other goroutines under
// Machine.mu.
type control struct {
	state State

	pCurrScb *scb.SCB
	pXferScb *scb.SCB

	curIdx  uint16 // controller handle of the active attempt
	isLocal bool   // last attempt's initiator side

	connData       hciradio.ConnRequestParams // cached peer connection request, for deferred accept
	connIdx        uint16                     // controller handle that came with connData
	setAudioStatus bool                       // result of the external pre-SCO setup

	pendingParams hciradio.SyncParams // params computed by beginOriginate, consumed by handleOpenPending
}

// Observer receives the upward notifications spec.md §6 describes.
type Observer interface {
	AudioOpen(handle int, appID uint32)
	AudioClose(handle int, appID uint32)
}

// PowerManager models the original's bta_sys_busy/bta_sys_sco_* hook family
// (SPEC_FULL.md §5 item 4): Busy is signalled when an attempt starts, and
// Use/Unuse bracket an open link. The machine does not call Idle.
type PowerManager interface {
	Busy(peer scb.Addr)
	Idle(peer scb.Addr)
	Use(peer scb.Addr)
	Unuse(peer scb.Addr)
}

// NopPowerManager satisfies PowerManager with no-ops, for callers that don't
// wire in power management.
type NopPowerManager struct{}

// Busy implements PowerManager.
func (NopPowerManager) Busy(scb.Addr) {}

// Idle implements PowerManager.
func (NopPowerManager) Idle(scb.Addr) {}

// Use implements PowerManager.
func (NopPowerManager) Use(scb.Addr) {}

// Unuse implements PowerManager.
func (NopPowerManager) Unuse(scb.Addr) {}

// CallActiver reports whether a call is still active for the peer owning an
// SCB, gating PowerManager.Unuse on close the way the original keeps the
// link warm for an active call (SPEC_FULL.md §5 item 4).
type CallActiver interface {
	CallActive(s *scb.SCB) bool
}

type nopCallActiver struct{}

func (nopCallActiver) CallActive(*scb.SCB) bool { return false }

// AudioSink receives inbound audio frames when Config.AudioRoutedThroughHost
// routes them through the host (spec.md §4.5 "Incoming audio").
type AudioSink interface {
	AudioData(handle int, appID uint32, frame []byte)
}
