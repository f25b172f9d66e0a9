package sco

import (
	"github.com/CypherOS/system-bt/internal/hciradio"
	"github.com/CypherOS/system-bt/internal/scb"
)

// dispatch runs the eleven-state, ten-event transition table of spec.md
// §4.4. Peer-initiated ConnRequest is handled separately by
// acceptConnRequest, before this is ever reached (see handle in machine.go).
func (m *Machine) dispatch(e event) {
	switch e.kind {
	case EventListen:
		m.onEventListen(e.scb)
	case EventOpen:
		m.onEventOpen(e.scb)
	case EventOpenPending:
		m.onEventOpenPending(e.scb, e.ok)
	case EventXfer:
		m.onEventXfer(e.scb)
	case EventCodecDone:
		m.onEventCodecDone(e.scb)
	case EventReopen:
		m.onEventReopen(e.scb)
	case EventClose:
		m.onEventClose(e.scb)
	case EventShutdown:
		m.onEventShutdown(e.scb)
	case EventConnOpen:
		m.onEventConnOpen(e.idx)
	case EventConnClose:
		m.onEventConnClose(e.idx)
	default:
		logger.Warn("sco: unhandled event kind", "kind", e.kind)
	}
}

func (m *Machine) ignore(e Event, s *scb.SCB) {
	logger.Warn("sco: ignored event", "state", m.ctl.state, "event", e, "peer", peerOf(s))
}

func peerOf(s *scb.SCB) scb.Addr {
	if s == nil {
		return scb.Addr{}
	}
	return s.PeerAddr
}

// onEventListen is the table's Listen column: create_listen(s) in every
// state except the two transfer states and CLOSE_XFER, where a listen slot
// would race the in-flight teardown; SHUTDOWN additionally re-enters LISTEN.
func (m *Machine) onEventListen(s *scb.SCB) {
	switch m.ctl.state {
	case StateOpenXfer, StateCloseXfer:
		m.ignore(EventListen, s)
	case StateShutdown:
		m.createListen(s)
		m.setState(StateListen)
	default:
		m.createListen(s)
	}
}

// onEventOpen is the table's Open column.
func (m *Machine) onEventOpen(s *scb.SCB) {
	switch m.ctl.state {
	case StateListen:
		m.removeListen(s)
		m.originateOrCodec(s)
	case StateOpenCl:
		m.originateOrCodec(s)
	case StateClosing:
		m.setState(StateCloseOp)
	default:
		m.ignore(EventOpen, s)
	}
}

// onEventOpenPending is the table's OpenPending column: only OPENING acts on
// it, finishing the originate policy's "create_pending_sco(is_local)" step.
func (m *Machine) onEventOpenPending(s *scb.SCB, ok bool) {
	if m.ctl.state != StateOpening {
		m.ignore(EventOpenPending, s)
		return
	}
	m.handleOpenPending(s, ok)
}

// onEventXfer is the table's Xfer column: a local sco_open() call routed
// here because some other SCB currently owns the link (api.go's Open). This
// is distinct from a peer ConnRequest preempting the link (acceptConnRequest
// uses OPEN_XFER for that); a local Xfer always lands in CLOSE_XFER.
func (m *Machine) onEventXfer(s *scb.SCB) {
	switch m.ctl.state {
	case StateCodec, StateOpening, StateOpenCl, StateClosing:
		m.stashLocalXfer(s)
	case StateOpen:
		m.removeActive(m.ctl.pCurrScb)
		m.stashLocalXfer(s)
	default:
		m.ignore(EventXfer, s)
	}
}

func (m *Machine) stashLocalXfer(s *scb.SCB) {
	m.ctl.pXferScb = s
	m.setState(StateCloseXfer)
}

// onEventCodecDone is the table's CodecDone column: only CODEC acts on it,
// moving to the originate policy once the peer has agreed on a codec.
func (m *Machine) onEventCodecDone(s *scb.SCB) {
	if m.ctl.state != StateCodec {
		m.ignore(EventCodecDone, s)
		return
	}
	m.beginOriginate(s)
}

// onEventReopen is the table's Reopen column: only OPENING acts on it. The
// mandatory OPENING->CODEC transition always happens first; renegotiation
// itself only starts when NeedsNegotiation says the peer would actually
// agree to something new, mirroring originateOrCodec's same-goroutine-safe
// skip path. Called directly from disconnectRetryLadder, never via post:
// the retry ladder already runs on the loop goroutine, and post would
// deadlock waiting on a done channel nothing else can close.
func (m *Machine) onEventReopen(s *scb.SCB) {
	if m.ctl.state != StateOpening {
		m.ignore(EventReopen, s)
		return
	}
	m.ctl.pCurrScb = s
	m.setState(StateCodec)
	if m.cfg.WidebandEnabled && m.negotiator.NeedsNegotiation(s) {
		m.negotiator.Start(s)
		return
	}
	m.beginOriginate(s)
}

// onEventClose is the table's Close column.
func (m *Machine) onEventClose(s *scb.SCB) {
	switch m.ctl.state {
	case StateCodec:
		m.negotiator.Cancel(s)
		m.setState(StateListen)
	case StateOpening:
		m.setState(StateOpenCl)
	case StateOpenXfer:
		m.ctl.pXferScb = nil
		m.removeActive(m.ctl.pCurrScb)
		m.setState(StateClosing)
	case StateOpen:
		m.removeActive(m.ctl.pCurrScb)
		m.setState(StateClosing)
	case StateCloseOp:
		m.setState(StateClosing)
	case StateCloseXfer:
		m.ctl.pXferScb = nil
		m.setState(StateClosing)
	default:
		m.ignore(EventClose, s)
	}
}

// onEventShutdown is the table's Shutdown column.
func (m *Machine) onEventShutdown(s *scb.SCB) {
	switch m.ctl.state {
	case StateListen:
		m.removeListen(s)
		if !m.registry.AnyOtherOpen(s) {
			m.setState(StateShutdown)
		}
	case StateCodec:
		m.negotiator.Cancel(s)
		m.removeListen(s)
		if !m.registry.AnyOtherOpen(s) {
			m.setState(StateShutdown)
		}
	case StateOpening, StateOpenCl, StateClosing:
		if s == m.ctl.pCurrScb {
			m.setState(StateShutting)
		} else {
			m.removeActive(s)
		}
	case StateOpenXfer:
		m.ctl.pXferScb = nil
		m.removeAll(s)
		m.setState(StateShutting)
	case StateOpen:
		if s == m.ctl.pCurrScb {
			m.setState(StateShutting)
		}
	case StateCloseOp:
		m.setState(StateShutting)
	case StateCloseXfer:
		m.ctl.pXferScb = nil
		m.setState(StateShutting)
	case StateShutting:
		last := !m.registry.AnyOtherOpen(s)
		m.ctl.pCurrScb = nil
		if last {
			m.setState(StateShutdown)
		} else {
			m.setState(StateListen)
		}
	default:
		m.ignore(EventShutdown, s)
	}
}

// onEventConnOpen resolves the controller's ConnComplete(idx) against the
// current attempt. Only OPENING treats it as a real success; the transfer
// and shutdown states treat a straggling completion as something to remove
// again rather than a state change.
func (m *Machine) onEventConnOpen(idx uint16) {
	s := m.ctl.pCurrScb
	if s == nil {
		logger.Warn("sco: ConnOpen with no current SCB", "idx", idx)
		return
	}
	m.ctl.curIdx = idx
	s.SCOIndex = idx

	switch m.ctl.state {
	case StateOpening:
		m.onSuccessfulOpen(s)
		m.setState(StateOpen)
		m.emitAudioOpen(s)
	case StateOpenCl:
		m.removeActive(s)
		m.setState(StateClosing)
	case StateCloseXfer, StateShutting:
		m.removeActive(s)
	default:
		m.ignore(EventConnOpen, s)
	}
}

// onEventConnClose resolves the controller's DiscComplete(idx) against
// either the current attempt or a registered SCB (spec.md §7's "sco_idx ==
// invalid still matches the current attempt" recovery rule), then applies
// the retry ladder before falling through to the table's ConnClose column.
func (m *Machine) onEventConnClose(idx uint16) {
	s := m.resolveDiscScb(idx)
	if s == nil {
		logger.Warn("sco: ConnClose with unresolved handle, forcing shutdown", "idx", idx)
		m.ctl.pCurrScb = nil
		m.setState(StateShutdown)
		return
	}

	if m.cfg.AudioRoutedThroughHost {
		if err := m.controller.ConfigAudioPath(hciradio.DataPathHCI, nil, false); err != nil {
			logger.Warn("sco: config_audio_path failed", "err", err)
		}
	}

	wasCurrent := s == m.ctl.pCurrScb
	if wasCurrent && m.ctl.state == StateOpening && m.disconnectRetryLadder(s) {
		return
	}

	s.SCOIndex = scb.InvalidIndex
	if wasCurrent {
		s.InUseCodec = scb.CodecNone
		if !m.callActive.CallActive(s) {
			m.power.Unuse(s.PeerAddr)
		}
	}

	m.dispatchConnClose(s)
}

// resolveDiscScb implements spec.md §7's unknown-handle recovery: the
// current attempt matches a DiscComplete either by handle or, once its
// SCOIndex has already been cleared by a racing path, unconditionally.
func (m *Machine) resolveDiscScb(idx uint16) *scb.SCB {
	if cur := m.ctl.pCurrScb; cur != nil && (cur.SCOIndex == idx || cur.SCOIndex == scb.InvalidIndex) {
		return cur
	}
	return m.registry.ByControllerIdx(idx)
}

// dispatchConnClose is the table's ConnClose column, run once the retry
// ladder (if any) has declined to retry.
func (m *Machine) dispatchConnClose(s *scb.SCB) {
	switch m.ctl.state {
	case StateListen, StateCodec, StateOpening, StateOpen, StateClosing:
		m.createListen(s)
		m.ctl.pCurrScb = nil
		m.setState(StateListen)
	case StateOpenCl:
		m.ctl.pCurrScb = nil
		m.setState(StateListen)
	case StateOpenXfer:
		m.createListen(s)
		m.acceptStashedXfer()
	case StateCloseOp:
		m.ctl.pCurrScb = s
		m.originateOrCodec(s)
	case StateCloseXfer:
		m.resolveCloseXferConnClose(s)
	case StateShutting:
		last := !m.registry.AnyOtherOpen(s)
		m.ctl.pCurrScb = nil
		if last {
			m.setState(StateShutdown)
		} else {
			m.setState(StateListen)
			if m.registry.IsOpen(s) {
				m.createListen(s)
			}
		}
	default:
		m.ignore(EventConnClose, s)
	}
}

// resolveCloseXferConnClose is CLOSE_XFER's ConnClose cell: the outgoing SCB
// (curr) gets a fresh listen slot, the transfer target's stale listen slot
// is torn down, and the target originates fresh (it was a local sco_open(),
// never a peer ConnRequest, so there is nothing to accept).
func (m *Machine) resolveCloseXferConnClose(curr *scb.SCB) {
	xfer := m.ctl.pXferScb
	m.ctl.pXferScb = nil
	m.createListen(curr)
	if xfer == nil {
		m.ctl.pCurrScb = nil
		m.setState(StateListen)
		return
	}
	m.removeListen(xfer)
	m.originateOrCodec(xfer)
}
