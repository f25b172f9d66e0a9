package sco

import (
	"github.com/CypherOS/system-bt/internal/scb"
)

// Listen arranges for s to accept an inbound synchronous connection
// (spec.md §6 sco_listen).
func (m *Machine) Listen(s *scb.SCB) {
	m.post(event{kind: EventListen, scb: s})
}

// Open requests an outbound synchronous connection to s's peer. It becomes
// an Xfer if some other SCB currently owns the link (spec.md §6 sco_open).
func (m *Machine) Open(s *scb.SCB) {
	m.mu.Lock()
	kind := EventOpen
	if m.ctl.pCurrScb != nil && m.ctl.pCurrScb != s {
		kind = EventXfer
	}
	m.mu.Unlock()
	m.post(event{kind: kind, scb: s})
}

// Close requests teardown of s's synchronous connection, if any (spec.md §6
// sco_close).
func (m *Machine) Close(s *scb.SCB) {
	m.mu.Lock()
	shouldPost := s != nil && (s.SCOIndex != scb.InvalidIndex || (m.cfg.WidebandEnabled && m.ctl.state == StateCodec && m.ctl.pCurrScb == s))
	m.mu.Unlock()
	if !shouldPost {
		return
	}
	m.post(event{kind: EventClose, scb: s})
}

// Shutdown tears down s and, if it is the last open SCB, the machine itself
// (spec.md §6 sco_shutdown).
func (m *Machine) Shutdown(s *scb.SCB) {
	m.post(event{kind: EventShutdown, scb: s})
}

// OpenContinue reports that the external pre-SCO setup hook
// (co_audio_state(scb, SETUP, codec), spec.md §4.4 originate policy step 7)
// has completed, with result ok (spec.md §6 ci_sco_open_continue).
func (m *Machine) OpenContinue(s *scb.SCB, ok bool) {
	m.post(event{kind: EventOpenPending, scb: s, ok: ok})
}

// CodecNego feeds back the AT layer's codec negotiation result (spec.md §6
// sco_codec_nego, §4.3 step 3).
func (m *Machine) CodecNego(s *scb.SCB, ok bool) {
	if s == nil {
		return
	}
	m.negotiator.Reply(s, ok)
}

// IsOpen reports whether s currently owns the open link (spec.md §6
// is_open).
func (m *Machine) IsOpen(s *scb.SCB) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctl.pCurrScb == s && m.ctl.state == StateOpen
}

// IsOpening reports whether s is in the middle of becoming the open link
// (spec.md §6 is_opening).
func (m *Machine) IsOpening(s *scb.SCB) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctl.pCurrScb != s {
		return false
	}
	switch m.ctl.state {
	case StateCodec, StateOpening, StateOpenCl:
		return true
	default:
		return false
	}
}
