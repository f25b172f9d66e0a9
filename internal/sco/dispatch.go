package sco

import (
	"github.com/CypherOS/system-bt/internal/hciradio"
	"github.com/CypherOS/system-bt/internal/scb"
)

// onConnComplete translates the controller's ConnComplete(idx) callback
// (spec.md §4.5). Only one attempt is ever in flight, so the event carries
// no SCB; handle() resolves it against pCurrScb.
func (m *Machine) onConnComplete(idx uint16) {
	m.post(event{kind: EventConnOpen, idx: idx})
}

// onDiscComplete translates the controller's DiscComplete(idx) callback.
func (m *Machine) onDiscComplete(idx uint16) {
	m.post(event{kind: EventConnClose, idx: idx})
}

// onConnRequest translates a peer-initiated ConnRequest(idx, params). It
// resolves the requesting SCB up front so the accept policy (policy.go)
// doesn't have to touch the controller again for the address.
func (m *Machine) onConnRequest(idx uint16, params hciradio.ConnRequestParams) {
	var s *scb.SCB
	if addr, err := m.controller.ReadPeerAddr(idx); err == nil {
		s = m.registry.ByAddr(addr)
	}
	m.post(event{kind: eventConnRequest, scb: s, idx: idx, params: params})
}

// onLinkChange has no transition-table column (spec.md §4.4); it exists for
// observability only.
func (m *Machine) onLinkChange(idx uint16, params hciradio.SyncParams) {
	logger.Info("sco: link change", "idx", idx)
}

// onCodecDone is the codec negotiator's Done handler (internal/codec). ok
// and expired follow the original's split between bta_ag_sco_codec_nego(ok)
// (an explicit AT-layer reply, never emits AUDIO_CLOSE_EVT) and
// bta_ag_codec_negotiation_timer_cback (the timeout, which does): only an
// expired negotiation (the timeout, or Start finding no Sender) reports
// AudioClose here, since only it reaches a point where no reply will ever
// arrive.
func (m *Machine) onCodecDone(s *scb.SCB, ok bool, expired bool) {
	if ok {
		m.post(event{kind: EventCodecDone, scb: s})
		return
	}
	if expired {
		m.emitAudioClose(s)
	}
	m.post(event{kind: EventClose, scb: s})
}

func (m *Machine) emitAudioOpen(s *scb.SCB) {
	if m.observer == nil || s == nil {
		return
	}
	m.observer.AudioOpen(m.registry.IndexOf(s), s.AppID)
}

func (m *Machine) emitAudioClose(s *scb.SCB) {
	if m.observer == nil || s == nil {
		return
	}
	m.observer.AudioClose(m.registry.IndexOf(s), s.AppID)
}

// CiData signals that outbound audio frames are available; pull retrieves
// them one at a time until it reports none left. In OPEN every frame is
// written to the controller; in any other state frames are drained and
// dropped (spec.md §4.5).
func (m *Machine) CiData(pull hciradio.WriteFunc) {
	m.mu.Lock()
	open := m.ctl.state == StateOpen
	idx := m.ctl.curIdx
	m.mu.Unlock()

	for {
		frame, ok := pull()
		if !ok {
			return
		}
		if !open {
			continue
		}
		if err := m.controller.WriteAudio(idx, frame); err != nil {
			logger.Warn("sco: write audio failed", "err", err)
		}
	}
}

// ReadAudio is the ReadFunc the controller's host audio path should be
// configured with when Config.AudioRoutedThroughHost is set; it forwards
// every inbound frame to sink unconditionally (spec.md §4.5 "Incoming
// audio"), with no reference to machine state.
func ReadAudio(sink func(frame []byte)) hciradio.ReadFunc {
	return func(frame []byte) {
		if sink != nil {
			sink(frame)
		}
	}
}
