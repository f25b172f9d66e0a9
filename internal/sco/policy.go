package sco

import (
	"golang.org/x/net/context"

	"github.com/CypherOS/system-bt/internal/hciradio"
	"github.com/CypherOS/system-bt/internal/scb"
)

// AudioSetupHook is the external pre-SCO setup hook (the original's
// co_audio_state(scb, SETUP, codec)), invoked by the originate policy before
// the controller is actually asked to create the link. It is expected to
// eventually call Machine.OpenContinue(s, ok); a nil hook is treated as an
// immediate synchronous success.
type AudioSetupHook interface {
	Setup(s *scb.SCB, codec scb.Codec)
}

func cvsdParams(mask uint16) hciradio.SyncParams {
	return hciradio.SyncParams{
		TxBandwidth:          8000,
		RxBandwidth:          8000,
		MaxLatencyMS:         0xFFFF,
		VoiceSetting:         cmdVoiceSettingCVSD,
		RetransmissionEffort: hciradio.RetransmissionEffortOptimizeQuality,
		PacketTypes:          mask,
		InputDataPath:        hciradio.DataPathHCI,
	}
}

// msbcT2Params and msbcT1Params are the two wideband eSCO parameter sets
// spec.md §6 names ("mSBC T1/T2 parameter sets"): T2 is more bandwidth, T1 is
// the safer fallback, expressed here as a shorter max latency.
func msbcT2Params(mask uint16) hciradio.SyncParams {
	p := cvsdParams(mask)
	p.VoiceSetting = cmdVoiceSettingTrans
	p.MaxLatencyMS = 13
	p.RetransmissionEffort = hciradio.RetransmissionEffortOptimizeQuality
	return p
}

func msbcT1Params(mask uint16) hciradio.SyncParams {
	p := msbcT2Params(mask)
	p.MaxLatencyMS = 8
	return p
}

// cmdVoiceSettingCVSD/cmdVoiceSettingTrans mirror cmd.VoiceSettingCVSD/
// cmd.VoiceSettingTrans without importing the cmd package directly, keeping
// internal/sco free of a wire-level dependency.
const (
	cmdVoiceSettingCVSD  uint16 = 0x0060
	cmdVoiceSettingTrans uint16 = 0x0003
)

// originateParams implements the originate policy of spec.md §4.4.
func (m *Machine) originateParams(s *scb.SCB) (hciradio.SyncParams, scb.Codec) {
	codec := scb.CodecCVSD
	params := cvsdParams(m.cfg.PacketTypeMask)

	// Step 2: attempt mSBC only when wideband is built in, preferred, and
	// neither fallback flag forces narrowband.
	if m.cfg.WidebandEnabled && s.SCOCodec == scb.CodecMSBC && !s.CodecFallback && !s.RetryWithSCOOnly {
		codec = scb.CodecMSBC
		if s.MSBCSettings == scb.MSBCSettingsT2 {
			params = msbcT2Params(m.cfg.PacketTypeMask)
		} else {
			params = msbcT1Params(m.cfg.PacketTypeMask)
		}
	}

	// Step 3: a pending fallback forces this attempt to CVSD and schedules a
	// fresh codec negotiation.
	if s.CodecFallback {
		s.CodecFallback = false
		s.CodecUpdated = true
		codec = scb.CodecCVSD
		params = cvsdParams(m.cfg.PacketTypeMask)
	}

	// Step 4: CVSD packet types and, absent eSCO support on either side, the
	// conservative latency/retransmission pairing.
	if codec == scb.CodecCVSD {
		params.PacketTypes = m.cfg.PacketTypeMask | hciradio.PacketTypeNo3EV3
		if !s.Features.Has(scb.FeatESCO) || !s.PeerFeatures.Has(scb.FeatESCO) {
			params.MaxLatencyMS = 10
			params.RetransmissionEffort = hciradio.RetransmissionEffortPower
		}
	}

	// Step 5: attempt eSCO above HFP 1.5 unless already forced to SCO-only
	// packet types; mSBC must never step down to plain SCO (invariant 5).
	s.RetryWithSCOOnly = false
	if s.PeerVersion >= scb.HFPVersion15 && params.PacketTypes&hciradio.ScoLinkOnlyMask != hciradio.ScoLinkOnlyMask {
		if codec != scb.CodecMSBC {
			s.RetryWithSCOOnly = true
		}
	}

	return params, codec
}

// beginOriginate is the table's "create_orig" action: compute the next
// attempt's parameters, save inuse_codec, signal busy, and invoke the
// external pre-SCO setup hook (spec.md §4.4 steps 6-7), landing in OPENING
// to await OpenPending.
func (m *Machine) beginOriginate(s *scb.SCB) {
	params, codec := m.originateParams(s)
	m.ctl.pendingParams = params
	m.ctl.isLocal = true
	m.ctl.pCurrScb = s
	s.InUseCodec = codec
	m.power.Busy(s.PeerAddr)

	m.setState(StateOpening)
	if m.setupHook != nil {
		m.setupHook.Setup(s, codec)
		return
	}
	m.handleOpenPending(s, true)
}

// originateOrCodec is the table's "CODEC(if WBS) or create_orig" cell. It
// only enters CODEC when a negotiation would actually happen; otherwise it
// goes straight to create_orig, avoiding a same-goroutine round trip through
// the negotiator's Done handler (codec.Negotiator.Start never completes
// synchronously once negotiation is actually required).
func (m *Machine) originateOrCodec(s *scb.SCB) {
	if m.cfg.WidebandEnabled && m.negotiator.NeedsNegotiation(s) {
		m.ctl.pCurrScb = s
		m.setState(StateCodec)
		m.negotiator.Start(s)
		return
	}
	m.beginOriginate(s)
}

// handleOpenPending is OPENING's OpenPending cell: "create_pending_sco(is_local)".
func (m *Machine) handleOpenPending(s *scb.SCB, ok bool) {
	m.ctl.setAudioStatus = ok
	if !ok {
		logger.Warn("sco: pre-SCO setup failed", "peer", s.PeerAddr)
		m.emitAudioClose(s)
		m.ctl.pCurrScb = nil
		m.setState(StateListen)
		return
	}

	idx, status, err := m.controller.CreateSync(context.Background(), s.PeerAddr, true, m.ctl.pendingParams)
	if err != nil || status == hciradio.StatusImmediateFail {
		logger.Warn("sco: create_sync failed", "peer", s.PeerAddr, "err", err)
		m.emitAudioClose(s)
		m.ctl.pCurrScb = nil
		m.setState(StateListen)
		return
	}
	m.ctl.curIdx = idx
	s.SCOIndex = idx
}

// createListen is the table's "create_listen(p)" action: prepare an accept
// slot for p without becoming the originator.
func (m *Machine) createListen(s *scb.SCB) {
	if s == nil {
		return
	}
	if _, _, err := m.controller.CreateSync(context.Background(), s.PeerAddr, false, hciradio.SyncParams{PacketTypes: m.cfg.PacketTypeMask}); err != nil {
		logger.Warn("sco: create_listen failed", "peer", s.PeerAddr, "err", err)
	}
}

// removeListen undoes createListen. The controller interface has no
// separate "stop listening" primitive distinct from RemoveSync; since a
// listen-only slot never carries a real handle, this is a bookkeeping no-op
// beyond logging.
func (m *Machine) removeListen(s *scb.SCB) {
	if s == nil {
		return
	}
	logger.Info("sco: remove_listen", "peer", s.PeerAddr)
}

// removeActive issues RemoveSync for s only if s currently owns cur_idx
// ("remove(active)" in spec.md §4.4).
func (m *Machine) removeActive(s *scb.SCB) {
	if s == nil || s.SCOIndex == scb.InvalidIndex || s.SCOIndex != m.ctl.curIdx {
		return
	}
	if _, err := m.controller.RemoveSync(context.Background(), s.SCOIndex); err != nil {
		logger.Warn("sco: remove_sync failed", "peer", s.PeerAddr, "err", err)
	}
}

// removeAll issues RemoveSync for s regardless of the current-attempt check
// ("remove(all)" in spec.md §4.4).
func (m *Machine) removeAll(s *scb.SCB) {
	if s == nil || s.SCOIndex == scb.InvalidIndex {
		return
	}
	if _, err := m.controller.RemoveSync(context.Background(), s.SCOIndex); err != nil {
		logger.Warn("sco: remove_sync failed", "peer", s.PeerAddr, "err", err)
	}
}

// acceptConnRequest implements the accept policy of spec.md §4.4. It runs
// outside the table dispatch because ConnRequest is not one of the ten
// table events.
func (m *Machine) acceptConnRequest(s *scb.SCB, idx uint16, params hciradio.ConnRequestParams) {
	const hostRejectResources = 0x0D

	if s == nil || !s.SvcConn {
		logger.Warn("sco: rejecting connection request, no matching SCB")
		if err := m.controller.RespondConnRequest(context.Background(), idx, false, hostRejectResources, hciradio.SyncParams{}); err != nil {
			logger.Warn("sco: reject failed", "err", err)
		}
		return
	}

	if m.ctl.pCurrScb == nil {
		// SPEC_FULL.md §5 item 5: a peer-initiated accept never negotiates
		// wideband on the connection it originates.
		s.InUseCodec = scb.CodecNone
		m.ctl.isLocal = false
		m.ctl.pCurrScb = s
		m.ctl.curIdx = idx
		s.SCOIndex = idx
		acceptParams := cvsdParams(m.cfg.PacketTypeMask)
		if err := m.controller.RespondConnRequest(context.Background(), idx, true, 0, acceptParams); err != nil {
			logger.Warn("sco: respond_conn_request failed", "peer", s.PeerAddr, "err", err)
		}
		m.setState(StateOpening)
		return
	}

	// Another SCB owns the link: stash the request and start tearing it
	// down; the stashed request is finalized once ConnClose arrives for the
	// outgoing SCB (CLOSE_XFER/OPEN_XFER rows).
	m.ctl.pXferScb = s
	m.ctl.connData = params
	m.ctl.connIdx = idx
	m.setState(StateOpenXfer)
	m.removeActive(m.ctl.pCurrScb)
}

// acceptStashedXfer finalizes a previously-stashed transfer request onto its
// new SCB, landing in OPENING with pCurrScb swung over to the transfer
// target (CLOSE_XFER/OPEN_XFER "ConnClose" cells).
func (m *Machine) acceptStashedXfer() {
	s := m.ctl.pXferScb
	if s == nil {
		m.setState(StateListen)
		return
	}
	m.ctl.pXferScb = nil
	s.InUseCodec = scb.CodecNone
	m.ctl.isLocal = false
	m.ctl.pCurrScb = s
	m.ctl.curIdx = m.ctl.connIdx
	s.SCOIndex = m.ctl.connIdx
	acceptParams := cvsdParams(m.cfg.PacketTypeMask)
	if err := m.controller.RespondConnRequest(context.Background(), m.ctl.connIdx, true, 0, acceptParams); err != nil {
		logger.Warn("sco: respond_conn_request (xfer) failed", "peer", s.PeerAddr, "err", err)
	}
	m.setState(StateOpening)
}

// onSuccessfulOpen applies SPEC_FULL.md §5 item 3: the mSBC safe-settings
// step and the SCO-only retry flag both reset on every successful open, so
// a future fresh attempt starts from the preferred configuration again.
func (m *Machine) onSuccessfulOpen(s *scb.SCB) {
	s.MSBCSettings = scb.MSBCSettingsT2
	s.RetryWithSCOOnly = false
	m.power.Use(s.PeerAddr)

	if m.cfg.AudioRoutedThroughHost {
		idx := m.registry.IndexOf(s)
		appID := s.AppID
		if err := m.controller.ConfigAudioPath(hciradio.DataPathHCI, ReadAudio(func(frame []byte) {
			if m.audioSink != nil {
				m.audioSink.AudioData(idx, appID, frame)
			}
		}), true); err != nil {
			logger.Warn("sco: config_audio_path failed", "peer", s.PeerAddr, "err", err)
		}
	}
}

// attemptMSBCSafeSettings is SPEC_FULL.md §5 item 1: a re-trigger of the
// reopen path for an SCB that already stepped down to the T1 safe settings,
// even without a fresh codec_fallback, as long as the service connection is
// still up and this isn't already the normal OPENING retry path.
func attemptMSBCSafeSettings(s *scb.SCB) bool {
	return s.SvcConn && s.MSBCSettings == scb.MSBCSettingsT1 && !s.RetryWithSCOOnly
}

// disconnectRetryLadder is the §7 error taxonomy's transient-failure policy,
// stepped from strongest to weakest: mSBC T2 → mSBC T1 → CVSD → SCO-only.
// It returns true when it decided to retry (and has already re-armed the
// next attempt), false when the ladder is exhausted.
func (m *Machine) disconnectRetryLadder(s *scb.SCB) bool {
	switch {
	case s.InUseCodec == scb.CodecMSBC && s.MSBCSettings == scb.MSBCSettingsT2:
		s.MSBCSettings = scb.MSBCSettingsT1
	case s.InUseCodec == scb.CodecMSBC && s.MSBCSettings == scb.MSBCSettingsT1:
		s.CodecFallback = true
	case attemptMSBCSafeSettings(s):
		s.CodecFallback = true
	case s.RetryWithSCOOnly && s.SvcConn:
		// supplemented feature #2: immediate re-originate, still routed
		// through the mandatory OPENING->CODEC transition (onEventReopen
		// falls straight through to create_orig when no negotiation is due).
		s.InUseCodec = scb.CodecNone
		s.SCOIndex = scb.InvalidIndex
		m.onEventReopen(s)
		return true
	default:
		return false
	}
	s.InUseCodec = scb.CodecNone
	s.SCOIndex = scb.InvalidIndex
	m.onEventReopen(s)
	return true
}
