package sco

import (
	"testing"
	"time"

	"github.com/CypherOS/system-bt/internal/hciradio/sim"
	"github.com/CypherOS/system-bt/internal/scb"
)

type testSender struct {
	sent []scb.Codec
}

func (s *testSender) SendCodecSelection(peer scb.Addr, c scb.Codec) error {
	s.sent = append(s.sent, c)
	return nil
}

type testObserver struct {
	opens  []uint32
	closes []uint32
}

func (o *testObserver) AudioOpen(handle int, appID uint32)  { o.opens = append(o.opens, appID) }
func (o *testObserver) AudioClose(handle int, appID uint32) { o.closes = append(o.closes, appID) }

type testAudioSink struct {
	frames [][]byte
	appIDs []uint32
}

func (a *testAudioSink) AudioData(handle int, appID uint32, frame []byte) {
	a.frames = append(a.frames, frame)
	a.appIDs = append(a.appIDs, appID)
}

func newTestMachine(t *testing.T, enhanced bool, opts ...Option) (*Machine, *sim.Controller, *testObserver) {
	t.Helper()
	ctl := sim.New(enhanced)
	obs := &testObserver{}
	m, err := New(ctl, &testSender{}, obs, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(m.Stop)
	return m, ctl, obs
}

func testAddr(n byte) scb.Addr {
	var a scb.Addr
	a[5] = n
	return a
}

// TestBasicOpenAndClose covers spec.md §8 scenario 1: listen, originate to
// CVSD, complete, then tear down.
func TestBasicOpenAndClose(t *testing.T) {
	m, ctl, obs := newTestMachine(t, true, WithWidebandEnabled(false))

	peer := testAddr(1)
	s, err := m.Registry().Alloc(peer)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	s.SvcConn = true
	s.AppID = 42
	s.Features = scb.FeatESCO
	s.PeerFeatures = scb.FeatESCO
	s.SCOCodec = scb.CodecCVSD

	m.Listen(s)
	m.Open(s)

	if !m.IsOpening(s) {
		t.Fatal("expected s to be opening after Open")
	}

	handle := ctl.CompleteOutbound(peer, 0)
	if handle == 0 {
		t.Fatal("CompleteOutbound returned handle 0")
	}

	if !m.IsOpen(s) {
		t.Fatal("expected s to be open after CompleteOutbound")
	}
	if len(obs.opens) != 1 || obs.opens[0] != 42 {
		t.Fatalf("opens = %v, want [42]", obs.opens)
	}

	m.Close(s)
	ctl.CompleteDisconnect(handle)

	if m.IsOpen(s) {
		t.Fatal("expected s to be closed")
	}
}

// TestAudioRoutedThroughHostConfiguresReadPath covers the accept/originate
// host audio path (spec.md §4.5 "Incoming audio"): once a link opens with
// AudioRoutedThroughHost set, the controller's read path is wired to the
// configured AudioSink.
func TestAudioRoutedThroughHostConfiguresReadPath(t *testing.T) {
	sink := &testAudioSink{}
	m, ctl, _ := newTestMachine(t, true,
		WithWidebandEnabled(false),
		WithAudioRoutedThroughHost(true),
		WithAudioSink(sink),
	)

	peer := testAddr(6)
	s, err := m.Registry().Alloc(peer)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	s.SvcConn = true
	s.AppID = 99
	s.Features = scb.FeatESCO
	s.PeerFeatures = scb.FeatESCO
	s.SCOCodec = scb.CodecCVSD

	m.Listen(s)
	m.Open(s)
	ctl.CompleteOutbound(peer, 0)

	if !m.IsOpen(s) {
		t.Fatal("expected s to be open after CompleteOutbound")
	}

	ctl.DeliverInboundAudio([]byte{1, 2, 3})
	if len(sink.frames) != 1 || string(sink.frames[0]) != "\x01\x02\x03" {
		t.Fatalf("sink frames = %v, want one frame {1,2,3}", sink.frames)
	}
	if sink.appIDs[0] != 99 {
		t.Fatalf("sink appID = %d, want 99", sink.appIDs[0])
	}
}

// TestRetryLadderStepsDownFromMSBC covers spec.md §8 scenario 2: a failed
// mSBC/T2 attempt steps to T1, a failed T1 attempt falls back to CVSD.
func TestRetryLadderStepsDownFromMSBC(t *testing.T) {
	m, ctl, _ := newTestMachine(t, true, WithWidebandEnabled(true))

	peer := testAddr(2)
	s, err := m.Registry().Alloc(peer)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	s.SvcConn = true
	s.Features = scb.FeatESCO
	s.PeerFeatures = scb.FeatESCO // no FeatCodec: negotiation never triggers here
	s.SCOCodec = scb.CodecMSBC
	s.MSBCSettings = scb.MSBCSettingsT2
	s.PeerVersion = scb.HFPVersion15

	m.Listen(s)
	m.Open(s)

	if s.InUseCodec != scb.CodecMSBC || s.MSBCSettings != scb.MSBCSettingsT2 {
		t.Fatalf("first attempt should be mSBC/T2, got %v/%v", s.InUseCodec, s.MSBCSettings)
	}

	ctl.CompleteOutbound(peer, 1) // fail: steps T2 -> T1, retries
	if s.MSBCSettings != scb.MSBCSettingsT1 {
		t.Fatalf("MSBCSettings = %v, want T1 after first failure", s.MSBCSettings)
	}
	if !m.IsOpening(s) {
		t.Fatal("expected a fresh attempt to be in flight after the T2 failure")
	}

	ctl.CompleteOutbound(peer, 1) // fail: T1 -> CVSD fallback
	if s.InUseCodec != scb.CodecCVSD {
		t.Fatalf("InUseCodec = %v, want CVSD after the second failure", s.InUseCodec)
	}
	if s.CodecFallback {
		t.Fatal("CodecFallback should be cleared once the fallback attempt starts")
	}
	if !s.CodecUpdated {
		t.Fatal("CodecUpdated should be set so the AT layer re-announces the codec")
	}
}

// TestRejectUnknownPeer covers spec.md §8 scenario 6: a ConnRequest with no
// matching SCB is rejected outright.
func TestRejectUnknownPeer(t *testing.T) {
	_, ctl, _ := newTestMachine(t, true)

	handle := ctl.DeliverConnRequest(testAddr(9), 2)

	if _, err := ctl.ReadPeerAddr(handle); err == nil {
		t.Fatal("expected the rejected handle to be forgotten by the controller")
	}
}

// TestCodecNegotiationSkippedWithoutPeerSupport exercises the deadlock-prone
// path directly: a peer that doesn't advertise codec negotiation support must
// never park the attempt in CODEC waiting for a reply that will never come.
func TestCodecNegotiationSkippedWithoutPeerSupport(t *testing.T) {
	m, ctl, _ := newTestMachine(t, true, WithWidebandEnabled(true))

	peer := testAddr(3)
	s, err := m.Registry().Alloc(peer)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	s.SvcConn = true
	s.Features = scb.FeatESCO
	s.PeerFeatures = scb.FeatESCO // no FeatCodec
	s.SCOCodec = scb.CodecCVSD
	s.CodecUpdated = true // would normally ask for negotiation, but peer can't do it

	m.Listen(s)
	m.Open(s)

	if !m.IsOpening(s) {
		t.Fatal("expected the attempt to proceed straight to OPENING, not hang in CODEC")
	}

	handle := ctl.CompleteOutbound(peer, 0)
	if !m.IsOpen(s) {
		t.Fatal("expected s to be open after CompleteOutbound")
	}
	_ = handle
}

// TestWidebandNegotiationThenOpen covers a wideband open: a peer that
// does support codec negotiation parks in CODEC until CodecNego(true), then
// proceeds to originate.
func TestWidebandNegotiationThenOpen(t *testing.T) {
	m, ctl, _ := newTestMachine(t, true, WithWidebandEnabled(true))

	peer := testAddr(4)
	s, err := m.Registry().Alloc(peer)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	s.SvcConn = true
	s.Features = scb.FeatESCO
	s.PeerFeatures = scb.FeatESCO | scb.FeatCodec
	s.SCOCodec = scb.CodecMSBC
	s.CodecUpdated = true

	m.Listen(s)
	m.Open(s)

	// IsOpening is true throughout CODEC and OPENING alike (api.go); what
	// distinguishes "parked in CODEC" here is that the sender saw the +BCS
	// request and CompleteOutbound has nothing pending yet to complete.
	if !m.IsOpening(s) {
		t.Fatal("expected s to be opening (parked in CODEC) after Open")
	}

	m.CodecNego(s, true)

	if !m.IsOpening(s) {
		t.Fatal("expected s to proceed to OPENING once CodecNego succeeds")
	}
	if s.CodecUpdated {
		t.Fatal("CodecNego(true) should clear CodecUpdated")
	}

	ctl.CompleteOutbound(peer, 0)
	if !m.IsOpen(s) {
		t.Fatal("expected s to be open after CompleteOutbound")
	}
}

// TestCodecNegotiationTimeoutClosesLink covers spec.md §8 scenario 5: an
// unanswered codec negotiation times out and reports AudioClose without ever
// having opened a link.
func TestCodecNegotiationTimeoutClosesLink(t *testing.T) {
	m, _, obs := newTestMachine(t, true,
		WithWidebandEnabled(true),
		WithCodecNegotiationTimeout(20*time.Millisecond),
	)

	peer := testAddr(5)
	s, err := m.Registry().Alloc(peer)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	s.SvcConn = true
	s.AppID = 7
	s.Features = scb.FeatESCO
	s.PeerFeatures = scb.FeatESCO | scb.FeatCodec
	s.SCOCodec = scb.CodecMSBC
	s.CodecUpdated = true

	m.Listen(s)
	m.Open(s)

	if !m.IsOpening(s) {
		t.Fatal("expected s to be opening (parked in CODEC) before the timeout fires")
	}

	time.Sleep(200 * time.Millisecond)

	if len(obs.closes) != 1 || obs.closes[0] != 7 {
		t.Fatalf("closes = %v, want [7] after the negotiation timeout", obs.closes)
	}
	if m.IsOpening(s) || m.IsOpen(s) {
		t.Fatal("expected s to have returned to LISTEN after the timeout")
	}
}
