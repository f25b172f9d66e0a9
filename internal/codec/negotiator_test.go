package codec

import (
	"testing"
	"time"

	"github.com/CypherOS/system-bt/internal/scb"
)

// fakeTimer never fires on its own; the test calls its fn directly to
// simulate expiry, and records whether it was stopped.
type fakeTimer struct {
	fn      func()
	stopped bool
}

func (t *fakeTimer) Reset(fn func()) { t.fn = fn; t.stopped = false }
func (t *fakeTimer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func newFakeFactory() (TimerFactory, *[]*fakeTimer) {
	var created []*fakeTimer
	f := func(d time.Duration, fn func()) scb.Timer {
		t := &fakeTimer{fn: fn}
		created = append(created, t)
		return t
	}
	return f, &created
}

type fakeSender struct {
	sent    []scb.Codec
	failNil bool
}

func (s *fakeSender) SendCodecSelection(peer scb.Addr, c scb.Codec) error {
	s.sent = append(s.sent, c)
	return nil
}

func TestNeedsNegotiation(t *testing.T) {
	n := New(&fakeSender{}, nil, 0, func(d time.Duration, fn func()) scb.Timer { return &fakeTimer{fn: fn} })

	s := &scb.SCB{}
	if n.NeedsNegotiation(s) {
		t.Fatal("fresh SCB should not need negotiation")
	}

	s.CodecUpdated = true
	if n.NeedsNegotiation(s) {
		t.Fatal("CodecUpdated without peer FeatCodec should not need negotiation")
	}

	s.PeerFeatures = scb.FeatCodec
	if !n.NeedsNegotiation(s) {
		t.Fatal("CodecUpdated + peer FeatCodec should need negotiation")
	}

	if n.NeedsNegotiation(nil) {
		t.Fatal("nil SCB should never need negotiation")
	}
}

func TestStartAndReplySuccess(t *testing.T) {
	factory, created := newFakeFactory()
	sender := &fakeSender{}
	n := New(sender, nil, time.Second, factory)

	var doneOK *bool
	var doneExpired *bool
	n.SetDoneHandler(func(s *scb.SCB, ok bool, expired bool) { doneOK = &ok; doneExpired = &expired })

	s := &scb.SCB{SCOCodec: scb.CodecMSBC, CodecUpdated: true, PeerFeatures: scb.FeatCodec}
	n.Start(s)

	if len(sender.sent) != 1 || sender.sent[0] != scb.CodecMSBC {
		t.Fatalf("sent = %v, want [mSBC]", sender.sent)
	}
	if s.CodecNegoTimer == nil {
		t.Fatal("Start did not arm a timer")
	}
	if len(*created) != 1 {
		t.Fatalf("timers created = %d, want 1", len(*created))
	}
	if doneOK != nil {
		t.Fatal("Start must not complete synchronously")
	}

	n.Reply(s, true)
	if doneOK == nil || !*doneOK {
		t.Fatal("Reply(true) did not deliver ok=true")
	}
	if doneExpired == nil || *doneExpired {
		t.Fatal("Reply should never deliver expired=true")
	}
	if s.CodecUpdated {
		t.Fatal("Reply(true) should clear CodecUpdated")
	}
	if s.CodecNegoTimer != nil {
		t.Fatal("Reply should clear the timer")
	}
}

func TestTimeout(t *testing.T) {
	factory, _ := newFakeFactory()
	sender := &fakeSender{}
	n := New(sender, nil, time.Second, factory)

	var doneOK *bool
	var doneExpired *bool
	n.SetDoneHandler(func(s *scb.SCB, ok bool, expired bool) { doneOK = &ok; doneExpired = &expired })

	s := &scb.SCB{CodecUpdated: true, PeerFeatures: scb.FeatCodec}
	n.Start(s)

	ft := s.CodecNegoTimer.(*fakeTimer)
	ft.fn()

	if doneOK == nil || *doneOK {
		t.Fatal("timeout should deliver ok=false")
	}
	if doneExpired == nil || !*doneExpired {
		t.Fatal("timeout should deliver expired=true")
	}
	if s.CodecNegoTimer != nil {
		t.Fatal("timeout should clear the timer")
	}
}

func TestCancelDoesNotInvokeDone(t *testing.T) {
	factory, _ := newFakeFactory()
	n := New(&fakeSender{}, nil, time.Second, factory)

	called := false
	n.SetDoneHandler(func(s *scb.SCB, ok bool, expired bool) { called = true })

	s := &scb.SCB{CodecUpdated: true, PeerFeatures: scb.FeatCodec}
	n.Start(s)
	n.Cancel(s)

	if called {
		t.Fatal("Cancel must not invoke the Done handler")
	}
	if s.CodecNegoTimer != nil {
		t.Fatal("Cancel should clear the timer")
	}
}

func TestStartWithNoSenderFailsImmediately(t *testing.T) {
	n := New(nil, nil, time.Second, func(d time.Duration, fn func()) scb.Timer { return &fakeTimer{fn: fn} })

	var doneOK *bool
	var doneExpired *bool
	n.SetDoneHandler(func(s *scb.SCB, ok bool, expired bool) { doneOK = &ok; doneExpired = &expired })

	s := &scb.SCB{CodecUpdated: true, PeerFeatures: scb.FeatCodec}
	n.Start(s)

	if doneOK == nil || *doneOK {
		t.Fatal("Start with no sender should deliver ok=false synchronously")
	}
	if doneExpired == nil || !*doneExpired {
		t.Fatal("Start with no sender should deliver expired=true, same as a timeout")
	}
}

func TestBusySignaledOnStart(t *testing.T) {
	var signaled []scb.Addr
	busy := busySignalerFunc(func(peer scb.Addr) { signaled = append(signaled, peer) })
	factory, _ := newFakeFactory()
	n := New(&fakeSender{}, busy, time.Second, factory)

	s := &scb.SCB{PeerAddr: scb.Addr{1, 2, 3, 4, 5, 6}, CodecUpdated: true, PeerFeatures: scb.FeatCodec}
	n.Start(s)

	if len(signaled) != 1 || signaled[0] != s.PeerAddr {
		t.Fatalf("signaled = %v, want [%v]", signaled, s.PeerAddr)
	}
}

type busySignalerFunc func(peer scb.Addr)

func (f busySignalerFunc) Busy(peer scb.Addr) { f(peer) }
