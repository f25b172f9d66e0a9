// Package codec implements the codec negotiator (C3): sequencing the
// peer-side "+BCS" codec agreement behind a bounded timer, per spec.md §4.3.
package codec

import (
	"time"

	logxi "github.com/mgutz/logxi/v1"
	"github.com/pkg/errors"

	"github.com/CypherOS/system-bt/internal/scb"
)

var logger = logxi.New("codec")

// DefaultTimeout is the negotiation timer's default bound (spec.md §6).
const DefaultTimeout = 3 * time.Second

// Sender emits the "+BCS" codec-selection code to the peer. AT-command
// formatting is out of scope (spec.md §1); the negotiator only needs to ask
// for it to be sent.
type Sender interface {
	SendCodecSelection(peer scb.Addr, codec scb.Codec) error
}

// BusySignaler requests the "busy" power-management hint while negotiation
// is in flight (spec.md §4.3 step 1).
type BusySignaler interface {
	Busy(peer scb.Addr)
}

// TimerFactory creates a one-shot timer that calls fn after d, mirroring how
// the surrounding AG owns timer allocation (spec.md §1 Non-goals).
type TimerFactory func(d time.Duration, fn func()) scb.Timer

// Done is delivered once negotiation finishes, successfully or not. expired
// is true only when the timer fired with no reply ever arriving; it is false
// for an explicit Reply(false), distinguishing the original's
// bta_ag_codec_negotiation_timer_cback (which also fires AUDIO_CLOSE_EVT)
// from bta_ag_sco_codec_nego(false) (which does not).
type Done func(s *scb.SCB, ok bool, expired bool)

// ErrNoSender describes a negotiation that is actually required while no
// Sender was wired in. Start does not return it; it reports that case through
// Done(ok=false, expired=true).
var ErrNoSender = errors.New("codec: negotiation required but no sender configured")

// Negotiator drives the peer-side codec agreement described by spec.md §4.3.
// It owns no SCB state beyond what it reads/writes on the SCB passed to it;
// C4 (internal/sco) decides what "done" means in each state.
type Negotiator struct {
	sender  Sender
	busy    BusySignaler
	timeout time.Duration
	newTimer TimerFactory
	done    Done
}

// New builds a Negotiator. busy may be nil if power management isn't wired
// in; newTimer must not be nil.
func New(sender Sender, busy BusySignaler, timeout time.Duration, newTimer TimerFactory) *Negotiator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Negotiator{sender: sender, busy: busy, timeout: timeout, newTimer: newTimer}
}

// SetDoneHandler registers the callback invoked when negotiation completes.
func (n *Negotiator) SetDoneHandler(fn Done) { n.done = fn }

// NeedsNegotiation reports whether Start would actually exchange "+BCS" for
// s (spec.md §4.3 steps 1-2), letting a caller on the single event-loop
// goroutine skip the CODEC state entirely instead of calling Start and
// relying on its synchronous skip-path completion.
func (n *Negotiator) NeedsNegotiation(s *scb.SCB) bool {
	return s != nil && (s.CodecUpdated || s.CodecFallback) && s.PeerFeatures.Has(scb.FeatCodec)
}

// Start begins negotiation for s, per spec.md §4.3 steps 1-2. Callers should
// check NeedsNegotiation first; Start assumes negotiation is required. With a
// Sender configured it completes asynchronously, via Reply or the timeout;
// with no Sender it delivers Done(ok=false, expired=true) before returning.
func (n *Negotiator) Start(s *scb.SCB) {
	if s == nil {
		return
	}
	logger.Info("codec: starting negotiation", "peer", s.PeerAddr, "codec", s.SCOCodec)
	if n.busy != nil {
		n.busy.Busy(s.PeerAddr)
	}
	if n.sender == nil {
		logger.Warn("codec: no sender configured", "peer", s.PeerAddr)
		// No reply will ever arrive for this attempt either, so this counts
		// as expired for AudioClose purposes, same as a timer that fires.
		n.deliver(s, false, true)
		return
	}
	if err := n.sender.SendCodecSelection(s.PeerAddr, s.SCOCodec); err != nil {
		logger.Warn("codec: send +BCS failed", "peer", s.PeerAddr, "err", err)
	}
	s.CodecNegoTimer = n.newTimer(n.timeout, func() { n.onTimeout(s) })
}

// Reply feeds back the AT layer's bta_ag_sco_codec_nego(ok) result: cancel
// the timer and deliver CodecNegoDone(ok). ok=true clears CodecUpdated
// (spec.md §4.3 step 3).
func (n *Negotiator) Reply(s *scb.SCB, ok bool) {
	if s == nil {
		return
	}
	n.stopTimer(s)
	if ok {
		s.CodecUpdated = false
	}
	n.deliver(s, ok, false)
}

// Cancel aborts an in-flight negotiation without invoking the Done handler,
// for callers that are tearing s down for an unrelated reason (an explicit
// Close/Shutdown arriving mid-negotiation).
func (n *Negotiator) Cancel(s *scb.SCB) {
	if s == nil {
		return
	}
	n.stopTimer(s)
}

func (n *Negotiator) onTimeout(s *scb.SCB) {
	logger.Warn("codec: negotiation timed out", "peer", s.PeerAddr)
	s.CodecNegoTimer = nil
	n.deliver(s, false, true)
}

func (n *Negotiator) stopTimer(s *scb.SCB) {
	if s.CodecNegoTimer == nil {
		return
	}
	s.CodecNegoTimer.Stop()
	s.CodecNegoTimer = nil
}

func (n *Negotiator) deliver(s *scb.SCB, ok bool, expired bool) {
	if n.done != nil {
		n.done(s, ok, expired)
	}
}
