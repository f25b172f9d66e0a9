package codec

import (
	"sync"
	"time"

	"github.com/CypherOS/system-bt/internal/scb"
)

// stdTimer adapts time.Timer to scb.Timer's Reset(fn)/Stop() shape: Reset
// re-arms the timer for the original duration with a (possibly new) fn,
// since the standard Timer only resets a duration, not a callback.
type stdTimer struct {
	mu sync.Mutex
	d  time.Duration
	t  *time.Timer
}

// RealTimer is a TimerFactory backed by time.AfterFunc, for production use.
func RealTimer(d time.Duration, fn func()) scb.Timer {
	return &stdTimer{d: d, t: time.AfterFunc(d, fn)}
}

// Reset implements scb.Timer.
func (s *stdTimer) Reset(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t != nil {
		s.t.Stop()
	}
	s.t = time.AfterFunc(s.d, fn)
}

// Stop implements scb.Timer.
func (s *stdTimer) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.t == nil {
		return false
	}
	return s.t.Stop()
}
