package sco

import (
	"time"

	"github.com/CypherOS/system-bt/internal/hciradio"
)

// Config holds the configuration flags and tunables spec.md §9 re-expresses
// from the original's conditional compilation.
type Config struct {
	// WidebandEnabled adds the CODEC state and the mSBC retry ladder
	// (BTM_WBS_INCLUDED in the original).
	WidebandEnabled bool

	// AudioRoutedThroughHost enables CiData handling and the host audio
	// path configuration calls (BTM_SCO_HCI_INCLUDED in the original).
	AudioRoutedThroughHost bool

	// PacketTypeMask is the platform's configured default eSCO/SCO packet
	// type mask, OR'd with hciradio.PacketTypeNo3EV3 by the originate
	// policy (spec.md §4.4 step 4).
	PacketTypeMask uint16

	// CodecNegoTimeout bounds the codec negotiator's one-shot timer
	// (spec.md §4.3 step 1; default 3s per §6).
	CodecNegoTimeout time.Duration

	// SCBCapacity sizes the SCB registry (spec.md §4.1; typically 2 or 6).
	SCBCapacity int
}

func defaultConfig() Config {
	return Config{
		WidebandEnabled:        true,
		AudioRoutedThroughHost: false,
		PacketTypeMask:         hciradio.NoEDREsco,
		CodecNegoTimeout:       3 * time.Second,
		SCBCapacity:            6,
	}
}

// Option is a configuration function, following the teacher's
// linux/hci/option.go Option pattern.
type Option func(*Machine) error

// WithWidebandEnabled toggles the CODEC state and mSBC retry ladder.
func WithWidebandEnabled(enabled bool) Option {
	return func(m *Machine) error {
		m.cfg.WidebandEnabled = enabled
		return nil
	}
}

// WithAudioRoutedThroughHost toggles CiData/host audio-path handling.
func WithAudioRoutedThroughHost(enabled bool) Option {
	return func(m *Machine) error {
		m.cfg.AudioRoutedThroughHost = enabled
		return nil
	}
}

// WithPacketTypeMask sets the platform's default eSCO/SCO packet type mask.
func WithPacketTypeMask(mask uint16) Option {
	return func(m *Machine) error {
		m.cfg.PacketTypeMask = mask
		return nil
	}
}

// WithCodecNegotiationTimeout overrides the default 3s codec-negotiation
// timer.
func WithCodecNegotiationTimeout(d time.Duration) Option {
	return func(m *Machine) error {
		m.cfg.CodecNegoTimeout = d
		return nil
	}
}

// WithSCBCapacity sizes the SCB registry.
func WithSCBCapacity(n int) Option {
	return func(m *Machine) error {
		m.cfg.SCBCapacity = n
		return nil
	}
}

// WithPowerManager wires the power-management hooks (SPEC_FULL.md §5 item 4).
func WithPowerManager(p PowerManager) Option {
	return func(m *Machine) error {
		m.power = p
		return nil
	}
}

// WithCallActiver wires the call-active predicate that gates
// PowerManager.Unuse on close (SPEC_FULL.md §5 item 4).
func WithCallActiver(c CallActiver) Option {
	return func(m *Machine) error {
		m.callActive = c
		return nil
	}
}

// WithAudioSetupHook wires the external pre-SCO setup hook invoked by the
// originate policy (spec.md §4.4 step 7). Without one, origination proceeds
// as if the hook always succeeds immediately.
func WithAudioSetupHook(h AudioSetupHook) Option {
	return func(m *Machine) error {
		m.setupHook = h
		return nil
	}
}

// WithAudioSink wires the sink inbound audio frames are delivered to once a
// link opens with Config.AudioRoutedThroughHost set. Without one, the host
// audio path is still configured and read, but frames are dropped.
func WithAudioSink(sink AudioSink) Option {
	return func(m *Machine) error {
		m.audioSink = sink
		return nil
	}
}
