// Package scb implements the per-peer Service Control Block and its
// fixed-capacity registry, the C1 component of the SCO/eSCO control core.
package scb

import (
	"fmt"
	"strings"
)

// Addr is a 48-bit Bluetooth device address.
type Addr [6]byte

// String formats the address the way the teacher formats MAC addresses.
func (a Addr) String() string {
	parts := make([]string, 6)
	for i, b := range a {
		parts[5-i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":")
}

// Codec identifies a negotiated voice codec.
type Codec uint8

// Codec values, mirroring BTA_AG_CODEC_*.
const (
	CodecNone Codec = iota
	CodecCVSD
	CodecMSBC
)

func (c Codec) String() string {
	switch c {
	case CodecCVSD:
		return "CVSD"
	case CodecMSBC:
		return "mSBC"
	default:
		return "none"
	}
}

// MSBCSettings selects which of the two mSBC eSCO parameter sets to use.
type MSBCSettings uint8

// MSBC parameter set selection, mirroring BTA_AG_SCO_MSBC_SETTINGS_*.
const (
	MSBCSettingsT2 MSBCSettings = iota // preferred
	MSBCSettingsT1                    // safe fallback
)

// Feature bits relevant to the core. Only the bits the core reads are named;
// the rest of the HFP feature bitmask belongs to the surrounding AG.
type Feature uint32

// Feature bits, mirroring BTA_AG_FEAT_ESCO / BTA_AG_PEER_FEAT_ESCO / _CODEC.
const (
	FeatESCO  Feature = 1 << iota // local/peer supports eSCO links
	FeatCodec                    // local/peer supports in-band codec negotiation ("+BCS")
)

// Has reports whether all bits in want are set in f.
func (f Feature) Has(want Feature) bool { return f&want == want }

// InvalidIndex is the controller handle value meaning "no connection".
const InvalidIndex = 0xFFFF

// SCB is a Service Control Block: the per-peer state the core reads and
// writes. One SCB exists per known peer, created by the surrounding AG at
// service-connection time and destroyed at service-disconnect; the core
// never allocates or frees one on its own initiative beyond the registry's
// alloc/free calls invoked by the surrounding AG.
type SCB struct {
	PeerAddr Addr
	AppID    uint32

	SvcConn bool

	SCOIndex uint16

	Features     Feature
	PeerFeatures Feature
	PeerVersion  uint16 // HFP profile version, e.g. 0x0105 for 1.5

	SCOCodec     Codec // preferred, set by the surrounding AG
	InUseCodec   Codec // meaningful only while an attempt is in flight or open
	CodecUpdated bool
	CodecFallback bool

	RetryWithSCOOnly bool
	MSBCSettings     MSBCSettings

	// CodecNegoTimer is armed/disarmed by the codec negotiator (C3); the core
	// never touches it directly.
	CodecNegoTimer Timer

	index int // registry slot, 0 means unallocated
}

// Timer is a one-shot, cancelable alarm. Implementations must be safe to
// call from any goroutine; Stop must be idempotent.
type Timer interface {
	Reset(fn func())
	Stop() bool
}

// Index returns the registry slot assigned to this SCB, or 0 if it was never
// allocated through a Registry.
func (s *SCB) Index() int { return s.index }

// HFPVersion15 is the minimum peer_version that makes the originate policy
// attempt eSCO (spec.md §4.4 Originate policy, step 5).
const HFPVersion15 = 0x0105
