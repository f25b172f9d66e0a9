// Package sim provides a deterministic in-memory Controller, standing in for
// a real radio in tests and the cmd/agsco demo the way the teacher's own
// examples stand in for a real peripheral (examples/blesh drives a live
// adapter; this package plays the adapter's part instead).
package sim

import (
	"sync"

	"golang.org/x/net/context"

	"github.com/CypherOS/system-bt/internal/hciradio"
	"github.com/CypherOS/system-bt/internal/scb"
)

// pending tracks a connection that has been requested but not yet completed.
type pending struct {
	peer   scb.Addr
	params hciradio.SyncParams
}

// Controller is a fake Controller driven entirely by test/demo code calling
// its Complete* and Deliver* methods; it performs no I/O of its own.
type Controller struct {
	mu sync.Mutex

	enhanced     bool
	nextHandle   uint16
	addrByHandle map[uint16]scb.Addr
	pendingOut   map[scb.Addr]*pending // originator-side, awaiting Complete
	defaultESco  hciradio.SyncParams
	voiceSetting uint16

	audioEnabled bool
	onAudioRead  hciradio.ReadFunc
	writtenAudio [][]byte

	onConnComplete func(idx uint16)
	onDiscComplete func(idx uint16)
	onConnRequest  func(idx uint16, params hciradio.ConnRequestParams)
	onLinkChange   func(idx uint16, params hciradio.SyncParams)
}

// New returns a fake controller. enhanced selects whether it reports support
// for the enhanced Setup/Accept Synchronous Connection commands.
func New(enhanced bool) *Controller {
	return &Controller{
		enhanced:     enhanced,
		nextHandle:   1,
		addrByHandle: make(map[uint16]scb.Addr),
		pendingOut:   make(map[scb.Addr]*pending),
	}
}

// CreateSync implements hciradio.Controller. The sim never blocks, so ctx is
// unused beyond the interface contract.
func (c *Controller) CreateSync(ctx context.Context, peer scb.Addr, isOriginator bool, params hciradio.SyncParams) (uint16, hciradio.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !isOriginator {
		return 0, hciradio.StatusStarted, nil
	}
	c.pendingOut[peer] = &pending{peer: peer, params: params}
	return 0, hciradio.StatusStarted, nil
}

// RemoveSync implements hciradio.Controller.
func (c *Controller) RemoveSync(ctx context.Context, idx uint16) (hciradio.Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.addrByHandle[idx]; !ok {
		return hciradio.StatusUnknownAddr, nil
	}
	return hciradio.StatusStarted, nil
}

// RespondConnRequest implements hciradio.Controller.
func (c *Controller) RespondConnRequest(ctx context.Context, idx uint16, accept bool, reason uint8, params hciradio.SyncParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !accept {
		delete(c.addrByHandle, idx)
		return nil
	}
	return nil
}

// SetEScoMode implements hciradio.Controller.
func (c *Controller) SetEScoMode(params hciradio.SyncParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultESco = params
}

// ReadPeerAddr implements hciradio.Controller.
func (c *Controller) ReadPeerAddr(idx uint16) (scb.Addr, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr, ok := c.addrByHandle[idx]
	if !ok {
		return scb.Addr{}, hciradio.ErrUnknownHandle
	}
	return addr, nil
}

// SupportsEnhancedSetup implements hciradio.Controller.
func (c *Controller) SupportsEnhancedSetup() bool { return c.enhanced }

// SetVoiceSettings implements hciradio.Controller. Like a real controller, it
// is a no-op when the sim reports enhanced setup support.
func (c *Controller) SetVoiceSettings(v uint16) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.enhanced {
		return nil
	}
	c.voiceSetting = v
	return nil
}

// ConfigAudioPath implements hciradio.Controller.
func (c *Controller) ConfigAudioPath(path hciradio.DataPath, onRead hciradio.ReadFunc, enable bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.audioEnabled = enable
	if enable {
		c.onAudioRead = onRead
	} else {
		c.onAudioRead = nil
	}
	return nil
}

// WriteAudio implements hciradio.Controller. Frames are recorded for
// inspection by tests via Written.
func (c *Controller) WriteAudio(idx uint16, frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writtenAudio = append(c.writtenAudio, append([]byte(nil), frame...))
	return nil
}

// SetConnCompleteHandler implements hciradio.Controller.
func (c *Controller) SetConnCompleteHandler(f func(idx uint16)) { c.onConnComplete = f }

// SetDiscCompleteHandler implements hciradio.Controller.
func (c *Controller) SetDiscCompleteHandler(f func(idx uint16)) { c.onDiscComplete = f }

// SetConnRequestHandler implements hciradio.Controller.
func (c *Controller) SetConnRequestHandler(f func(idx uint16, params hciradio.ConnRequestParams)) {
	c.onConnRequest = f
}

// SetLinkChangeHandler implements hciradio.Controller.
func (c *Controller) SetLinkChangeHandler(f func(idx uint16, params hciradio.SyncParams)) {
	c.onLinkChange = f
}

// --- test/demo driving surface, not part of hciradio.Controller ---

// CompleteOutbound finishes a pending originator-side CreateSync for peer
// with the given HCI status (0 = success), assigning it a fresh handle on
// success. It is the sim's stand-in for a SynchronousConnectionCompleteEvent.
// A non-zero status has no usable handle and is delivered on the
// DiscComplete path, mirroring a real controller's failed Setup Synchronous
// Connection (see internal/hciradio/socket's identical handling).
func (c *Controller) CompleteOutbound(peer scb.Addr, hciStatus uint8) uint16 {
	c.mu.Lock()
	_, ok := c.pendingOut[peer]
	if ok {
		delete(c.pendingOut, peer)
	}

	if !ok {
		c.mu.Unlock()
		return 0
	}

	if hciStatus != 0 {
		onDisc := c.onDiscComplete
		c.mu.Unlock()
		if onDisc != nil {
			onDisc(0)
		}
		return 0
	}

	handle := c.nextHandle
	c.nextHandle++
	c.addrByHandle[handle] = peer
	onComplete := c.onConnComplete
	c.mu.Unlock()

	if onComplete != nil {
		onComplete(handle)
	}
	return handle
}

// DeliverConnRequest simulates a peer-initiated connection request arriving
// on a fresh handle, invoking the registered ConnRequest handler.
func (c *Controller) DeliverConnRequest(peer scb.Addr, linkType uint8) uint16 {
	c.mu.Lock()
	handle := c.nextHandle
	c.nextHandle++
	c.addrByHandle[handle] = peer
	onReq := c.onConnRequest
	c.mu.Unlock()

	if onReq != nil {
		onReq(handle, hciradio.ConnRequestParams{LinkType: linkType})
	}
	return handle
}

// CompleteDisconnect simulates a Disconnection Complete event for idx.
func (c *Controller) CompleteDisconnect(idx uint16) {
	c.mu.Lock()
	delete(c.addrByHandle, idx)
	onDisc := c.onDiscComplete
	c.mu.Unlock()

	if onDisc != nil {
		onDisc(idx)
	}
}

// DeliverInboundAudio feeds one frame to the registered ReadFunc, as if it
// had arrived from the controller's host-routed audio path.
func (c *Controller) DeliverInboundAudio(frame []byte) {
	c.mu.Lock()
	onRead := c.onAudioRead
	c.mu.Unlock()
	if onRead != nil {
		onRead(frame)
	}
}

// Written returns every frame handed to WriteAudio, in order.
func (c *Controller) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writtenAudio...)
}

// VoiceSetting returns the last value a legacy (non-enhanced)
// SetVoiceSettings call stored.
func (c *Controller) VoiceSetting() uint16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceSetting
}

var _ hciradio.Controller = (*Controller)(nil)
