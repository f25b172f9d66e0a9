package sco

import (
	"sync"

	logxi "github.com/mgutz/logxi/v1"

	"github.com/CypherOS/system-bt/internal/codec"
	"github.com/CypherOS/system-bt/internal/hciradio"
	"github.com/CypherOS/system-bt/internal/scb"
)

var logger = logxi.New("sco")

// eventConnRequest is an internal event kind, not one of the ten spec.md
// §4.4 table events: peer-initiated ConnRequest is handled by its own accept
// policy (spec.md §4.4 "Accept policy"), not by the table dispatch.
const eventConnRequest Event = -1

// event is one posted message on the single serialized queue (spec.md §5).
type event struct {
	kind   Event
	scb    *scb.SCB
	idx    uint16
	ok     bool
	params hciradio.ConnRequestParams
	done   chan struct{}
}

// Machine is the SCO/eSCO control core: C4 (state machine) and C5 (event
// dispatcher) combined behind one serialized event loop, the way the
// teacher's states type combines dispatch and control behind states.loop().
type Machine struct {
	cfg Config

	registry   *scb.Registry
	controller hciradio.Controller
	negotiator *codec.Negotiator
	observer   Observer
	power      PowerManager
	callActive CallActiver
	setupHook  AudioSetupHook
	audioSink  AudioSink

	mu  sync.Mutex // guards ctl against concurrent IsOpen/IsOpening reads from outside the loop
	ctl control

	chEvent chan event
	done    chan struct{}
	wg      sync.WaitGroup
}

// New builds a Machine bound to controller and observer, applies opts, wires
// the controller's callbacks into the event loop, and starts the loop.
func New(controller hciradio.Controller, sender codec.Sender, observer Observer, opts ...Option) (*Machine, error) {
	m := &Machine{
		cfg:        defaultConfig(),
		controller: controller,
		observer:   observer,
		power:      NopPowerManager{},
		callActive: nopCallActiver{},
		chEvent:    make(chan event, 16),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	m.registry = scb.NewRegistry(m.cfg.SCBCapacity)
	m.negotiator = codec.New(sender, busySignaler{m}, m.cfg.CodecNegoTimeout, codec.RealTimer)
	m.negotiator.SetDoneHandler(m.onCodecDone)

	controller.SetConnCompleteHandler(m.onConnComplete)
	controller.SetDiscCompleteHandler(m.onDiscComplete)
	controller.SetConnRequestHandler(m.onConnRequest)
	controller.SetLinkChangeHandler(m.onLinkChange)

	m.wg.Add(1)
	go m.loop()
	return m, nil
}

// busySignaler adapts Machine's PowerManager to codec.BusySignaler.
type busySignaler struct{ m *Machine }

func (b busySignaler) Busy(peer scb.Addr) { b.m.power.Busy(peer) }

// Stop stops the event loop. Pending events are dropped.
func (m *Machine) Stop() {
	close(m.done)
	m.wg.Wait()
}

// Registry exposes the SCB registry so the surrounding AG can alloc/free
// SCBs (spec.md §4.1 is explicitly owned by the AG, not the core).
func (m *Machine) Registry() *scb.Registry { return m.registry }

func (m *Machine) loop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case e := <-m.chEvent:
			m.mu.Lock()
			m.handle(e)
			m.mu.Unlock()
			close(e.done)
		}
	}
}

func (m *Machine) post(e event) {
	e.done = make(chan struct{})
	select {
	case m.chEvent <- e:
	case <-m.done:
		return
	}
	select {
	case <-e.done:
	case <-m.done:
	}
}

func (m *Machine) setState(s State) {
	if m.ctl.state != s {
		logger.Info("sco: transition", "from", m.ctl.state, "to", s)
	}
	m.ctl.state = s
}

func (m *Machine) handle(e event) {
	if e.kind == eventConnRequest {
		m.acceptConnRequest(e.scb, e.idx, e.params)
		return
	}
	logger.Info("sco: event", "state", m.ctl.state, "event", e.kind)
	m.dispatch(e)
}
