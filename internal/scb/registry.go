package scb

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrNoFreeSlot is returned by Alloc when the registry is at capacity.
var ErrNoFreeSlot = errors.New("scb: no free slot")

// ErrInvalidIndex names the error of using an index outside [1, capacity] or
// index 0 ("none") where an allocated SCB is required. No Registry method
// returns it; ByIndex reports such an index as nil.
var ErrInvalidIndex = errors.New("scb: invalid index")

// Registry owns a fixed-size pool of SCBs. Index 0 is reserved for "none";
// valid slots are [1, capacity]. Indices are stable handles that cross the
// external boundary (spec.md §4.1).
type Registry struct {
	mu   sync.Mutex
	pool []slot
}

type slot struct {
	scb    *SCB
	inUse  bool
}

// NewRegistry creates a registry with the given capacity (typically 2 or 6,
// per spec.md §4.1).
func NewRegistry(capacity int) *Registry {
	return &Registry{pool: make([]slot, capacity)}
}

// Alloc reserves the first free slot for peer and returns the new SCB.
func (r *Registry) Alloc(peer Addr) (*SCB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.pool {
		if r.pool[i].inUse {
			continue
		}
		s := &SCB{
			PeerAddr: peer,
			SCOIndex: InvalidIndex,
			index:    i + 1,
		}
		r.pool[i] = slot{scb: s, inUse: true}
		return s, nil
	}
	return nil, ErrNoFreeSlot
}

// Free releases the slot owned by s. Freeing an SCB not owned by this
// registry is a no-op.
func (r *Registry) Free(s *SCB) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	i := s.index - 1
	if i < 0 || i >= len(r.pool) || r.pool[i].scb != s {
		return
	}
	r.pool[i] = slot{}
}

// ByIndex resolves a stable handle back to its SCB. Index 0 always resolves
// to nil ("none").
func (r *Registry) ByIndex(idx int) *SCB {
	if idx <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	i := idx - 1
	if i < 0 || i >= len(r.pool) || !r.pool[i].inUse {
		return nil
	}
	return r.pool[i].scb
}

// ByAddr returns the first in-use SCB whose PeerAddr matches addr, or nil.
func (r *Registry) ByAddr(addr Addr) *SCB {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.pool {
		if r.pool[i].inUse && r.pool[i].scb.PeerAddr == addr {
			return r.pool[i].scb
		}
	}
	return nil
}

// IndexOf returns the stable handle for s, or 0 if s is not owned by this
// registry.
func (r *Registry) IndexOf(s *SCB) int {
	if s == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	i := s.index - 1
	if i < 0 || i >= len(r.pool) || r.pool[i].scb != s {
		return 0
	}
	return s.index
}

// AnyOtherOpen reports whether any SCB other than exclude is currently
// in-use and holds a live controller handle. Used by the SHUTTING/LISTEN
// bookkeeping in spec.md §4.4 ("→SHUTDOWN if last, else →LISTEN").
func (r *Registry) AnyOtherOpen(exclude *SCB) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.pool {
		if !r.pool[i].inUse {
			continue
		}
		s := r.pool[i].scb
		if s == exclude {
			continue
		}
		if s.SCOIndex != InvalidIndex {
			return true
		}
	}
	return false
}

// ByControllerIdx returns the first in-use SCB whose SCOIndex equals idx, or
// nil. Used to resolve a controller callback's handle back to its SCB when
// it isn't the current attempt (scb.InvalidIndex never matches).
func (r *Registry) ByControllerIdx(idx uint16) *SCB {
	if idx == InvalidIndex {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.pool {
		if r.pool[i].inUse && r.pool[i].scb.SCOIndex == idx {
			return r.pool[i].scb
		}
	}
	return nil
}

// IsOpen reports whether s is currently allocated in this registry
// (used to decide whether to re-listen for an SCB after it closes).
func (r *Registry) IsOpen(s *SCB) bool {
	if s == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	i := s.index - 1
	return i >= 0 && i < len(r.pool) && r.pool[i].scb == s
}
