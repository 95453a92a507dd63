// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package waiter implements the id -> caller rendezvous the multiplex
// client uses to hand a response frame, read off the wire by the
// listener goroutine, back to the specific goroutine that is blocked
// waiting for it.
package waiter

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// ErrTimeout is returned by Handle.Wait when no response arrives
// before the deadline.
var ErrTimeout = wire.ErrTimeout

// Registry owns the live set of pending calls for one connection. It
// is safe for concurrent use: many goroutines register and wait while
// the single listener goroutine delivers.
//
// Deliberately scoped per connection rather than process-global: a
// process-global registry would force every MultiplexClient in the
// same process to share one id space for no benefit, and would outlive
// the connection whose responses it is meant to demultiplex.
type Registry struct {
	nextID atomic.Uint64

	mu    sync.Mutex
	slots map[uint64]chan *wire.Frame
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{slots: make(map[uint64]chan *wire.Frame)}
}

// Handle is the caller-side half of one pending call.
type Handle struct {
	id  uint64
	ch  chan *wire.Frame
	reg *Registry
}

// NewWaiter allocates a fresh id and a slot to receive its response.
// The id is practically unique for the registry's lifetime: the
// counter is 64 bits and never reused once assigned.
func (r *Registry) NewWaiter() (uint64, *Handle) {
	id := r.nextID.Add(1)
	ch := make(chan *wire.Frame, 1)

	r.mu.Lock()
	r.slots[id] = ch
	r.mu.Unlock()

	return id, &Handle{id: id, ch: ch, reg: r}
}

// Wait blocks until the listener delivers a response for this id or
// timeout elapses, whichever comes first. Either way the slot is
// reclaimed before Wait returns, so a late delivery after a timeout is
// simply dropped by SetResponse finding no slot.
func (h *Handle) Wait(timeout time.Duration) (*wire.Frame, error) {
	defer h.reg.forget(h.id)

	if timeout <= 0 {
		return <-h.ch, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-h.ch:
		return frame, nil
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (r *Registry) forget(id uint64) {
	r.mu.Lock()
	delete(r.slots, id)
	r.mu.Unlock()
}

// SetResponse delivers frame to the waiter registered under
// frame.ID, if one is still waiting. Delivering to an id nobody is
// waiting on (already timed out, or a duplicate delivery) is a benign
// no-op — this is the listener goroutine's only way of reporting a
// problem, and a missing slot is not one.
func (r *Registry) SetResponse(frame *wire.Frame) {
	r.mu.Lock()
	ch, ok := r.slots[frame.ID]
	if ok {
		delete(r.slots, frame.ID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	select {
	case ch <- frame:
	default:
		// Slot already satisfied (shouldn't happen: each id is
		// delivered at most once) — drop rather than block.
	}
}

// Len reports the number of calls currently in flight. Exposed for
// tests and diagnostics only.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
