// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package waiter

import (
	"sync"
	"testing"
	"time"

	"github.com/nishisan-dev/fiberpc/internal/wire"
)

func TestWaitDeliversResponse(t *testing.T) {
	reg := New()
	id, h := reg.NewWaiter()

	go reg.SetResponse(&wire.Frame{ID: id, Status: wire.StatusOK, Payload: []byte("ok")})

	frame, err := h.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if string(frame.Payload) != "ok" {
		t.Fatalf("payload: got %q", frame.Payload)
	}
	if reg.Len() != 0 {
		t.Fatalf("slot not reclaimed: Len = %d", reg.Len())
	}
}

func TestWaitTimesOut(t *testing.T) {
	reg := New()
	_, h := reg.NewWaiter()

	_, err := h.Wait(10 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
	if reg.Len() != 0 {
		t.Fatalf("slot not reclaimed after timeout: Len = %d", reg.Len())
	}
}

func TestLateDeliveryAfterTimeoutIsDropped(t *testing.T) {
	reg := New()
	id, h := reg.NewWaiter()

	_, err := h.Wait(10 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("want ErrTimeout, got %v", err)
	}

	// The slot is gone; delivering late must not panic or block.
	reg.SetResponse(&wire.Frame{ID: id, Status: wire.StatusOK, Payload: []byte("late")})
}

func TestDoubleDeliveryIsBenign(t *testing.T) {
	reg := New()
	id, h := reg.NewWaiter()

	reg.SetResponse(&wire.Frame{ID: id, Status: wire.StatusOK, Payload: []byte("first")})
	// Second delivery under the same id finds no slot (already
	// reclaimed by the first) and must not block or panic.
	reg.SetResponse(&wire.Frame{ID: id, Status: wire.StatusOK, Payload: []byte("second")})

	frame, err := h.Wait(time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if string(frame.Payload) != "first" {
		t.Fatalf("payload: got %q", frame.Payload)
	}
}

func TestConcurrentWaitersGetOwnResponses(t *testing.T) {
	reg := New()
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, h := reg.NewWaiter()
			go reg.SetResponse(&wire.Frame{ID: id, Status: wire.StatusOK, Payload: []byte{byte(i)}})

			frame, err := h.Wait(time.Second)
			if err != nil {
				t.Errorf("Wait(%d): %v", i, err)
				return
			}
			if len(frame.Payload) != 1 || frame.Payload[0] != byte(i) {
				t.Errorf("waiter %d got mismatched payload %v", i, frame.Payload)
			}
		}(i)
	}
	wg.Wait()

	if reg.Len() != 0 {
		t.Fatalf("slots leaked: Len = %d", reg.Len())
	}
}
