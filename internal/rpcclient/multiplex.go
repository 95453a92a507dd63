// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcclient

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nishisan-dev/fiberpc/internal/qwriter"
	"github.com/nishisan-dev/fiberpc/internal/transport"
	"github.com/nishisan-dev/fiberpc/internal/waiter"
	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// atomicDuration stores a time.Duration for lock-free concurrent
// reads from CallService while SetTimeout may be called from another
// goroutine.
type atomicDuration struct {
	v atomic.Int64
}

func (a *atomicDuration) Store(d time.Duration) { a.v.Store(int64(d)) }
func (a *atomicDuration) Load() time.Duration   { return time.Duration(a.v.Load()) }

// MultiplexClient pipelines many concurrent calls over one stream
// carrier: a single listener goroutine demultiplexes responses by id
// while any number of caller goroutines write requests and block on
// their own waiter handle.
type MultiplexClient struct {
	cap    transport.Capability
	writer *qwriter.Writer
	waiter *waiter.Registry
	logger *slog.Logger

	timeout atomicDuration

	wg sync.WaitGroup
}

// Connect takes ownership of cap (typically transport.New wrapping a
// net.DialTCP or net.DialUnix result) and starts its listener
// goroutine. logger may be nil, in which case slog.Default is used.
func Connect(cap transport.Capability, logger *slog.Logger) *MultiplexClient {
	if logger == nil {
		logger = slog.Default()
	}

	c := &MultiplexClient{
		cap: cap,
		writer: qwriter.New(cap, func(err error) {
			logger.Error("fiberpc: multiplex client write failed", "error", err)
		}),
		waiter: waiter.New(),
		logger: logger,
	}
	c.timeout.Store(DefaultTimeout)

	reader, err := cap.CloneReader()
	if err != nil {
		// A Capability built by transport.New never fails to clone;
		// a custom Capability that does indicates a programming error
		// in that implementation, not a runtime condition to recover
		// from.
		panic(fmt.Sprintf("fiberpc: CloneReader: %v", err))
	}

	c.wg.Add(1)
	go c.listen(bufio.NewReader(reader))

	return c
}

// SetTimeout overrides DefaultTimeout for subsequent calls. Safe to
// call concurrently with CallService.
func (c *MultiplexClient) SetTimeout(d time.Duration) {
	c.timeout.Store(d)
}

// listen is the connection's single reader goroutine: it decodes one
// frame at a time and routes it to whichever caller is waiting on
// that id. It exits on the first decode error, which for a graceful
// peer close is io.EOF.
func (c *MultiplexClient) listen(r *bufio.Reader) {
	defer c.wg.Done()
	for {
		frame, err := wire.DecodeFrom(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.logger.Debug("fiberpc: multiplex client connection closed")
			} else {
				c.logger.Warn("fiberpc: multiplex client listener exiting", "error", err)
			}
			return
		}
		c.waiter.SetResponse(frame)
	}
}

// CallService writes req and blocks until the matching response
// arrives or the client's timeout elapses.
func (c *MultiplexClient) CallService(req *wire.ReqBuf) ([]byte, error) {
	id, h := c.waiter.NewWaiter()
	c.writer.Write(req.Finish(id))

	frame, err := h.Wait(c.timeout.Load())
	if err != nil {
		return nil, err
	}
	return frame.DecodeRsp()
}

// Close closes the underlying connection and joins the listener
// goroutine. Closing unblocks any Read the listener is parked in
// (Go's net.Conn.Close is safe to call concurrently with a pending
// Read, unlike relying on the peer to hang up), so joining here is
// safe and bounded — no separate detach-on-drop path is needed.
func (c *MultiplexClient) Close() error {
	err := c.cap.Close()
	c.wg.Wait()
	return err
}
