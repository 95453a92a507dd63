// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcclient implements both client models fiberpc offers: the
// single-in-flight SimpleClient (one call at a time, no background
// goroutine) and the pipelined MultiplexClient (many calls in flight,
// demultiplexed by a listener goroutine and internal/waiter).
package rpcclient

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// DefaultTimeout is used by CallService when no per-call timeout is
// set via SetTimeout.
const DefaultTimeout = 5 * time.Second

// MaxDatagram bounds a single read from a datagram carrier.
const MaxDatagram = 64 * 1024

// SimpleClient issues one request at a time over a connected net.Conn
// and blocks until the matching response arrives or the deadline
// passes. It holds no background goroutine: callers fully own the
// blocking.
//
// Because only one call can be outstanding at a time, a SimpleClient
// is not safe for concurrent use across goroutines — callers needing
// pipelining should use MultiplexClient instead.
//
// Datagram and stream carriers need different read strategies (one
// Read call returns exactly one datagram, but a stream's frame can
// split across several Read calls), so DialDatagram and DialLocal
// construct the same struct with the strategy fixed at dial time
// rather than branching on every call.
type SimpleClient struct {
	conn     net.Conn
	datagram bool
	reader   *bufio.Reader // stream mode only
	nextID   atomic.Uint64
	timeout  time.Duration
}

// DialDatagram wraps an already-connected datagram conn, typically the
// result of net.DialUDP.
func DialDatagram(conn net.Conn) *SimpleClient {
	return &SimpleClient{conn: conn, datagram: true, timeout: DefaultTimeout}
}

// DialLocal wraps an already-connected stream conn over a local
// socket, typically the result of net.DialUnix.
func DialLocal(conn net.Conn) *SimpleClient {
	return &SimpleClient{conn: conn, reader: bufio.NewReader(conn), timeout: DefaultTimeout}
}

// SetTimeout overrides DefaultTimeout for subsequent calls.
func (c *SimpleClient) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close closes the underlying connection.
func (c *SimpleClient) Close() error {
	return c.conn.Close()
}

// CallService sends req and blocks for the matching response, silently
// discarding any frame that arrives tagged with a different id — a
// stale reply to a call this client gave up on earlier over the same
// socket. On the datagram carrier stray frames from unrelated peers
// are equally possible; both are handled the same way.
func (c *SimpleClient) CallService(req *wire.ReqBuf) ([]byte, error) {
	id := c.nextID.Add(1)
	frameOut := req.Finish(id)

	deadline := time.Now().Add(c.timeout)
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("rpcclient: set read deadline: %w", err)
	}

	if _, err := c.conn.Write(frameOut); err != nil {
		return nil, fmt.Errorf("rpcclient: write: %w", err)
	}

	for {
		frame, err := c.readFrame()
		if err != nil {
			if isTimeout(err) {
				return nil, wire.ErrTimeout
			}
			return nil, fmt.Errorf("rpcclient: read: %w", err)
		}
		if frame.ID != id {
			continue
		}
		return frame.DecodeRsp()
	}
}

// readFrame decodes exactly one frame using the strategy fixed at
// dial time: a single Read for datagram carriers (one packet is one
// frame), or an incremental, header-then-payload read for stream
// carriers, where a frame can arrive split across several Read calls.
func (c *SimpleClient) readFrame() (*wire.Frame, error) {
	if c.datagram {
		buf := make([]byte, MaxDatagram)
		n, err := c.conn.Read(buf)
		if err != nil {
			return nil, err
		}
		frame, err := wire.DecodeBytes(buf[:n])
		if err != nil {
			return nil, &wire.ErrClientDeserialize{Err: err}
		}
		return frame, nil
	}

	frame, err := wire.DecodeFrom(c.reader)
	if err != nil {
		return nil, &wire.ErrClientDeserialize{Err: err}
	}
	return frame, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
