// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/nishisan-dev/fiberpc/internal/nblog"
	"github.com/nishisan-dev/fiberpc/internal/qwriter"
	"github.com/nishisan-dev/fiberpc/internal/ratelimit"
	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// StartStream listens on a TCP address and serves svc over it. Each
// accepted connection gets its own goroutine; each request decoded on
// that connection gets its own goroutine in turn, writing its response
// through one queued writer shared by every request on that
// connection.
func StartStream(ctx context.Context, address string, svc Service, opts *Options) (*ServerInstance, error) {
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return startStreamListener(ctx, ln, "stream", svc, opts, nil)
}

// StartLocal listens on a Unix-domain socket at path, unlinking any
// stale entry left over from a previous run before binding and
// removing it again when the returned ServerInstance is closed.
func StartLocal(ctx context.Context, path string, svc Service, opts *Options) (*ServerInstance, error) {
	if err := removeStaleSocket(path); err != nil {
		return nil, err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return startStreamListener(ctx, ln, "local", svc, opts, func() error {
		return os.Remove(path)
	})
}

func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err == nil {
		return os.Remove(path)
	} else if !os.IsNotExist(err) {
		return err
	}
	return nil
}

// connManager anchors the lifetimes of every connection goroutine and
// its per-request children: when it is closed, every tracked
// connection is force-closed (unblocking any goroutine parked in a
// Read) and Wait blocks until they have all returned. Dropping the
// ServerInstance drops this, which cancels every connection
// goroutine deterministically.
type connManager struct {
	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func newConnManager() *connManager {
	return &connManager{conns: make(map[net.Conn]struct{})}
}

func (m *connManager) track(c net.Conn) {
	m.mu.Lock()
	m.conns[c] = struct{}{}
	m.mu.Unlock()
}

func (m *connManager) untrack(c net.Conn) {
	m.mu.Lock()
	delete(m.conns, c)
	m.mu.Unlock()
}

func (m *connManager) closeAll() {
	m.mu.Lock()
	conns := make([]net.Conn, 0, len(m.conns))
	for c := range m.conns {
		conns = append(conns, c)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
}

func startStreamListener(ctx context.Context, ln net.Listener, transport string, svc Service, opts *Options, extraClose func() error) (*ServerInstance, error) {
	logger := nblog.Engine(opts.logger(), transport, ln.Addr().String())
	metrics := opts.metrics()
	bps := opts.bytesPerSecond()

	runCtx, cancel := context.WithCancel(ctx)
	mgr := newConnManager()

	mgr.wg.Add(1)
	go func() {
		defer mgr.wg.Done()
		acceptLoop(runCtx, ln, transport, svc, logger, metrics, bps, mgr)
	}()

	closeFns := []func() error{ln.Close}
	if extraClose != nil {
		closeFns = append(closeFns, extraClose)
	}

	inst := &ServerInstance{
		cancel:   cancel,
		closeFns: closeFns,
		wg:       &mgr.wg,
	}
	// closeAll must run after cancel (so the accept loop's ctx.Done
	// check already fired) but before Wait — ServerInstance.Close
	// runs cancel, then every closeFns entry, then wg.Wait(), so
	// appending closeAll here gets exactly that ordering.
	inst.closeFns = append(inst.closeFns, func() error {
		mgr.closeAll()
		return nil
	})
	return inst, nil
}

func acceptLoop(ctx context.Context, ln net.Listener, transport string, svc Service, logger *slog.Logger, metrics MetricsSink, bps int64, mgr *connManager) {
	defer mgr.closeAll()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Warn("fiberpc: accept failed", "error", err)
				return
			}
		}

		mgr.track(conn)
		mgr.wg.Add(1)
		go func(conn net.Conn) {
			defer mgr.wg.Done()
			defer mgr.untrack(conn)
			defer conn.Close()
			serveConn(ctx, conn, transport, svc, logger, metrics, bps, mgr)
		}(conn)
	}
}

// serveConn decodes requests from conn until it sees a graceful close
// or a protocol error, spawning one goroutine per request that writes
// its response through a writer shared by the whole connection.
func serveConn(ctx context.Context, conn net.Conn, transport string, svc Service, logger *slog.Logger, metrics MetricsSink, bps int64, mgr *connManager) {
	logger = logger.With("peer", conn.RemoteAddr().String())
	ctx, cancel := context.WithCancel(ctx)

	var sink io.Writer = conn
	if bps > 0 {
		sink = ratelimit.New(ctx, conn, bps)
	}

	w := qwriter.New(sink, func(err error) {
		logger.Warn("fiberpc: stream write failed", "error", err)
	})
	reader := bufio.NewReader(conn)

	var reqWG sync.WaitGroup
	defer reqWG.Wait()
	defer cancel()

	for {
		frame, err := wire.DecodeFrom(reader)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Debug("fiberpc: connection closed")
			} else {
				if metrics != nil {
					metrics.ObserveDecodeError(transport)
				}
				logger.Warn("fiberpc: tearing down connection on decode error", "error", err)
			}
			return
		}

		reqWG.Add(1)
		mgr.wg.Add(1)
		go func(frame *wire.Frame) {
			defer reqWG.Done()
			defer mgr.wg.Done()
			start := time.Now()
			err := dispatch(ctx, svc, frame.ID, frame.Payload, w.Write)
			if metrics != nil {
				metrics.ObserveRequest(transport, err == nil, time.Since(start).Seconds())
			}
		}(frame)
	}
}
