// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rpcserver implements the three server engines fiberpc
// offers: a datagram (UDP) dispatcher, a stream (TCP) dispatcher, and
// a local (Unix domain socket) dispatcher built on the same stream
// code. All three share one shape: accept or receive in a loop, bound
// each request's work to its own goroutine, and return replies in
// whatever order the goroutines finish in — correlation by id is the
// client's job, not this package's.
package rpcserver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// Service is the pluggable callback every engine dispatches requests
// to. It must be safe to call concurrently from many goroutines: the
// core holds it behind a shared reference, one per in-flight request.
//
// ctx is cancelled when the owning ServerInstance is closed and, for
// stream and local engines, also when the connection the request
// arrived on ends;
// implementations that don't need cancellation simply ignore it.
type Service interface {
	Serve(ctx context.Context, request []byte, rsp *wire.RspBuf) error
}

// ServiceFunc adapts a plain function to Service.
type ServiceFunc func(ctx context.Context, request []byte, rsp *wire.RspBuf) error

func (f ServiceFunc) Serve(ctx context.Context, request []byte, rsp *wire.RspBuf) error {
	return f(ctx, request, rsp)
}

// Options configures an engine's optional domain-stack wiring. The
// zero value disables every optional feature.
type Options struct {
	// Logger receives decode errors, accept errors, and lifecycle
	// events. Defaults to slog.Default() when nil.
	Logger *slog.Logger

	// BytesPerSecond, when > 0, caps each stream connection's outbound
	// byte rate via internal/ratelimit. Ignored by the datagram engine
	// (UDP has no per-byte backpressure to shape).
	BytesPerSecond int64

	// Metrics, when non-nil, receives request counts, latencies, and
	// decode-error counts from internal/rpcmetrics.
	Metrics MetricsSink
}

// MetricsSink is the subset of internal/rpcmetrics.Collector the
// server engines report into. Defined here rather than imported
// directly so rpcserver never depends on the prometheus client
// library except through whatever concrete Collector a caller passes.
type MetricsSink interface {
	ObserveRequest(transport string, ok bool, elapsedSeconds float64)
	ObserveDecodeError(transport string)
}

func (o *Options) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o *Options) metrics() MetricsSink {
	if o == nil {
		return nil
	}
	return o.Metrics
}

func (o *Options) bytesPerSecond() int64 {
	if o == nil {
		return 0
	}
	return o.BytesPerSecond
}

// ServerInstance is the owning handle over one engine's top-level
// accept/receive goroutine. Closing it cancels that goroutine and, for
// local sockets, unlinks the filesystem entry; it blocks until every
// connection and request goroutine the engine spawned has returned.
type ServerInstance struct {
	cancel   context.CancelFunc
	closeFns []func() error
	wg       *sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// Close cancels the accept/receive loop, releases the underlying
// socket(s), and waits for every goroutine spawned by this instance to
// exit. It is safe to call more than once; only the first call does
// any work.
func (s *ServerInstance) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		for _, fn := range s.closeFns {
			if err := fn(); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		s.wg.Wait()
	})
	return s.closeErr
}

// dispatch runs svc against request, finalizes rsp into wire bytes,
// and hands them to emit. It is the one piece of logic shared by
// every per-request goroutine across all three engines.
func dispatch(ctx context.Context, svc Service, id uint64, request []byte, emit func([]byte)) error {
	rsp := wire.NewRspBuf()
	err := svc.Serve(ctx, request, rsp)
	emit(rsp.Finish(id, err))
	return err
}
