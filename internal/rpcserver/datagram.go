// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/nishisan-dev/fiberpc/internal/nblog"
	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// MaxDatagram bounds a single read from the UDP socket. One UDP
// datagram is one frame, so this also bounds the largest request the
// datagram engine can receive.
const MaxDatagram = 64 * 1024

// StartDatagram binds address (UDP) and serves svc until the returned
// ServerInstance is closed. Each received packet is decoded as exactly
// one frame and dispatched to its own goroutine; the write side is
// mutex-guarded rather than queued because a single UDP send is
// already one atomic frame on the wire — there is no batching
// opportunity the way there is for a stream.
func StartDatagram(ctx context.Context, address string, svc Service, opts *Options) (*ServerInstance, error) {
	metrics := opts.metrics()

	udpAddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	logger := nblog.Engine(opts.logger(), "datagram", conn.LocalAddr().String())

	runCtx, cancel := context.WithCancel(ctx)
	var writeMu sync.Mutex
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		runDatagramLoop(runCtx, conn, svc, logger, metrics, &writeMu, &wg)
	}()

	return &ServerInstance{
		cancel:   cancel,
		closeFns: []func() error{conn.Close},
		wg:       &wg,
	}, nil
}

func runDatagramLoop(ctx context.Context, conn *net.UDPConn, svc Service, logger *slog.Logger, metrics MetricsSink, writeMu *sync.Mutex, wg *sync.WaitGroup) {
	buf := make([]byte, MaxDatagram)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Warn("fiberpc: datagram receive failed", "error", err)
				return
			}
		}

		packet := make([]byte, n)
		copy(packet, buf[:n])

		frame, err := wire.DecodeBytes(packet)
		if err != nil {
			if metrics != nil {
				metrics.ObserveDecodeError("datagram")
			}
			logger.Warn("fiberpc: dropping malformed datagram", "error", err, "from", addr)
			continue
		}

		wg.Add(1)
		go func(frame *wire.Frame, addr *net.UDPAddr) {
			defer wg.Done()
			start := time.Now()
			err := dispatch(ctx, svc, frame.ID, frame.Payload, func(out []byte) {
				writeMu.Lock()
				defer writeMu.Unlock()
				if _, werr := conn.WriteToUDP(out, addr); werr != nil {
					// Logged and dropped: datagrams are loss-tolerant at
					// the application layer and the caller relies on its
					// own timeout to detect a lost reply.
					logger.Warn("fiberpc: datagram send failed", "error", werr, "to", addr)
				}
			})
			if metrics != nil {
				metrics.ObserveRequest("datagram", err == nil, time.Since(start).Seconds())
			}
		}(frame, addr)
	}
}
