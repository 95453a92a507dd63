// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ratelimit paces a stream connection's outbound frame
// traffic. The pacer sits between the queued writer's drainer and the
// connection, so the unit it sees is a whole drained frame batch: the
// batch always reaches the kernel as a single write, and its byte cost
// is settled against a token bucket afterwards, before the next batch
// is accepted. Charging after the write keeps frames contiguous on the
// wire; backpressure lands on the drainer, never on producers.
package ratelimit

import (
	"context"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/nishisan-dev/fiberpc/internal/qwriter"
)

// Burst bounds. The floor covers one full drainer batch of ~1 KiB
// frames, so a typical flush settles in a single reservation; the
// ceiling bounds how much backlog one oversized batch can queue behind
// itself.
const (
	minBurst = qwriter.MaxBatch * 1024
	maxBurst = 1 << 20
)

// Pacer is an io.Writer that caps sustained throughput at a configured
// byte rate while always letting each individual write through whole.
type Pacer struct {
	w       io.Writer
	limiter *rate.Limiter
	ctx     context.Context
}

// New wraps w with a bytesPerSec cap tied to ctx — the connection's
// context, so tearing the connection down releases a pacer that is
// mid-settle. bytesPerSec <= 0 returns w unchanged; callers that never
// set Options.BytesPerSecond pay no pacing cost.
func New(ctx context.Context, w io.Writer, bytesPerSec int64) io.Writer {
	if bytesPerSec <= 0 {
		return w
	}

	burst := int(bytesPerSec)
	if burst < minBurst {
		burst = minBurst
	}
	if burst > maxBurst {
		burst = maxBurst
	}

	return &Pacer{
		w:       w,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		ctx:     ctx,
	}
}

// Write sends p to the underlying writer in one call, then settles its
// byte cost before returning. A frame batch is therefore never split
// across syscalls; the drainer simply observes a slow sink when the
// connection is over its rate.
func (p *Pacer) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if err != nil {
		return n, err
	}
	return n, p.settle(n)
}

// settle charges the limiter for n bytes in burst-sized reservations
// and sleeps out the aggregate delay. Reservations queue behind each
// other inside the limiter, so the last reservation's delay is the
// total time this batch owes.
func (p *Pacer) settle(n int) error {
	var delay time.Duration
	for owed := n; owed > 0; {
		step := owed
		if burst := p.limiter.Burst(); step > burst {
			step = burst
		}
		// step never exceeds the burst, so the reservation cannot fail.
		if d := p.limiter.ReserveN(time.Now(), step).Delay(); d > delay {
			delay = d
		}
		owed -= step
	}

	if delay == 0 {
		return nil
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}
