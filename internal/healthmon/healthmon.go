// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package healthmon runs a cron-scheduled background health check
// against a fiberpc server: on each tick it issues a SimpleClient call
// and logs the round-trip time or failure.
package healthmon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nishisan-dev/fiberpc/internal/rpcclient"
	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// Result captures the outcome of the most recent health check.
type Result struct {
	OK        bool
	RTT       time.Duration
	Err       error
	Timestamp time.Time
}

// Dialer opens a fresh connection to the target server. healthmon
// calls it on every tick rather than holding one connection open, so a
// server restart between ticks is itself detected as a failed check.
type Dialer func() (*rpcclient.SimpleClient, error)

// Monitor drives one cron job that health-checks a single target.
type Monitor struct {
	cron    *cron.Cron
	logger  *slog.Logger
	dial    Dialer
	payload []byte
	timeout time.Duration

	mu   sync.Mutex
	last Result
}

// New builds a Monitor that issues a health-check call on the given
// cron schedule (standard 5-field cron syntax). payload is the request
// body sent on each check; a server wired to answer it should echo it
// back or otherwise return success quickly.
func New(schedule string, dial Dialer, payload []byte, timeout time.Duration, logger *slog.Logger) (*Monitor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		logger:  logger,
		dial:    dial,
		payload: payload,
		timeout: timeout,
	}

	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))
	if _, err := c.AddFunc(schedule, m.check); err != nil {
		return nil, fmt.Errorf("healthmon: adding cron schedule %q: %w", schedule, err)
	}
	m.cron = c
	return m, nil
}

// Start begins running the scheduled checks.
func (m *Monitor) Start() {
	m.logger.Info("healthmon: started")
	m.cron.Start()
}

// Stop stops the scheduler and waits (up to ctx's deadline) for any
// in-flight check to finish.
func (m *Monitor) Stop(ctx context.Context) {
	stopCtx := m.cron.Stop()
	select {
	case <-stopCtx.Done():
		m.logger.Info("healthmon: stopped")
	case <-ctx.Done():
		m.logger.Warn("healthmon: stop timed out waiting for in-flight check")
	}
}

// LastResult returns the most recently observed check result. The
// zero value (Timestamp.IsZero()) means no check has run yet.
func (m *Monitor) LastResult() Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) check() {
	start := time.Now()
	res := Result{Timestamp: start}

	client, err := m.dial()
	if err != nil {
		res.Err = fmt.Errorf("dial: %w", err)
		m.logger.Warn("healthmon: check failed", "error", res.Err)
		m.record(res)
		return
	}
	defer client.Close()
	client.SetTimeout(m.timeout)

	req := wire.NewReqBuf()
	req.Write(m.payload)

	_, err = client.CallService(req)
	res.RTT = time.Since(start)
	if err != nil {
		res.Err = err
		m.logger.Warn("healthmon: check failed", "error", err, "rtt", res.RTT)
	} else {
		res.OK = true
		m.logger.Info("healthmon: check ok", "rtt", res.RTT)
	}
	m.record(res)
}

func (m *Monitor) record(r Result) {
	m.mu.Lock()
	m.last = r
	m.mu.Unlock()
}
