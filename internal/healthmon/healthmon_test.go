// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package healthmon

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nishisan-dev/fiberpc/internal/rpcclient"
	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// echoUDP starts a bare UDP responder that echoes each request frame's
// payload back under the same id, standing in for a full server engine.
func echoUDP(t *testing.T) *net.UDPAddr {
	t.Helper()
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		buf := make([]byte, 64*1024)
		for {
			n, addr, err := ln.ReadFromUDP(buf)
			if err != nil {
				return
			}
			frame, err := wire.DecodeBytes(buf[:n])
			if err != nil {
				continue
			}
			rsp := wire.NewRspBuf()
			rsp.Write(frame.Payload)
			ln.WriteToUDP(rsp.Finish(frame.ID, nil), addr)
		}
	}()
	return ln.LocalAddr().(*net.UDPAddr)
}

func TestNewRejectsBadSchedule(t *testing.T) {
	dial := func() (*rpcclient.SimpleClient, error) {
		return nil, errors.New("never called")
	}
	if _, err := New("not a cron expression", dial, []byte("ping"), time.Second, nil); err == nil {
		t.Fatal("expected an error for an invalid cron schedule")
	}
}

func TestCheckRecordsSuccessfulRoundTrip(t *testing.T) {
	addr := echoUDP(t)

	dial := func() (*rpcclient.SimpleClient, error) {
		conn, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			return nil, err
		}
		return rpcclient.DialDatagram(conn), nil
	}

	m, err := New("@every 1h", dial, []byte("ping"), time.Second, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if last := m.LastResult(); !last.Timestamp.IsZero() {
		t.Fatalf("expected zero result before any check, got %+v", last)
	}

	m.check()

	last := m.LastResult()
	if !last.OK {
		t.Fatalf("check failed: %v", last.Err)
	}
	if last.RTT <= 0 {
		t.Errorf("expected a positive RTT, got %v", last.RTT)
	}
	if last.Timestamp.IsZero() {
		t.Error("expected the check timestamp to be recorded")
	}
}

func TestCheckRecordsDialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	dial := func() (*rpcclient.SimpleClient, error) {
		return nil, dialErr
	}

	m, err := New("@every 1h", dial, []byte("ping"), time.Second, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.check()

	last := m.LastResult()
	if last.OK {
		t.Fatal("expected the check to fail")
	}
	if !errors.Is(last.Err, dialErr) {
		t.Errorf("expected the dial error to be recorded, got %v", last.Err)
	}
}

func TestCheckRecordsTimeoutAgainstSilentServer(t *testing.T) {
	// A bound but never-answering socket: the check must surface the
	// client's timeout rather than hang.
	ln, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer ln.Close()
	addr := ln.LocalAddr().(*net.UDPAddr)

	dial := func() (*rpcclient.SimpleClient, error) {
		conn, err := net.DialUDP("udp", nil, addr)
		if err != nil {
			return nil, err
		}
		return rpcclient.DialDatagram(conn), nil
	}

	m, err := New("@every 1h", dial, []byte("ping"), 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	m.check()

	last := m.LastResult()
	if last.OK {
		t.Fatal("expected the check to fail against a silent server")
	}
	if !errors.Is(last.Err, wire.ErrTimeout) {
		t.Errorf("expected wire.ErrTimeout, got %v", last.Err)
	}
}
