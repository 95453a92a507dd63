// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rpcserver

import (
	"context"
	"net"
	"testing"

	"github.com/nishisan-dev/fiberpc/internal/rpcclient"
	"github.com/nishisan-dev/fiberpc/internal/wire"
)

// BenchmarkDatagramEcho measures one CallService round trip against a
// datagram echo server: a fixed 100-byte request, one reusable client,
// no concurrency.
func BenchmarkDatagramEcho(b *testing.B) {
	addr := "127.0.0.1:0"
	ln, err := net.ListenPacket("udp", addr)
	if err != nil {
		b.Fatalf("reserving a port: %v", err)
	}
	realAddr := ln.LocalAddr().String()
	ln.Close()

	inst, err := StartDatagram(context.Background(), realAddr, echoService, nil)
	if err != nil {
		b.Fatalf("StartDatagram: %v", err)
	}
	defer inst.Close()

	conn, err := net.Dial("udp", realAddr)
	if err != nil {
		b.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	client := rpcclient.DialDatagram(conn)

	payload := make([]byte, 100)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := wire.NewReqBuf()
		req.Write(payload)
		if _, err := client.CallService(req); err != nil {
			b.Fatalf("CallService: %v", err)
		}
	}
}
