// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package transport

import (
	"net"
	"testing"
	"time"
)

func TestCapabilityReadWriteOverTCPLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	server := <-accepted
	defer server.Close()

	c := New(server)
	if _, err := c.Write([]byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	buf := make([]byte, 5)
	if _, err := client.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q", buf)
	}
}

func TestCapabilityCloneReaderDoesNotCloseConn(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	c := New(serverSide)
	reader, err := c.CloneReader()
	if err != nil {
		t.Fatalf("CloneReader: %v", err)
	}

	if err := reader.Close(); err != nil {
		t.Fatalf("reader.Close: %v", err)
	}

	// The underlying connection must still be usable after the cloned
	// reader is closed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4)
		if _, err := reader.Read(buf); err != nil {
			t.Errorf("Read after reader.Close: %v", err)
			return
		}
		if string(buf) != "ping" {
			t.Errorf("got %q", buf)
		}
	}()

	if _, err := clientSide.Write([]byte("ping")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	<-done
}

func TestCapabilitySetReadDeadline(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	defer serverSide.Close()
	defer clientSide.Close()

	c := New(serverSide)
	if err := c.SetReadDeadline(time.Now().Add(10 * time.Millisecond)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}

	buf := make([]byte, 1)
	_, err := c.Read(buf)
	if err == nil {
		t.Fatal("want deadline error, got nil")
	}
}
