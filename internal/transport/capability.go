// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport is the uniform view over bidirectional byte
// streams (TCP and Unix-domain sockets) that MultiplexClient dials
// through. It is the only place the multiplex client touches the OS
// connection directly; the stream server engines (internal/rpcserver)
// own their accepted net.Conn outright within one goroutine and so
// have no need for Capability's cloned-reader indirection.
package transport

import (
	"io"
	"net"
	"time"
)

// Capability is the contract the multiplex client needs from a
// connection: read/write/close, a duplicated read-only handle for its
// dedicated listener goroutine, and a settable read deadline.
type Capability interface {
	io.ReadWriteCloser
	// CloneReader returns a read-only handle sharing the same
	// underlying connection. Closing it never closes the connection
	// itself — ownership stays with whoever holds the Capability.
	CloneReader() (io.ReadCloser, error)
	SetReadDeadline(t time.Time) error
}

// New wraps a net.Conn (TCP or Unix stream) as a Capability. Go's
// net.Conn already permits one goroutine to Read while another Writes
// concurrently, so CloneReader needs no real fd duplication — it hands
// back a thin wrapper over the same conn whose Close is a no-op.
func New(conn net.Conn) Capability {
	return &capability{conn: conn}
}

type capability struct {
	conn net.Conn
}

func (c *capability) Read(p []byte) (int, error)  { return c.conn.Read(p) }
func (c *capability) Write(p []byte) (int, error) { return c.conn.Write(p) }
func (c *capability) Close() error                { return c.conn.Close() }

func (c *capability) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

func (c *capability) CloneReader() (io.ReadCloser, error) {
	return noCloseReader{c.conn}, nil
}

// noCloseReader reads from the underlying conn but never closes it;
// it exists purely so a listener/reader goroutine can hold something
// that satisfies io.ReadCloser without racing the owner's Close.
type noCloseReader struct {
	r io.Reader
}

func (n noCloseReader) Read(p []byte) (int, error) { return n.r.Read(p) }
func (n noCloseReader) Close() error                { return nil }
