// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "encoding/binary"

// ReqBuf builds a request frame. Callers grow it with Write/WriteString
// like any byte buffer, then call Finish once to prepend the header
// and obtain the bytes ready for a single write to the wire.
//
// A ReqBuf is created per call, consumed by Finish, and then dropped —
// it is not reusable.
type ReqBuf struct {
	buf []byte
}

// NewReqBuf returns an empty request builder with header room
// pre-reserved.
func NewReqBuf() *ReqBuf {
	return &ReqBuf{buf: make([]byte, HeaderSize, HeaderSize+64)}
}

// Write appends p to the request payload. It never fails.
func (b *ReqBuf) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// WriteString appends s to the request payload.
func (b *ReqBuf) WriteString(s string) (int, error) {
	b.buf = append(b.buf, s...)
	return len(s), nil
}

// Finish stamps the header with id and StatusRequest and returns the
// complete frame bytes, ready for a single write call.
func (b *ReqBuf) Finish(id uint64) []byte {
	total := len(b.buf)
	binary.LittleEndian.PutUint32(b.buf[0:4], uint32(total))
	binary.LittleEndian.PutUint64(b.buf[4:12], id)
	b.buf[12] = byte(StatusRequest)
	return b.buf
}
