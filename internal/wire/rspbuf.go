// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import "encoding/binary"

// RspBuf builds a response frame. The service callback writes its
// result payload into it; Finish then stamps the header from the
// callback's error (if any) and, for a StatusError, replaces the
// payload with the status string's bytes entirely.
type RspBuf struct {
	buf []byte
}

// NewRspBuf returns an empty response builder with header room
// pre-reserved.
func NewRspBuf() *RspBuf {
	return &RspBuf{buf: make([]byte, HeaderSize, HeaderSize+256)}
}

// Write appends p to the response payload. It never fails.
func (b *RspBuf) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}

// Finish stamps the header from callErr and returns the complete frame
// bytes, ready for the queued writer.
//
//   - callErr == nil: status OK, payload is whatever was written.
//   - callErr is a StatusError: status StatusString, payload replaced
//     by the status text.
//   - any other callErr: status StatusServerSerializeError, payload
//     replaced by callErr.Error().
func (b *RspBuf) Finish(id uint64, callErr error) []byte {
	status := StatusOK
	switch e := callErr.(type) {
	case nil:
		// keep whatever was written
	case StatusError:
		status = StatusString
		b.buf = append(b.buf[:HeaderSize], e.Error()...)
	default:
		status = StatusServerSerializeError
		b.buf = append(b.buf[:HeaderSize], callErr.Error()...)
	}

	total := len(b.buf)
	binary.LittleEndian.PutUint32(b.buf[0:4], uint32(total))
	binary.LittleEndian.PutUint64(b.buf[4:12], id)
	b.buf[12] = byte(status)
	return b.buf
}
