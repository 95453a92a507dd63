// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Status is the tri-state response classification carried in every
// frame's status byte. Request frames always carry StatusRequest.
type Status byte

const (
	// StatusOK means the service callback succeeded; payload is its
	// response bytes.
	StatusOK Status = 0
	// StatusServerSerializeError means the service callback failed
	// with a non-application error; payload is that error's text.
	StatusServerSerializeError Status = 1
	// StatusString means the service callback returned a StatusError;
	// payload is the status string's UTF-8 bytes.
	StatusString Status = 2
	// StatusRequest is the reserved value request frames carry; it is
	// never a valid response status.
	StatusRequest Status = 0xFF
)

// HeaderSize is len(4B) + id(8B) + status(1B).
const HeaderSize = 13

// MaxFrame bounds a single frame's total wire size, including the
// header. Chosen generously above any realistic RPC payload while
// still bounding a single malformed length prefix's blast radius.
const MaxFrame = 16 * 1024 * 1024

// Frame is the decoded wire message: a correlation id, a status byte,
// and an opaque payload slice.
//
// Payload aliases the single contiguous buffer DecodeFrom read the
// frame into — it is never copied out.
type Frame struct {
	ID      uint64
	Status  Status
	Payload []byte
}

// DecodeRsp extracts the application-visible result from a response
// frame's status byte, turning a non-OK status into the matching wire
// error.
func (f *Frame) DecodeRsp() ([]byte, error) {
	switch f.Status {
	case StatusOK:
		return f.Payload, nil
	case StatusString:
		return nil, StatusError(f.Payload)
	case StatusServerSerializeError:
		return nil, &ErrServerSerialize{Err: fmt.Errorf("%s", f.Payload)}
	default:
		return nil, &ErrClientDeserialize{Err: fmt.Errorf("wire: unknown status byte %d", f.Status)}
	}
}

// DecodeFrom reads exactly one frame from r.
//
// A graceful close (EOF before any byte of the length prefix arrives)
// is reported as io.EOF unchanged so callers can distinguish it from a
// frame truncated mid-header, which io.ReadFull reports as
// io.ErrUnexpectedEOF.
func DecodeFrom(r io.Reader) (*Frame, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		// io.ReadFull returns io.EOF verbatim only when zero bytes were
		// read; any partial read becomes io.ErrUnexpectedEOF, which is
		// exactly the graceful-close/truncated-header split we want.
		return nil, err
	}

	total := binary.LittleEndian.Uint32(lenBuf[:])
	switch {
	case total < HeaderSize:
		return nil, ErrFrameTooSmall
	case total > MaxFrame:
		return nil, ErrFrameTooLarge
	}

	rest := make([]byte, total-4)
	if _, err := io.ReadFull(r, rest); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("%w: %v", ErrTruncatedFrame, err)
	}

	return &Frame{
		ID:      binary.LittleEndian.Uint64(rest[0:8]),
		Status:  Status(rest[8]),
		Payload: rest[9:],
	}, nil
}

// DecodeBytes decodes exactly one frame from a buffer that already
// holds the whole frame (the datagram server's use case: one UDP
// packet is one frame, so there is no blocking read left to do).
func DecodeBytes(b []byte) (*Frame, error) {
	if len(b) < HeaderSize {
		return nil, ErrFrameTooSmall
	}
	total := binary.LittleEndian.Uint32(b[0:4])
	if total < HeaderSize {
		return nil, ErrFrameTooSmall
	}
	if total > MaxFrame {
		return nil, ErrFrameTooLarge
	}
	if int(total) > len(b) {
		return nil, ErrTruncatedFrame
	}
	return &Frame{
		ID:      binary.LittleEndian.Uint64(b[4:12]),
		Status:  Status(b[12]),
		Payload: b[13:total],
	}, nil
}
