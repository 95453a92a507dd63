// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wire implements the fiberpc frame codec: a length-prefixed,
// id-tagged request/response container shared by every transport
// (datagram, stream, local socket).
package wire

import (
	"errors"
	"fmt"
)

// Errors surfaced by the frame codec itself.
var (
	// ErrTruncatedFrame means a length prefix was read but fewer than
	// len bytes followed before the stream ended.
	ErrTruncatedFrame = errors.New("wire: truncated frame")
	// ErrFrameTooSmall means len was below the 13-byte minimum.
	ErrFrameTooSmall = errors.New("wire: frame smaller than header")
	// ErrFrameTooLarge means len exceeded MaxFrame.
	ErrFrameTooLarge = errors.New("wire: frame exceeds maximum size")
	// ErrTimeout means a waiter or read deadline expired before a
	// matching response arrived.
	ErrTimeout = errors.New("wire: timeout waiting for response")
)

// ErrClientSerialize wraps a failure building a request on the caller
// side (shaping the payload before it is handed to the core).
type ErrClientSerialize struct{ Err error }

func (e *ErrClientSerialize) Error() string { return fmt.Sprintf("client serialize: %v", e.Err) }
func (e *ErrClientSerialize) Unwrap() error  { return e.Err }

// ErrServerSerialize wraps a failure the service callback reports that
// isn't an application-level status string.
type ErrServerSerialize struct{ Err error }

func (e *ErrServerSerialize) Error() string { return fmt.Sprintf("server serialize: %v", e.Err) }
func (e *ErrServerSerialize) Unwrap() error  { return e.Err }

// ErrClientDeserialize wraps a failure decoding a response frame.
type ErrClientDeserialize struct{ Err error }

func (e *ErrClientDeserialize) Error() string { return fmt.Sprintf("client deserialize: %v", e.Err) }
func (e *ErrClientDeserialize) Unwrap() error  { return e.Err }

// StatusError is an application-level error the service callback
// returns deliberately; its text becomes the response payload and the
// frame's status byte is set to StatusString.
type StatusError string

func (e StatusError) Error() string { return string(e) }
