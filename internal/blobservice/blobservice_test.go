// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package blobservice

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"

	"github.com/nishisan-dev/fiberpc/internal/wire"
)

func TestCompressIntoGzipRoundTrips(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog")
	rsp := wire.NewRspBuf()

	if err := compressInto(rsp, bytes.NewReader(want), CompressionGzip); err != nil {
		t.Fatalf("compressInto: %v", err)
	}

	frame := rsp.Finish(1, nil)
	payload := frame[wire.HeaderSize:]

	gr, err := pgzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	got, err := io.ReadAll(gr)
	if err != nil {
		t.Fatalf("reading decompressed data: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestCompressIntoZstdRoundTrips(t *testing.T) {
	want := []byte("the quick brown fox jumps over the lazy dog")
	rsp := wire.NewRspBuf()

	if err := compressInto(rsp, bytes.NewReader(want), CompressionZstd); err != nil {
		t.Fatalf("compressInto: %v", err)
	}

	frame := rsp.Finish(1, nil)
	payload := frame[wire.HeaderSize:]

	zr, err := zstd.NewReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer zr.Close()
	got, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("reading decompressed data: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("round trip mismatch: got %q, want %q", got, want)
	}
}

func TestCompressIntoUnknownModePassesThrough(t *testing.T) {
	want := []byte("raw bytes")
	rsp := wire.NewRspBuf()

	if err := compressInto(rsp, bytes.NewReader(want), 0xFF); err != nil {
		t.Fatalf("compressInto: %v", err)
	}

	frame := rsp.Finish(1, nil)
	if !bytes.Equal(frame[wire.HeaderSize:], want) {
		t.Fatalf("passthrough mismatch: got %q, want %q", frame[wire.HeaderSize:], want)
	}
}
