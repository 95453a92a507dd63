// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package qwriter implements the queued writer: a many-to-one funnel
// that lets many goroutines enqueue whole frames for one underlying
// stream; only the goroutine currently elected drainer ever waits on
// the stream itself.
//
// Only one goroutine — the "drainer" — ever touches the stream at a
// time; which goroutine that is shifts from call to call, determined
// by who observes the pending counter transition away from zero.
package qwriter

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/sagernet/sing/common/bufio"
)

// MaxBatch bounds how many pending frames one drain pass will flush in
// a single vectored write before re-checking for more work.
const MaxBatch = 64

// Writer serializes concurrent producers onto a single io.Writer.
//
// Write blocks on I/O only in the one caller elected drainer, and never
// returns an error: write failures are logged (via onError, if set) and the batch is
// dropped — the connection is expected to be torn down by the reader
// side's EOF detection, and end-to-end timeouts catch any response
// that was lost this way. Fire-and-forget at this layer is deliberate:
// no producer is ever blocked waiting for a write to complete.
type Writer struct {
	sink    io.Writer
	onError func(error)

	mu    sync.Mutex
	queue [][]byte

	pending atomic.Int64
}

// New wraps sink. onError may be nil.
func New(sink io.Writer, onError func(error)) *Writer {
	return &Writer{sink: sink, onError: onError}
}

// Write enqueues frame. If no drainer is currently active, the calling
// goroutine becomes the drainer and flushes the queue itself;
// otherwise it returns immediately, its frame guaranteed to be picked
// up by whichever goroutine is already draining.
func (w *Writer) Write(frame []byte) {
	w.mu.Lock()
	w.queue = append(w.queue, frame)
	w.mu.Unlock()

	if w.pending.Add(1) == 1 {
		w.drain()
	}
}

// drain is only ever run by one goroutine at a time: the pending
// counter crossing 0->1 elects exactly one drainer, and every other
// concurrent Write just increments the counter and leaves.
func (w *Writer) drain() {
	for {
		batch := w.takeBatch()
		n := len(batch)
		if n == 0 {
			// Another producer raced us between the counter check and
			// the queue pop; nothing to do this pass.
			return
		}

		if err := w.writeBatch(batch); err != nil && w.onError != nil {
			w.onError(err)
		}

		if w.pending.Add(-int64(n)) == 0 {
			return
		}
	}
}

func (w *Writer) takeBatch() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.queue)
	if n > MaxBatch {
		n = MaxBatch
	}
	batch := w.queue[:n:n]
	w.queue = w.queue[n:]
	return batch
}

// writeBatch issues a single vectored write spanning every frame in
// batch. When the sink supports vectorised writes, short writes are
// handled by recomputing a (block, offset) cursor and re-issuing the
// remaining slices; sinks without that capability get the batch
// joined into one contiguous buffer and written with a single Write.
func (w *Writer) writeBatch(batch [][]byte) error {
	vw, ok := bufio.CreateVectorisedWriter(w.sink)
	if !ok {
		size := 0
		for _, b := range batch {
			size += len(b)
		}
		joined := make([]byte, 0, size)
		for _, b := range batch {
			joined = append(joined, b...)
		}
		_, err := w.sink.Write(joined)
		return err
	}

	block, pos := 0, 0
	for block < len(batch) {
		view := buildView(batch, block, pos)
		n, err := bufio.WriteVectorised(vw, view)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		block, pos = advance(batch, block, pos, n)
	}
	return nil
}

func buildView(batch [][]byte, block, pos int) [][]byte {
	view := make([][]byte, 0, len(batch)-block)
	view = append(view, batch[block][pos:])
	view = append(view, batch[block+1:]...)
	return view
}

// advance walks n bytes of progress across batch starting at
// (block, pos) and returns the new cursor.
func advance(batch [][]byte, block, pos, n int) (int, int) {
	left := n
	for block < len(batch) {
		remain := len(batch[block]) - pos
		if left >= remain {
			left -= remain
			block++
			pos = 0
		} else {
			pos += left
			break
		}
	}
	return block, pos
}
