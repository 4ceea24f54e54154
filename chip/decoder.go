// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chip

import (
	"encoding/binary"
	"io"
)

// FrameDecoder splits an arbitrary, possibly torn byte stream into
// complete 32-bit little-endian telemetry words. Incomplete trailing
// bytes (0-3) stay buffered until the next Write.
//
// FrameDecoder never blocks and carries no timeout: pacing against
// the byte source is its caller's job.
type FrameDecoder struct {
	buf []byte
	off int
}

// NewFrameDecoder returns a FrameDecoder ready for use.
func NewFrameDecoder() *FrameDecoder {
	return &FrameDecoder{buf: make([]byte, 0, 4096)}
}

// Write appends p to the internal buffer. It always succeeds.
func (dec *FrameDecoder) Write(p []byte) (int, error) {
	if dec.off > 0 {
		n := copy(dec.buf, dec.buf[dec.off:])
		dec.buf = dec.buf[:n]
		dec.off = 0
	}
	dec.buf = append(dec.buf, p...)
	return len(p), nil
}

// Next pops the next complete word off the buffer. It reports false
// when fewer than 4 bytes remain buffered.
func (dec *FrameDecoder) Next() (Word, bool) {
	if len(dec.buf)-dec.off < 4 {
		return 0, false
	}
	w := Word(binary.LittleEndian.Uint32(dec.buf[dec.off:]))
	dec.off += 4
	return w, true
}

// Buffered returns the number of bytes held back, waiting for a
// complete word.
func (dec *FrameDecoder) Buffered() int {
	return len(dec.buf) - dec.off
}

var (
	_ io.Writer = (*FrameDecoder)(nil)
)
