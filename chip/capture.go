// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chip

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Capture files record raw telemetry words as received from the
// fixture, prefixed with a small self-describing header:
//
//	[0:4]  magic "tdc\x00"
//	[4]    version
//	[5]    layout (0=A, 1=B)
//	[6:8]  reserved
//	[8:12] TDC clock frequency in Hz, little-endian
//
// followed by the raw 4-byte words, in arrival order.

var captureMagic = []byte{'t', 'd', 'c', 0x00}

const captureVersion = 1

// CaptureHeader describes the conditions a capture was taken under.
type CaptureHeader struct {
	Version uint8
	Layout  Layout
	Clock   uint32 // TDC clock frequency, in Hz
}

func layoutID(ly Layout) (uint8, error) {
	switch ly.Name {
	case LayoutA.Name:
		return 0, nil
	case LayoutB.Name:
		return 1, nil
	}
	return 0, fmt.Errorf("chip: unknown telemetry layout %q", ly.Name)
}

func layoutFromID(id uint8) (Layout, error) {
	switch id {
	case 0:
		return LayoutA, nil
	case 1:
		return LayoutB, nil
	}
	return Layout{}, fmt.Errorf("chip: unknown capture layout id 0x%x", id)
}

// CaptureWriter writes a capture file to an underlying writer.
type CaptureWriter struct {
	w   io.Writer
	buf []byte
	err error
	n   int // words written
}

// NewCaptureWriter writes the capture header for hdr to w and returns
// a writer for the word stream. A zero hdr.Version means the current
// version; a zero hdr.Clock means the nominal TDC clock.
func NewCaptureWriter(w io.Writer, hdr CaptureHeader) (*CaptureWriter, error) {
	if hdr.Version == 0 {
		hdr.Version = captureVersion
	}
	if hdr.Clock == 0 {
		hdr.Clock = DefaultClock
	}
	lid, err := layoutID(hdr.Layout)
	if err != nil {
		return nil, fmt.Errorf("chip: could not encode capture header: %w", err)
	}

	buf := make([]byte, 12)
	copy(buf[:4], captureMagic)
	buf[4] = hdr.Version
	buf[5] = lid
	binary.LittleEndian.PutUint32(buf[8:12], hdr.Clock)
	if _, err := w.Write(buf); err != nil {
		return nil, fmt.Errorf("chip: could not write capture header: %w", err)
	}

	return &CaptureWriter{w: w, buf: buf[:4]}, nil
}

// Write appends one raw word to the capture.
func (cw *CaptureWriter) Write(w Word) error {
	if cw.err != nil {
		return cw.err
	}
	binary.LittleEndian.PutUint32(cw.buf, uint32(w))
	_, cw.err = cw.w.Write(cw.buf)
	if cw.err != nil {
		cw.err = fmt.Errorf("chip: could not write capture word: %w", cw.err)
		return cw.err
	}
	cw.n++
	return nil
}

// Words returns the number of words written so far.
func (cw *CaptureWriter) Words() int { return cw.n }

// Err returns the first error encountered while writing.
func (cw *CaptureWriter) Err() error { return cw.err }

// CaptureReader reads a capture file from an underlying reader.
type CaptureReader struct {
	r   io.Reader
	hdr CaptureHeader
	buf []byte
	err error
}

// NewCaptureReader reads and validates the capture header from r.
func NewCaptureReader(r io.Reader) (*CaptureReader, error) {
	buf := make([]byte, 12)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("chip: could not read capture header: %w", err)
	}
	if !bytes.Equal(buf[:4], captureMagic) {
		return nil, fmt.Errorf("chip: invalid capture magic (got=%q)", buf[:4])
	}
	if v := buf[4]; v != captureVersion {
		return nil, fmt.Errorf("chip: unknown capture version %d", v)
	}
	ly, err := layoutFromID(buf[5])
	if err != nil {
		return nil, fmt.Errorf("chip: could not read capture header: %w", err)
	}

	return &CaptureReader{
		r: r,
		hdr: CaptureHeader{
			Version: buf[4],
			Layout:  ly,
			Clock:   binary.LittleEndian.Uint32(buf[8:12]),
		},
		buf: buf[:4],
	}, nil
}

// Header returns the capture header.
func (cr *CaptureReader) Header() CaptureHeader { return cr.hdr }

// Read returns the next word of the capture. It returns io.EOF at a
// clean end of stream and io.ErrUnexpectedEOF on a torn trailing word.
func (cr *CaptureReader) Read() (Word, error) {
	if cr.err != nil {
		return 0, cr.err
	}
	if _, err := io.ReadFull(cr.r, cr.buf); err != nil {
		switch err {
		case io.EOF:
			cr.err = io.EOF
		default:
			cr.err = fmt.Errorf("chip: could not read capture word: %w", err)
		}
		return 0, cr.err
	}
	return Word(binary.LittleEndian.Uint32(cr.buf)), nil
}
