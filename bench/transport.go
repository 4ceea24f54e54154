// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"

	"github.com/go-lpc/tdc/chip"
	"github.com/go-lpc/tdc/internal/mmap"
)

// Conn is the byte transport to the fixture: an ordered, reliable
// byte stream. Read should time out periodically (returning 0 bytes)
// rather than block forever, so the read loop can observe stop
// requests.
type Conn interface {
	io.ReadWriteCloser
}

// readTimeout paces the read loop checkpoints.
const readTimeout = 100 * time.Millisecond

func openSerial(name string, baud int) (Conn, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("bench: could not open serial port %q: %w", name, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("bench: could not configure serial port %q: %w", name, err)
	}
	return port, nil
}

// Replay plays a raw telemetry capture back as if it were the live
// fixture. Command writes are discarded. Read returns io.EOF once the
// capture is exhausted.
type Replay struct {
	f   *mmap.File
	r   *io.SectionReader
	hdr chip.CaptureHeader
}

// OpenReplay memory-maps the capture file at fname and validates its
// header.
func OpenReplay(fname string) (*Replay, error) {
	f, err := mmap.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("bench: could not map capture file: %w", err)
	}

	r := io.NewSectionReader(f, 0, int64(f.Len()))
	cr, err := chip.NewCaptureReader(r)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("bench: could not open capture file %q: %w", fname, err)
	}

	off, _ := r.Seek(0, io.SeekCurrent)
	return &Replay{
		f:   f,
		r:   io.NewSectionReader(f, off, int64(f.Len())-off),
		hdr: cr.Header(),
	}, nil
}

// Header returns the header of the replayed capture.
func (rp *Replay) Header() chip.CaptureHeader { return rp.hdr }

// Read implements Conn.
func (rp *Replay) Read(p []byte) (int, error) {
	return rp.r.Read(p)
}

// Write implements Conn: replayed fixtures absorb commands silently.
func (rp *Replay) Write(p []byte) (int, error) {
	return len(p), nil
}

// Close unmaps the capture file.
func (rp *Replay) Close() error {
	return rp.f.Close()
}

var (
	_ Conn = (*Replay)(nil)
)
