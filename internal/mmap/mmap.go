// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package mmap provides read-only memory-mapped files, used to replay
// and inspect raw telemetry captures without loading them whole.
package mmap // import "github.com/go-lpc/tdc/internal/mmap"

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

var (
	errClosed = errors.New("mmap: closed")
)

// File is a read-only memory-mapped file.
type File struct {
	data []byte
}

// Open maps the file at fname read-only.
func Open(fname string) (*File, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not open %q: %w", fname, err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("mmap: could not stat %q: %w", fname, err)
	}
	size := fi.Size()
	if size == 0 {
		return &File{data: []byte{}}, nil
	}
	if size != int64(int(size)) {
		return nil, fmt.Errorf("mmap: file %q too large", fname)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: could not map %q: %w", fname, err)
	}

	m := &File{data: data}
	runtime.SetFinalizer(m, (*File).Close)
	return m, nil
}

// Close unmaps the file.
func (f *File) Close() error {
	if f == nil {
		return os.ErrInvalid
	}

	if f.data == nil {
		return nil
	}
	data := f.data
	f.data = nil
	runtime.SetFinalizer(f, nil)
	if len(data) == 0 {
		return nil
	}

	return unix.Munmap(data)
}

// Len returns the length of the underlying memory-mapped file.
func (f *File) Len() int {
	return len(f.data)
}

// At returns the byte at index i.
func (f *File) At(i int) byte {
	return f.data[i]
}

// ReadAt implements the io.ReaderAt interface.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if f == nil {
		return 0, os.ErrInvalid
	}

	if f.data == nil {
		return 0, errClosed
	}
	if off < 0 || int64(len(f.data)) < off {
		return 0, fmt.Errorf("mmap: invalid ReadAt offset %d", off)
	}
	n := copy(p, f.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

var (
	_ io.ReaderAt = (*File)(nil)
	_ io.Closer   = (*File)(nil)
)
