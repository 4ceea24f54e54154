// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mmap // import "github.com/go-lpc/tdc/internal/mmap"

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFile(t *testing.T) {
	t.Run("nil-file", func(t *testing.T) {
		var f *File

		_, err := f.ReadAt(nil, 0)
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = f.Close()
		if !errors.Is(err, os.ErrInvalid) {
			t.Fatalf("invalid close error: %+v", err)
		}
	})
	t.Run("nil-data", func(t *testing.T) {
		var f File

		_, err := f.ReadAt(nil, 0)
		if !errors.Is(err, errClosed) {
			t.Fatalf("invalid read-at error: %+v", err)
		}

		err = f.Close()
		if err != nil {
			t.Fatalf("error closing nil-data file: %+v", err)
		}
	})
}

func TestOpen(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "data.tdc")
	err := os.WriteFile(fname, []byte{0, 1, 2, 3}, 0644)
	if err != nil {
		t.Fatalf("could not create data file: %+v", err)
	}

	f, err := Open(fname)
	if err != nil {
		t.Fatalf("could not map file: %+v", err)
	}
	defer f.Close()

	if got, want := f.Len(), 4; got != want {
		t.Fatalf("invalid len: got=%d, want=%d", got, want)
	}

	if got, want := f.At(1), byte(1); got != want {
		t.Fatalf("invalid value: got=%d, want=%d", got, want)
	}

	buf := make([]byte, 2)
	n, err := f.ReadAt(buf, 2)
	if err != nil {
		t.Fatalf("could not read: %+v", err)
	}
	if got, want := n, 2; got != want {
		t.Fatalf("invalid read length: got=%d, want=%d", got, want)
	}
	if got, want := string(buf), string([]byte{2, 3}); got != want {
		t.Fatalf("invalid bytes: got=%v, want=%v", buf, []byte{2, 3})
	}

	_, err = f.ReadAt(nil, -1)
	if got, want := err.Error(), "mmap: invalid ReadAt offset -1"; got != want {
		t.Fatalf("invalid error: %+v", err)
	}

	if err := f.Close(); err != nil {
		t.Fatalf("could not close file: %+v", err)
	}

	_, err = Open(filepath.Join(t.TempDir(), "missing.tdc"))
	if err == nil {
		t.Fatalf("expected an error (got=nil)")
	}
}
