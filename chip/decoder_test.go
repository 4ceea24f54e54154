// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chip

import (
	"encoding/binary"
	"reflect"
	"testing"
)

func TestFrameDecoderSplits(t *testing.T) {
	words := []Word{
		0x050327fc, 0x45028005, 0x00000000, 0xffffffff,
		0xdeadbeef, 0x0140c9fa, 0x80000001, 0xc0ffee00,
	}
	stream := make([]byte, 0, 4*len(words))
	for _, w := range words {
		stream = binary.LittleEndian.AppendUint32(stream, uint32(w))
	}

	for _, tc := range []struct {
		name  string
		chunk int
	}{
		{name: "all-at-once", chunk: len(stream)},
		{name: "byte-at-a-time", chunk: 1},
		{name: "chunks-of-3", chunk: 3},
		{name: "chunks-of-5", chunk: 5},
		{name: "chunks-of-7", chunk: 7},
	} {
		t.Run(tc.name, func(t *testing.T) {
			dec := NewFrameDecoder()
			var got []Word
			for beg := 0; beg < len(stream); beg += tc.chunk {
				end := beg + tc.chunk
				if end > len(stream) {
					end = len(stream)
				}
				_, _ = dec.Write(stream[beg:end])
				for {
					w, ok := dec.Next()
					if !ok {
						break
					}
					got = append(got, w)
				}
			}
			if !reflect.DeepEqual(got, words) {
				t.Fatalf("invalid words:\ngot= %08x\nwant=%08x", got, words)
			}
			if n := dec.Buffered(); n != 0 {
				t.Fatalf("got %d buffered bytes, want 0", n)
			}
		})
	}
}

func TestFrameDecoderLeftover(t *testing.T) {
	dec := NewFrameDecoder()

	_, _ = dec.Write([]byte{0xfc, 0x27, 0x03, 0x05, 0xaa, 0xbb})
	w, ok := dec.Next()
	if !ok {
		t.Fatalf("could not pop first word")
	}
	if got, want := w, Word(0x050327fc); got != want {
		t.Fatalf("invalid word: got=0x%08x, want=0x%08x", uint32(got), uint32(want))
	}
	if _, ok := dec.Next(); ok {
		t.Fatalf("popped a word from an incomplete frame")
	}
	if got, want := dec.Buffered(), 2; got != want {
		t.Fatalf("got %d buffered bytes, want %d", got, want)
	}

	_, _ = dec.Write([]byte{0xcc, 0xdd})
	w, ok = dec.Next()
	if !ok {
		t.Fatalf("could not complete word across writes")
	}
	if got, want := w, Word(0xddccbbaa); got != want {
		t.Fatalf("invalid word: got=0x%08x, want=0x%08x", uint32(got), uint32(want))
	}
	if got, want := dec.Buffered(), 0; got != want {
		t.Fatalf("got %d buffered bytes, want %d", got, want)
	}
}
