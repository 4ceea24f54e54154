// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tdc-dump decodes and displays raw TDC telemetry captures.
//
// Usage: tdc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> tdc-dump ./run.tdc
//	=== capture ./run.tdc ===
//	version: 1
//	layout:  B
//	clock:   260000000 Hz
//	words:   4
//	     0 UP   id=  7 fine=  750 flag=0 coarse=  100 raw=0x07177064
//	     1 DOWN id=  7 fine=  400 flag=0 coarse=  700 raw=0x470c82bc
//	[...]
package main // import "github.com/go-lpc/tdc/cmd/tdc-dump"

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-lpc/tdc/chip"
	"github.com/go-lpc/tdc/internal/mmap"
)

func main() {
	log.SetPrefix("tdc-dump: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Printf(`tdc-dump decodes and displays raw TDC telemetry captures.

Usage: tdc-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> tdc-dump ./run.tdc
 === capture ./run.tdc ===
 version: 1
 layout:  B
 clock:   260000000 Hz
 words:   4
      0 UP   id=  7 fine=  750 flag=0 coarse=  100 raw=0x07177064
      1 DOWN id=  7 fine=  400 flag=0 coarse=  700 raw=0x470c82bc
 [...]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input capture file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname)
		if err != nil {
			log.Fatalf("could not dump capture %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := mmap.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	cr, err := chip.NewCaptureReader(io.NewSectionReader(f, 0, int64(f.Len())))
	if err != nil {
		return fmt.Errorf("could not read capture header: %w", err)
	}

	hdr := cr.Header()
	fmt.Fprintf(wbuf, "=== capture %s ===\n", fname)
	fmt.Fprintf(wbuf, "version: %d\n", hdr.Version)
	fmt.Fprintf(wbuf, "layout:  %s\n", hdr.Layout.Name)
	fmt.Fprintf(wbuf, "clock:   %d Hz\n", hdr.Clock)
	fmt.Fprintf(wbuf, "words:   %d\n", (f.Len()-12)/4)

	for i := 0; ; i++ {
		word, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("could not read capture word %d: %w", i, err)
		}
		pkt := hdr.Layout.Decode(word)
		fmt.Fprintf(wbuf, "%6d %-4s id=%3d fine=%5d flag=%d coarse=%5d raw=0x%08x\n",
			i, pkt.Kind, pkt.ID, pkt.Fine, pkt.Flag, pkt.Coarse, uint32(pkt.Raw),
		)
	}

	err = wbuf.Flush()
	if err != nil {
		return fmt.Errorf("could not flush output: %w", err)
	}
	return nil
}
