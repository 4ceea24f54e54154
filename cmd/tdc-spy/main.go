// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-spy spies on the raw telemetry stream of a TDC test
// fixture, decoding and displaying words as they arrive on the serial
// line. It sends no commands: the fixture keeps doing whatever it was
// told to do.
package main // import "github.com/go-lpc/tdc/cmd/tdc-spy"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"go.bug.st/serial"

	"github.com/go-lpc/tdc/chip"
)

func main() {
	log.SetPrefix("tdc-spy: ")
	log.SetFlags(0)

	var (
		port   = flag.String("port", "/dev/ttyUSB0", "serial port the fixture is connected to")
		baud   = flag.Int("baud", 115200, "serial port baud rate")
		layout = flag.String("layout", "B", "telemetry word layout (A or B)")
		nmax   = flag.Int("n", 0, "stop after that many words (0: spy until interrupted)")
	)

	flag.Parse()

	ly, err := chip.LayoutOf(*layout)
	if err != nil {
		log.Fatalf("could not select telemetry layout: %+v", err)
	}

	err = spy(*port, *baud, ly, *nmax)
	if err != nil {
		log.Fatalf("could not spy on %q: %+v", *port, err)
	}
}

func spy(name string, baud int, ly chip.Layout, nmax int) error {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return fmt.Errorf("could not open serial port: %w", err)
	}
	defer port.Close()

	err = port.SetReadTimeout(100 * time.Millisecond)
	if err != nil {
		return fmt.Errorf("could not configure serial port: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)

	fmt.Printf("------------------------------------------------\n")
	const stamp = "2006-01-02 15:04:05 MST"
	fmt.Printf("%v\n", time.Now().Format(stamp))
	fmt.Printf("spying %s (layout %s, %d bauds)\n", name, ly.Name, baud)

	var (
		dec = chip.NewFrameDecoder()
		buf = make([]byte, 4096)
		n   = 0
	)

loop:
	for {
		select {
		case <-stop:
			break loop
		default:
		}

		nr, err := port.Read(buf)
		if err != nil {
			return fmt.Errorf("could not read serial port: %w", err)
		}
		if nr == 0 {
			continue // read timeout
		}
		_, _ = dec.Write(buf[:nr])

		for {
			word, ok := dec.Next()
			if !ok {
				break
			}
			pkt := ly.Decode(word)
			fmt.Printf("%6d %-4s id=%3d fine=%5d flag=%d coarse=%5d raw=0x%08x\n",
				n, pkt.Kind, pkt.ID, pkt.Fine, pkt.Flag, pkt.Coarse, uint32(pkt.Raw),
			)
			n++
			if nmax > 0 && n >= nmax {
				break loop
			}
		}
	}

	fmt.Printf("spied %d words", n)
	if k := dec.Buffered(); k != 0 {
		fmt.Printf(" (+%d stray bytes)", k)
	}
	fmt.Printf("\n")
	return nil
}
