// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-srv serves a TDC test fixture over a JSON control link.
//
// Clients drive acquisitions with "configure", "initialize", "start",
// "status", "summary" and "stop" requests; tdc-ctl is the usual
// client.
package main // import "github.com/go-lpc/tdc/cmd/tdc-srv"

import (
	"flag"
	"log"

	"github.com/go-lpc/tdc/bench"
	"github.com/go-lpc/tdc/chip"
)

func main() {
	log.SetPrefix("tdc-srv: ")
	log.SetFlags(0)

	var (
		addr    = flag.String("addr", ":8877", "[ip]:port to listen on")
		port    = flag.String("port", "/dev/ttyUSB0", "serial port of the TDC fixture")
		baud    = flag.Int("baud", 115200, "serial line baud rate")
		layout  = flag.String("layout", "B", "telemetry layout (A or B)")
		clk     = flag.Float64("clk", 0, "coarse clock period [ps] (0=nominal)")
		capture = flag.String("capture", "", "record the raw telemetry stream to this file")
	)

	flag.Parse()

	ly, err := chip.LayoutOf(*layout)
	if err != nil {
		log.Fatalf("could not select telemetry layout: %+v", err)
	}

	opts := []bench.Option{
		bench.WithBaud(*baud),
		bench.WithLayout(ly),
	}
	if *clk > 0 {
		opts = append(opts, bench.WithClockPeriod(*clk))
	}
	if *capture != "" {
		opts = append(opts, bench.WithCapture(*capture))
	}

	err = bench.Serve(*addr, *port, opts...)
	if err != nil {
		log.Fatalf("could not serve TDC fixture: %+v", err)
	}
}
