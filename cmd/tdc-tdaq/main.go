// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-tdaq exposes a TDC test fixture to a tdaq network.
//
// Usage: tdc-tdaq [TDAQ-OPTIONS] /dev/ttyUSB0 [LAYOUT]
//
// The first positional argument names the serial port of the fixture,
// the optional second one the telemetry layout ("A" or "B").
package main // import "github.com/go-lpc/tdc/cmd/tdc-tdaq"

import (
	"context"
	"log"
	"os"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-lpc/tdc/bench"
	"github.com/go-lpc/tdc/chip"
	"github.com/go-lpc/tdc/daq"
)

func main() {
	cmd := flags.New()
	if len(cmd.Args) < 1 {
		log.Fatalf("missing serial port argument")
	}

	var opts []bench.Option
	if len(cmd.Args) > 1 {
		ly, err := chip.LayoutOf(cmd.Args[1])
		if err != nil {
			log.Fatalf("could not select telemetry layout: %+v", err)
		}
		opts = append(opts, bench.WithLayout(ly))
	}

	brd := daq.New(cmd.Args[0], opts...)

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", brd.OnConfig)
	srv.CmdHandle("/init", brd.OnInit)
	srv.CmdHandle("/reset", brd.OnReset)
	srv.CmdHandle("/start", brd.OnStart)
	srv.CmdHandle("/stop", brd.OnStop)
	srv.CmdHandle("/quit", brd.OnQuit)

	srv.CmdHandle("/fixed", brd.OnFixed)
	srv.CmdHandle("/scan", brd.OnScan)
	srv.CmdHandle("/calib", brd.OnCalib)

	srv.OutputHandle("/tdc/pairs", brd.Pairs)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}
