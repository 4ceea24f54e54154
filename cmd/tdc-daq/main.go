// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-daq runs a TDC test-fixture acquisition in stand-alone
// mode and writes its analysis artifacts.
//
// Usage: tdc-daq [OPTIONS]
//
// Example:
//
//	$> tdc-daq -port=/dev/ttyUSB0 -mode=scan -rounds=2 -pulses=200 -sel=101
//	$> tdc-daq -port=/dev/ttyUSB0 -mode=fixed -csa=9 -reset -capture=./run.tdc
//	$> tdc-daq -replay=./run.tdc -mode=fixed -csa=9
//	$> tdc-daq -port=/dev/ttyUSB0 -mode=calib -full -pulses=1000
package main // import "github.com/go-lpc/tdc/cmd/tdc-daq"

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/go-lpc/tdc/bench"
	"github.com/go-lpc/tdc/chip"
	"github.com/go-lpc/tdc/internal/ana"
	"github.com/go-lpc/tdc/internal/report"
	"github.com/go-lpc/tdc/rundb"
)

func main() {
	log.SetPrefix("tdc-daq: ")
	log.SetFlags(0)

	err := xmain(os.Stdout, os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func xmain(w io.Writer, args []string) error {
	fset := flag.NewFlagSet("tdc-daq", flag.ContinueOnError)
	fset.SetOutput(w)

	var (
		port   = fset.String("port", "/dev/ttyUSB0", "serial port of the TDC fixture")
		baud   = fset.Int("baud", 115200, "serial line baud rate")
		replay = fset.String("replay", "", "capture file to replay instead of a live fixture")
		layout = fset.String("layout", "B", "telemetry layout (A or B)")
		clk    = fset.Float64("clk", 0, "coarse clock period [ps] (0=nominal)")

		mode   = fset.String("mode", "fixed", "acquisition mode (fixed, scan or calib)")
		rounds = fset.Int("rounds", 1, "number of acquisition rounds")
		pulses = fset.Int("pulses", 100, "number of pairs per round")
		phase  = fset.Uint("phase", 0, "stimulus phase")
		csa    = fset.Uint("csa", 1, "CSA excitation mask (fixed mode)")
		reset  = fset.Bool("reset", false, "assert the pixel reset bit (fixed mode)")
		full   = fset.Bool("full", false, "full-scan calibration sweep (calib mode)")
		sel    = fset.String("sel", "000", "configuration label (SEL)")

		odir    = fset.String("o", "data", "output directory for analysis artifacts")
		capture = fset.String("capture", "", "record the raw telemetry stream to this file")
		dbname  = fset.String("db", "", "bench-test database to record the run into")
	)

	fset.Usage = func() {
		fmt.Fprintf(w, `tdc-daq runs a TDC test-fixture acquisition in stand-alone mode.

Usage: tdc-daq [OPTIONS]

Example:

 $> tdc-daq -port=/dev/ttyUSB0 -mode=scan -rounds=2 -pulses=200 -sel=101
 $> tdc-daq -port=/dev/ttyUSB0 -mode=fixed -csa=9 -reset -capture=./run.tdc
 $> tdc-daq -replay=./run.tdc -mode=fixed -csa=9
 $> tdc-daq -port=/dev/ttyUSB0 -mode=calib -full -pulses=1000

Options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		return err
	}

	switch strings.ToLower(*mode) {
	case "fixed", "scan", "calib":
		*mode = strings.ToLower(*mode)
	default:
		return fmt.Errorf("unknown acquisition mode %q", *mode)
	}
	if *rounds <= 0 || *pulses <= 0 {
		return fmt.Errorf("invalid acquisition target (rounds=%d, pulses=%d)", *rounds, *pulses)
	}

	ly, err := chip.LayoutOf(*layout)
	if err != nil {
		return fmt.Errorf("could not select telemetry layout: %w", err)
	}

	opts := []bench.Option{
		bench.WithBaud(*baud),
		bench.WithLayout(ly),
		bench.WithLabel(*sel),
	}
	if *clk > 0 {
		opts = append(opts, bench.WithClockPeriod(*clk))
	}
	if *capture != "" {
		opts = append(opts, bench.WithCapture(*capture))
	}
	if *replay != "" {
		rep, err := bench.OpenReplay(*replay)
		if err != nil {
			return fmt.Errorf("could not open capture file %q: %w", *replay, err)
		}
		hdr := rep.Header()
		ly = hdr.Layout
		opts = append(opts,
			bench.WithConn(rep),
			bench.WithLayout(hdr.Layout),
			bench.WithClockPeriod(1e12/float64(hdr.Clock)),
		)
	}

	dev, err := bench.NewDevice(*port, opts...)
	if err != nil {
		return fmt.Errorf("could not open TDC device: %w", err)
	}
	defer dev.Close()

	ctx := context.Background()

	var (
		db  *rundb.DB
		rec *rundb.Run
	)
	if *dbname != "" {
		db, err = rundb.Open(*dbname)
		if err != nil {
			return fmt.Errorf("could not open run database: %w", err)
		}
		defer db.Close()
	}

	meta := report.Meta{
		Mode:   bench.Fixed,
		Sel:    *sel,
		Layout: ly,
		Rounds: *rounds,
		Pulses: *pulses,
		Start:  time.Now(),
	}
	if *mode == "scan" {
		meta.Mode = bench.Scan
	}

	if db != nil {
		rec = &rundb.Run{
			Mode:   *mode,
			Sel:    *sel,
			Layout: ly.Name,
			Rounds: *rounds,
			Pulses: *pulses,
			Start:  meta.Start,
		}
		err = db.AddRun(ctx, rec)
		if err != nil {
			return fmt.Errorf("could not record run: %w", err)
		}
		log.Printf("recorded run #%d", rec.ID)
	}

	// SIGINT winds the acquisition down; aggregated pairs are kept
	// and reported.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	defer signal.Stop(stop)
	done := make(chan int)
	defer close(done)
	go func() {
		select {
		case <-stop:
			log.Printf("interrupt: stopping acquisition...")
			dev.Stop()
		case <-done:
		}
	}()

	log.Printf("starting %s acquisition (rounds=%d, pulses=%d, sel=%s)...",
		*mode, *rounds, *pulses, *sel,
	)
	switch *mode {
	case "fixed":
		cmd := chip.Command{
			Type:    chip.CmdScan,
			Channel: chip.ChanBoth,
			Phase:   uint8(*phase),
			Pixel: chip.PixelCtrl{
				Reset: *reset,
				CSA:   uint8(*csa),
			},
		}
		err = dev.RunFixed(*rounds, *pulses, cmd)
	case "scan":
		err = dev.RunScan(*rounds, *pulses)
	case "calib":
		smode := chip.SingleStep
		if *full {
			smode = chip.FullScan
		}
		err = dev.RunCalib(*rounds, *pulses, uint8(*phase), smode)
	}
	if err != nil {
		return fmt.Errorf("could not run %s acquisition: %w", *mode, err)
	}
	meta.Stop = time.Now()
	meta.Counters = dev.Counters()

	sets := dev.Sets()
	dir := report.Dir(*odir, meta)
	msg := log.New(w, "tdc-daq: ", 0)
	err = report.Write(dir, meta, sets, msg)
	if err != nil {
		return fmt.Errorf("could not write analysis report: %w", err)
	}

	err = report.WriteSummary(w, meta, sets)
	if err != nil {
		return fmt.Errorf("could not write summary: %w", err)
	}

	switch *mode {
	case "scan":
		trend, err := ana.TrendOf(sets)
		if err != nil {
			log.Printf("could not fit unit-delay trend: %+v", err)
			break
		}
		fmt.Fprintf(w, "unit-delay trend: delta = %.3f %+.3f*weight ps (r2=%.4f)\n",
			trend.Alpha, trend.Beta, trend.R2,
		)
	case "calib":
		var pairs []bench.Pair
		for _, set := range sets {
			pairs = append(pairs, set.Pairs...)
		}
		perf, err := ana.Linearity(pairs)
		if err != nil {
			log.Printf("could not analyze linearity: %+v", err)
			break
		}
		fmt.Fprintf(w, "linearity: codes=%d lsb=%.3f ps dnl=%.3f lsb inl=%.3f lsb monotonic=%v\n",
			len(perf.Codes), perf.LSB, perf.DNL, perf.INL, perf.Monotonic,
		)
	}

	if db != nil {
		err = db.CloseRun(ctx, rec.ID, meta.Stop)
		if err != nil {
			return fmt.Errorf("could not close run #%d: %w", rec.ID, err)
		}

		var stats []rundb.Stats
		for _, set := range sets {
			sum, ok := set.Summary()
			if !ok {
				continue
			}
			stats = append(stats, rundb.Stats{
				RunID: rec.ID,
				Step:  set.Step,
				Label: set.Label,
				N:     sum.N,
				Mean:  sum.Mean,
				Var:   sum.Variance,
				Std:   sum.Std,
				Min:   sum.Min,
				Max:   sum.Max,
			})
		}
		err = db.AddStats(ctx, rec.ID, stats)
		if err != nil {
			return fmt.Errorf("could not record stats for run #%d: %w", rec.ID, err)
		}
	}

	return nil
}
