// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package report writes the on-disk artifacts of a TDC acquisition:
// per-sample-set CSV files, a human-readable summary and a histogram
// plot of the delta distributions.
package report // import "github.com/go-lpc/tdc/internal/report"

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-lpc/tdc/bench"
	"github.com/go-lpc/tdc/chip"
)

// Meta describes one acquisition for reporting.
type Meta struct {
	Mode     bench.Mode
	Sel      string
	Layout   chip.Layout
	Rounds   int
	Pulses   int
	Start    time.Time
	Stop     time.Time
	Counters bench.Counters
}

// Dir returns the directory the artifacts of an acquisition go to:
//
//	<odir>/SEL<sel>/<MODE>_<rounds>R_<pulses>P_<timestamp>
func Dir(odir string, meta Meta) string {
	sel := meta.Sel
	if sel == "" {
		sel = "000"
	}
	name := fmt.Sprintf("%s_%dR_%dP_%s",
		strings.ToUpper(meta.Mode.String()),
		meta.Rounds, meta.Pulses,
		meta.Start.Format("20060102-150405"),
	)
	return filepath.Join(odir, "SEL"+sel, name)
}

// Write creates dir and writes one CSV file per sample set, the run
// summary and the delta histograms.
func Write(dir string, meta Meta, sets []*bench.SampleSet, msg *log.Logger) error {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return fmt.Errorf("report: could not create output dir: %w", err)
	}

	for _, set := range sets {
		fname := filepath.Join(dir, set.Label+".csv")
		err = WriteCSV(fname, set)
		if err != nil {
			return err
		}
		msg.Printf("wrote %s", fname)
	}

	fname := filepath.Join(dir, "summary.txt")
	sum, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("report: could not create summary file: %w", err)
	}
	defer sum.Close()

	err = WriteSummary(sum, meta, sets)
	if err != nil {
		return err
	}
	err = sum.Close()
	if err != nil {
		return fmt.Errorf("report: could not close summary file: %w", err)
	}
	msg.Printf("wrote %s", fname)

	fname = filepath.Join(dir, "analysis_plot.png")
	err = Plot(fname, sets)
	if err != nil {
		return err
	}
	msg.Printf("wrote %s", fname)

	return nil
}
