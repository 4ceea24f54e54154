// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"
	"io"

	"github.com/go-lpc/tdc/bench"
)

// WriteSummary writes the human-readable run summary: acquisition
// parameters, pairing counters and per-sample-set statistics.
func WriteSummary(w io.Writer, meta Meta, sets []*bench.SampleSet) error {
	var err error
	p := func(format string, args ...interface{}) {
		if err != nil {
			return
		}
		_, err = fmt.Fprintf(w, format, args...)
	}

	p("mode:    %v\n", meta.Mode)
	p("sel:     %s\n", meta.Sel)
	p("layout:  %s\n", meta.Layout.Name)
	p("target:  %d rounds x %d pulses\n", meta.Rounds, meta.Pulses)
	p("start:   %s\n", meta.Start.Format("2006-01-02 15:04:05"))
	p("stop:    %s\n", meta.Stop.Format("2006-01-02 15:04:05"))
	p("elapsed: %v\n", meta.Stop.Sub(meta.Start))
	p("\n")
	p("words:   %d\n", meta.Counters.Words)
	p("pairs:   %d\n", meta.Counters.Pairs)
	p("orphans: %d\n", meta.Counters.Orphans)
	p("evicted: %d\n", meta.Counters.Evicted)
	p("echoes:  %d\n", meta.Counters.Echoes)
	p("infos:   %d\n", meta.Counters.Infos)
	p("\n")
	p("%-12s %8s %14s %12s %14s %14s %14s\n",
		"label", "n", "mean [ps]", "std [ps]", "var [ps2]", "min [ps]", "max [ps]",
	)
	for _, set := range sets {
		sum, ok := set.Summary()
		if !ok {
			p("%-12s %8d\n", set.Label, 0)
			continue
		}
		p("%-12s %8d %14.2f %12.2f %14.2f %14.2f %14.2f\n",
			set.Label, sum.N, sum.Mean, sum.Std, sum.Variance, sum.Min, sum.Max,
		)
	}

	if err != nil {
		return fmt.Errorf("report: could not write summary: %w", err)
	}
	return nil
}
