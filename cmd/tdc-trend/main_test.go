// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-lpc/tdc/bench"
	"github.com/go-lpc/tdc/internal/ana"
	"github.com/go-lpc/tdc/internal/report"
)

func TestTrendAnalysis(t *testing.T) {
	tmp := t.TempDir()

	// two settings, exact linear response tau(sel) = 100 + 10*sel
	// on both channels.
	for _, sel := range []int{0, 7} {
		tau := 100 + 10*float64(sel)
		dir := filepath.Join(tmp, fmt.Sprintf("SEL%03b", sel), "SCAN_1R_10P_20230602-103000")
		writeScan(t, dir, map[int]float64{
			0: ana.StepCoeffs[0] * tau,
			1: ana.StepCoeffs[1] * tau,
		})
	}

	plot := filepath.Join(tmp, "trend.png")
	out := new(strings.Builder)
	err := xmain(out, []string{"-dir=" + tmp, "-o=" + plot})
	if err != nil {
		t.Fatalf("could not run trend analysis: %+v", err)
	}

	for _, want := range []string{
		"CSA0: base=100.000 ps  unit delay=10.000 ps/sel  r2=1.0000  (2 settings)\n",
		"CSA1: base=100.000 ps  unit delay=10.000 ps/sel  r2=1.0000  (2 settings)\n",
		"plot:    " + plot + "\n",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output does not contain %q:\n%s", want, out.String())
		}
	}

	fi, err := os.Stat(plot)
	if err != nil {
		t.Fatalf("missing plot: %+v", err)
	}
	if fi.Size() == 0 {
		t.Fatalf("empty plot")
	}
}

func TestTrendAnalysisNoData(t *testing.T) {
	tmp := t.TempDir()
	err := xmain(new(strings.Builder), []string{"-dir=" + tmp})
	if err == nil {
		t.Fatalf("expected an error")
	}
	want := fmt.Sprintf("could not collect scan campaign: ana: no scan data under %q", tmp)
	if got := err.Error(); got != want {
		t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
	}
}

// writeScan lays one run directory down, one CSA<i>.csv per entry,
// each holding three pairs centered on the wanted mean.
func writeScan(t *testing.T, dir string, means map[int]float64) {
	t.Helper()

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		t.Fatalf("could not create run dir: %+v", err)
	}
	for step, mean := range means {
		set := &bench.SampleSet{
			Mode:  bench.Scan,
			Step:  step,
			Label: fmt.Sprintf("CSA%d", step),
		}
		for _, d := range []float64{-1, 0, +1} {
			set.Pairs = append(set.Pairs, bench.Pair{DeltaPS: mean + d})
		}
		err := report.WriteCSV(filepath.Join(dir, set.Label+".csv"), set)
		if err != nil {
			t.Fatalf("could not write %s: %+v", set.Label, err)
		}
	}
}
