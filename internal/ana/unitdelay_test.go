// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ana

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/go-lpc/tdc/bench"
	"github.com/go-lpc/tdc/internal/report"
)

func TestUnitDelay(t *testing.T) {
	// synthetic campaign: tau grows linearly with the SEL code,
	// tau(sel) = 100 + 10*sel, identically for every channel.
	var samples []SelSample
	for _, sel := range []int{0, 2, 5, 7} {
		tau := 100 + 10*float64(sel)
		for step := 0; step < 5; step++ {
			samples = append(samples, SelSample{
				Sel:   sel,
				Step:  step,
				Label: fmt.Sprintf("CSA%d", step),
				N:     10,
				Mean:  StepCoeffs[step] * tau,
			})
		}
	}
	// channels seen at a single setting are dropped, unknown ones
	// are ignored.
	samples = append(samples, SelSample{Sel: 0, Step: 5, Label: "CSA5", N: 10, Mean: -500})
	samples = append(samples, SelSample{Sel: 0, Step: 9, Label: "CSA9", N: 10, Mean: 42})
	samples = append(samples, SelSample{Sel: 7, Step: 9, Label: "CSA9", N: 10, Mean: 42})

	chans, err := UnitDelay(samples)
	if err != nil {
		t.Fatalf("could not analyze unit delay: %+v", err)
	}

	if got, want := len(chans), 5; got != want {
		t.Fatalf("invalid number of channels: got=%d, want=%d", got, want)
	}
	for i, ch := range chans {
		if got, want := ch.Step, i; got != want {
			t.Fatalf("channel %d: invalid step: got=%d, want=%d", i, got, want)
		}
		if got, want := ch.Label, fmt.Sprintf("CSA%d", i); got != want {
			t.Fatalf("channel %d: invalid label: got=%q, want=%q", i, got, want)
		}
		if got, want := len(ch.Samples), 4; got != want {
			t.Fatalf("channel %d: invalid number of samples: got=%d, want=%d", i, got, want)
		}
		for j, s := range ch.Samples[1:] {
			if s.Sel <= ch.Samples[j].Sel {
				t.Fatalf("channel %d: samples not sorted by SEL: %+v", i, ch.Samples)
			}
		}
		if got, want := ch.Base, 100.0; math.Abs(got-want) > 1e-9 {
			t.Fatalf("channel %d: invalid base: got=%v, want=%v", i, got, want)
		}
		if got, want := ch.Slope, 10.0; math.Abs(got-want) > 1e-9 {
			t.Fatalf("channel %d: invalid slope: got=%v, want=%v", i, got, want)
		}
		if got, want := ch.R2, 1.0; math.Abs(got-want) > 1e-9 {
			t.Fatalf("channel %d: invalid r2: got=%v, want=%v", i, got, want)
		}
	}
}

func TestUnitDelayTooFewSettings(t *testing.T) {
	_, err := UnitDelay([]SelSample{
		{Sel: 0, Step: 0, Label: "CSA0", N: 10, Mean: 500},
		{Sel: 0, Step: 1, Label: "CSA1", N: 10, Mean: 300},
	})
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := err.Error(), "ana: not enough settings for unit-delay analysis"; got != want {
		t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
	}
}

func TestScanTree(t *testing.T) {
	tmp := t.TempDir()

	writeRun(t, filepath.Join(tmp, "SEL000", "SCAN_1R_10P_20230601-103000"), map[int][]float64{
		0: {10, 20, 30},
	})
	writeRun(t, filepath.Join(tmp, "SEL101", "SCAN_1R_10P_20230602-103000"), map[int][]float64{
		0: {50, 70},
		1: {-30, -10},
	})

	// stale run at the same setting: superseded by the one above.
	old := filepath.Join(tmp, "SEL101", "SCAN_1R_10P_20230101-103000")
	writeRun(t, old, map[int][]float64{0: {999}})
	past := time.Date(2023, 1, 1, 10, 30, 0, 0, time.UTC)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("could not age stale run: %+v", err)
	}

	// ignored: wrong mode, no runs yet, not a SEL directory.
	writeRun(t, filepath.Join(tmp, "SEL000", "FIXED_1R_10P_20230603-103000"), map[int][]float64{0: {1234}})
	if err := os.MkdirAll(filepath.Join(tmp, "SEL110"), 0755); err != nil {
		t.Fatalf("could not create empty SEL dir: %+v", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "SELECT.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("could not create stray file: %+v", err)
	}

	got, err := ScanTree(tmp)
	if err != nil {
		t.Fatalf("could not collect scan tree: %+v", err)
	}

	want := []SelSample{
		{Sel: 0, Step: 0, Label: "CSA0", N: 3, Mean: 20},
		{Sel: 5, Step: 0, Label: "CSA0", N: 2, Mean: 60},
		{Sel: 5, Step: 1, Label: "CSA1", N: 2, Mean: -20},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("invalid scan samples:\ngot= %+v\nwant=%+v", got, want)
	}
}

func TestScanTreeEmpty(t *testing.T) {
	tmp := t.TempDir()
	_, err := ScanTree(tmp)
	if err == nil {
		t.Fatalf("expected an error")
	}
	if got, want := err.Error(), fmt.Sprintf("ana: no scan data under %q", tmp); got != want {
		t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
	}
}

// writeRun lays one run directory down, one CSA<i>.csv per entry.
func writeRun(t *testing.T, dir string, deltas map[int][]float64) {
	t.Helper()

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		t.Fatalf("could not create run dir: %+v", err)
	}
	for step, ds := range deltas {
		set := &bench.SampleSet{
			Mode:  bench.Scan,
			Step:  step,
			Label: fmt.Sprintf("CSA%d", step),
		}
		for _, d := range ds {
			set.Pairs = append(set.Pairs, bench.Pair{DeltaPS: d})
		}
		err := report.WriteCSV(filepath.Join(dir, set.Label+".csv"), set)
		if err != nil {
			t.Fatalf("could not write %s: %+v", set.Label, err)
		}
	}
}
