// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ana

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/go-lpc/tdc/chip"
	"github.com/go-lpc/tdc/internal/report"
)

// SelSample is the response of one CSA channel at one SEL setting:
// the mean pair delta of the most recent SCAN run taken at that
// setting.
type SelSample struct {
	Sel   int     // SEL code
	Step  int     // CSA channel index
	Label string  // CSA channel label
	N     int     // number of pairs
	Mean  float64 // mean delta [ps]
}

// ChannelDelay is the unit-delay characteristic of one CSA channel
// across SEL settings: the normalized delay tau follows
// Base + Slope*sel, with Slope the delay added per SEL count.
type ChannelDelay struct {
	Step    int
	Label   string
	Samples []SelSample
	Base    float64 // fit intercept [ps]
	Slope   float64 // unit delay [ps per SEL count]
	R2      float64
}

// ScanTree collects the per-channel mean deltas of a whole scan
// campaign from the artifact tree rooted at dir. Each SEL<bbb>
// directory contributes its most recent SCAN run; within a run, each
// CSA<i>.csv yields one sample.
func ScanTree(dir string) ([]SelSample, error) {
	seldirs, err := filepath.Glob(filepath.Join(dir, "SEL*"))
	if err != nil {
		return nil, fmt.Errorf("ana: could not list scan tree %q: %w", dir, err)
	}

	var samples []SelSample
	for _, seldir := range seldirs {
		base := filepath.Base(seldir)
		sel, err := strconv.ParseUint(base[len("SEL"):], 2, 8)
		if err != nil {
			continue // not a SEL directory
		}

		run, err := latestRun(seldir)
		if err != nil {
			return nil, err
		}
		if run == "" {
			continue // no scan run at this setting yet
		}

		for step := 0; step < chip.NumCSA; step++ {
			label := fmt.Sprintf("CSA%d", step)
			deltas, err := report.ReadDeltas(filepath.Join(run, label+".csv"))
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, fmt.Errorf("ana: could not read scan run %q: %w", run, err)
			}
			if len(deltas) == 0 {
				continue
			}
			samples = append(samples, SelSample{
				Sel:   int(sel),
				Step:  step,
				Label: label,
				N:     len(deltas),
				Mean:  stat.Mean(deltas, nil),
			})
		}
	}

	if len(samples) == 0 {
		return nil, fmt.Errorf("ana: no scan data under %q", dir)
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Step != samples[j].Step {
			return samples[i].Step < samples[j].Step
		}
		return samples[i].Sel < samples[j].Sel
	})
	return samples, nil
}

// latestRun returns the most recent SCAN run directory under seldir,
// or "" when none exists.
func latestRun(seldir string) (string, error) {
	runs, err := filepath.Glob(filepath.Join(seldir, "SCAN_*"))
	if err != nil {
		return "", fmt.Errorf("ana: could not list runs of %q: %w", seldir, err)
	}

	var (
		last  string
		mtime int64
	)
	for _, run := range runs {
		fi, err := os.Stat(run)
		if err != nil {
			return "", fmt.Errorf("ana: could not stat run %q: %w", run, err)
		}
		if !fi.IsDir() {
			continue
		}
		if t := fi.ModTime().UnixNano(); last == "" || t > mtime {
			last, mtime = run, t
		}
	}
	return last, nil
}

// UnitDelay fits, per CSA channel, the normalized delay against the
// SEL code. Samples are normalized by their channel excitation weight
// so that channels of opposite polarity land on the same scale.
// Channels observed at fewer than two SEL settings are dropped.
func UnitDelay(samples []SelSample) ([]ChannelDelay, error) {
	bystep := make(map[int][]SelSample)
	for _, s := range samples {
		if _, ok := StepCoeffs[s.Step]; !ok {
			continue
		}
		bystep[s.Step] = append(bystep[s.Step], s)
	}

	var chans []ChannelDelay
	for step, ss := range bystep {
		if len(ss) < 2 {
			continue
		}
		sort.Slice(ss, func(i, j int) bool { return ss[i].Sel < ss[j].Sel })

		coeff := StepCoeffs[step]
		xs := make([]float64, len(ss))
		ys := make([]float64, len(ss))
		for i, s := range ss {
			xs[i] = float64(s.Sel)
			ys[i] = s.Mean / coeff
		}

		ch := ChannelDelay{
			Step:    step,
			Label:   ss[0].Label,
			Samples: ss,
		}
		ch.Base, ch.Slope = stat.LinearRegression(xs, ys, nil, false)
		ch.R2 = stat.RSquared(xs, ys, nil, ch.Base, ch.Slope)
		chans = append(chans, ch)
	}

	if len(chans) == 0 {
		return nil, fmt.Errorf("ana: not enough settings for unit-delay analysis")
	}

	sort.Slice(chans, func(i, j int) bool { return chans[i].Step < chans[j].Step })
	return chans, nil
}
