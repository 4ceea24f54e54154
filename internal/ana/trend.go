// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ana

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/go-lpc/tdc/bench"
)

// StepCoeffs maps each SCAN step to the nominal excitation weight of
// its CSA channel.
var StepCoeffs = map[int]float64{
	0: +5,
	1: +3,
	2: +1,
	3: -1,
	4: -3,
	5: -5,
}

// StepTrend is the response of one SCAN step.
type StepTrend struct {
	Step  int
	Label string
	N     int
	Mean  float64 // mean delta [ps]
	Coeff float64 // excitation weight
	Tau   float64 // Mean normalized by Coeff [ps]
}

// Trend is the per-step response of a CSA scan together with the
// linear fit of mean delta against excitation weight.
type Trend struct {
	Steps []StepTrend
	Alpha float64 // fit intercept [ps]
	Beta  float64 // fit slope [ps per unit weight]
	R2    float64
}

// TrendOf fits the step responses of a SCAN acquisition: each sample
// set contributes its mean delta at the excitation weight of its
// step, and the regression slope gives the per-unit sensitivity.
func TrendOf(sets []*bench.SampleSet) (Trend, error) {
	var (
		trend Trend
		xs    []float64 // excitation weights
		ys    []float64 // mean deltas
	)

	for _, set := range sets {
		coeff, ok := StepCoeffs[set.Step]
		if !ok || len(set.Pairs) == 0 {
			continue
		}
		sum, _ := set.Summary()

		trend.Steps = append(trend.Steps, StepTrend{
			Step:  set.Step,
			Label: set.Label,
			N:     sum.N,
			Mean:  sum.Mean,
			Coeff: coeff,
			Tau:   sum.Mean / coeff,
		})
		xs = append(xs, coeff)
		ys = append(ys, sum.Mean)
	}

	if len(trend.Steps) < 2 {
		return trend, fmt.Errorf("ana: not enough steps for trend analysis (got=%d)", len(trend.Steps))
	}

	trend.Alpha, trend.Beta = stat.LinearRegression(xs, ys, nil, false)
	trend.R2 = stat.RSquared(xs, ys, nil, trend.Alpha, trend.Beta)

	return trend, nil
}
