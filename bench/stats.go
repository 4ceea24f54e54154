// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the summary statistics of one sample set. Variance is
// the population variance (divided by n, not n-1).
type Summary struct {
	N        int
	Mean     float64
	Variance float64
	Std      float64
	Min      float64
	Max      float64
}

// Summarize computes the summary statistics of xs. It reports false
// for an empty sample set.
func Summarize(xs []float64) (Summary, bool) {
	if len(xs) == 0 {
		return Summary{}, false
	}
	return Summary{
		N:        len(xs),
		Mean:     stat.Mean(xs, nil),
		Variance: stat.PopVariance(xs, nil),
		Std:      stat.PopStdDev(xs, nil),
		Min:      floats.Min(xs),
		Max:      floats.Max(xs),
	}, true
}
