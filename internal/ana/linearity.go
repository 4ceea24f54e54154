// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ana

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/go-lpc/tdc/bench"
)

// Code is the delta statistics of one measurement id of a
// calibration sweep.
type Code struct {
	ID   uint8
	N    int
	Mean float64 // mean delta [ps]
	DNL  float64 // step-width deviation [LSB]
	INL  float64 // cumulated deviation [LSB]
}

// Performance characterizes a calibration sweep: the per-code means
// of the delta distribution and the linearity figures derived from
// them.
type Performance struct {
	Codes     []Code
	LSB       float64 // mean step width [ps]
	DNL       float64 // worst |DNL| [LSB]
	INL       float64 // worst |INL| [LSB]
	Monotonic bool
}

// Linearity computes the converter transfer curve from the pairs of a
// calibration sweep: pairs are grouped by measurement id, the per-id
// mean deltas form the codes and the step widths between consecutive
// codes give LSB, DNL and INL.
func Linearity(pairs []bench.Pair) (Performance, error) {
	var perf Performance

	deltas := make(map[uint8][]float64)
	for _, p := range pairs {
		id := p.Up.ID
		deltas[id] = append(deltas[id], p.DeltaPS)
	}
	if len(deltas) < 2 {
		return perf, fmt.Errorf("ana: not enough codes for linearity analysis (got=%d)", len(deltas))
	}

	ids := make([]uint8, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	perf.Codes = make([]Code, len(ids))
	for i, id := range ids {
		xs := deltas[id]
		perf.Codes[i] = Code{
			ID:   id,
			N:    len(xs),
			Mean: stat.Mean(xs, nil),
		}
	}

	steps := make([]float64, len(perf.Codes)-1)
	for i := range steps {
		steps[i] = perf.Codes[i+1].Mean - perf.Codes[i].Mean
	}
	perf.LSB = stat.Mean(steps, nil)
	if perf.LSB == 0 {
		return perf, fmt.Errorf("ana: degenerate transfer curve (LSB=0)")
	}

	perf.Monotonic = true
	inl := 0.0
	for i, step := range steps {
		dnl := step/perf.LSB - 1
		inl += dnl

		perf.Codes[i+1].DNL = dnl
		perf.Codes[i+1].INL = inl

		if math.Abs(dnl) > perf.DNL {
			perf.DNL = math.Abs(dnl)
		}
		if math.Abs(inl) > perf.INL {
			perf.INL = math.Abs(inl)
		}
		if step*perf.LSB < 0 {
			perf.Monotonic = false
		}
	}

	return perf, nil
}
