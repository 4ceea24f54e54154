// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"fmt"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/go-lpc/tdc/bench"
)

const nbins = 100

// Plot histograms the delta distribution of each sample set into a
// tiled plot, one tile per set, and saves it to fname.
func Plot(fname string, sets []*bench.SampleSet) error {
	cols := 3
	if len(sets) < cols {
		cols = len(sets)
	}
	if cols == 0 {
		cols = 1
	}
	rows := (len(sets) + cols - 1) / cols
	if rows == 0 {
		rows = 1
	}

	tp := hplot.NewTiledPlot(draw.Tiles{
		Cols: cols,
		Rows: rows,
		PadX: 1 * vg.Centimeter,
		PadY: 1 * vg.Centimeter,
	})

	for i, p := range tp.Plots {
		if i >= len(sets) || len(sets[i].Pairs) == 0 {
			p.HideAxes()
			continue
		}
		set := sets[i]
		xs := set.Deltas()
		lo, hi := floats.Min(xs), floats.Max(xs)
		if lo == hi {
			// degenerate distribution: widen the window so the
			// single bin is visible.
			lo, hi = lo-1, hi+1
		}

		h := hbook.NewH1D(nbins, lo, hi)
		for _, x := range xs {
			h.Fill(x, 1)
		}

		p.Add(hplot.NewH1D(h))
		p.Title.Text = fmt.Sprintf("%s  n=%d", set.Label, len(set.Pairs))
		p.X.Label.Text = "delta [ps]"
		p.Y.Label.Text = "pairs"
	}

	err := tp.Save(
		vg.Length(cols)*10*vg.Centimeter,
		vg.Length(rows)*10*vg.Centimeter,
		fname,
	)
	if err != nil {
		return fmt.Errorf("report: could not save plot: %w", err)
	}
	return nil
}
