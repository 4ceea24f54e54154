// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-trend analyzes the unit delay of a chip across SEL
// settings from the artifact tree of a scan campaign: for each CSA
// channel it collects the mean delta of the latest SCAN run of every
// SEL<bbb> directory, normalizes by the channel excitation weight and
// fits the normalized delay against the SEL code. The fit slope is
// the delay added per SEL count.
//
// Usage: tdc-trend [OPTIONS]
//
// Example:
//
//	$> tdc-trend -dir=./data
//	CSA0: base=3825.824 ps  unit delay=12.273 ps/sel  r2=0.9982  (8 settings)
//	CSA1: base=3830.410 ps  unit delay=12.150 ps/sel  r2=0.9975  (8 settings)
//	[...]
//	plot:    data/Unit_Delay_Analysis_20230602-103000.png
package main // import "github.com/go-lpc/tdc/cmd/tdc-trend"

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/go-lpc/tdc/internal/ana"
)

func main() {
	log.SetPrefix("tdc-trend: ")
	log.SetFlags(0)

	err := xmain(os.Stdout, os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func xmain(w io.Writer, args []string) error {
	fset := flag.NewFlagSet("tdc-trend", flag.ContinueOnError)
	fset.SetOutput(w)
	var (
		dir = fset.String("dir", "data", "root of the acquisition artifact tree")
		out = fset.String("o", "", "path to the output plot (default: Unit_Delay_Analysis_<stamp>.png under -dir)")
	)

	err := fset.Parse(args)
	if err != nil {
		return err
	}

	samples, err := ana.ScanTree(*dir)
	if err != nil {
		return fmt.Errorf("could not collect scan campaign: %w", err)
	}

	chans, err := ana.UnitDelay(samples)
	if err != nil {
		return fmt.Errorf("could not analyze unit delay: %w", err)
	}

	for _, ch := range chans {
		fmt.Fprintf(w, "%s: base=%.3f ps  unit delay=%.3f ps/sel  r2=%.4f  (%d settings)\n",
			ch.Label, ch.Base, ch.Slope, ch.R2, len(ch.Samples),
		)
	}

	fname := *out
	if fname == "" {
		stamp := time.Now().Format("20060102-150405")
		fname = filepath.Join(*dir, fmt.Sprintf("Unit_Delay_Analysis_%s.png", stamp))
	}

	err = plotChannels(fname, chans)
	if err != nil {
		return fmt.Errorf("could not plot unit delays: %w", err)
	}

	fmt.Fprintf(w, "plot:    %s\n", fname)
	return nil
}

// plotChannels scatters the normalized delays of each channel against
// the SEL code, one tile per channel, with the fitted line overlaid.
func plotChannels(fname string, chans []ana.ChannelDelay) error {
	cols := 3
	if len(chans) < cols {
		cols = len(chans)
	}
	rows := (len(chans) + cols - 1) / cols

	tp := hplot.NewTiledPlot(draw.Tiles{
		Cols: cols,
		Rows: rows,
		PadX: 1 * vg.Centimeter,
		PadY: 1 * vg.Centimeter,
	})

	for i, p := range tp.Plots {
		if i >= len(chans) {
			p.HideAxes()
			continue
		}
		ch := chans[i]
		coeff := ana.StepCoeffs[ch.Step]

		s2d := hbook.NewS2D()
		for _, s := range ch.Samples {
			s2d.Fill(hbook.Point2D{X: float64(s.Sel), Y: s.Mean / coeff})
		}
		sc := hplot.NewS2D(s2d)
		sc.GlyphStyle.Radius = vg.Points(3)
		p.Add(sc)

		fit := plotter.NewFunction(func(x float64) float64 {
			return ch.Base + ch.Slope*x
		})
		p.Add(fit)

		p.Title.Text = fmt.Sprintf("%s  %.3f ps/sel (r2=%.4f)", ch.Label, ch.Slope, ch.R2)
		p.X.Label.Text = "SEL"
		p.Y.Label.Text = "tau [ps]"
	}

	err := tp.Save(
		vg.Length(cols)*10*vg.Centimeter,
		vg.Length(rows)*10*vg.Centimeter,
		fname,
	)
	if err != nil {
		return fmt.Errorf("could not save plot: %w", err)
	}
	return nil
}
