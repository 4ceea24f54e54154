// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-lpc/tdc/bench"
	"github.com/go-lpc/tdc/chip"
)

var csvHeader = []string{
	"Time", "Ch", "ID", "Sel",
	"Coarse", "Fine",
	"CoarseDiff", "FineDiff", "Delta_ps",
	"RawHex", "CSA_Label",
}

// WriteCSV writes the pairs of a sample set to fname, one row per
// telemetry event: the UP row carries the raw event, the DOWN row
// additionally carries the pair-level differences and delta.
func WriteCSV(fname string, set *bench.SampleSet) error {
	f, err := os.Create(fname)
	if err != nil {
		return fmt.Errorf("report: could not create CSV file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	err = w.Write(csvHeader)
	if err != nil {
		return fmt.Errorf("report: could not write CSV header: %w", err)
	}

	for i, p := range set.Pairs {
		stamp := p.Time.Format("15:04:05.000")
		err = w.Write(eventRow(stamp, p, p.Up, nil))
		if err != nil {
			return fmt.Errorf("report: could not write CSV row %d: %w", 2*i, err)
		}
		err = w.Write(eventRow(stamp, p, p.Down, &p))
		if err != nil {
			return fmt.Errorf("report: could not write CSV row %d: %w", 2*i+1, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: could not flush CSV file: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("report: could not close CSV file: %w", err)
	}
	return nil
}

// ReadDeltas reads back the pair deltas of a CSV file written by
// WriteCSV, in picoseconds. Rows that carry no delta (the rows of UP
// events) are skipped.
func ReadDeltas(fname string) ([]float64, error) {
	f, err := os.Open(fname)
	if err != nil {
		return nil, fmt.Errorf("report: could not open CSV file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	hdr, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("report: could not read CSV header: %w", err)
	}

	col := -1
	for i, name := range hdr {
		if name == "Delta_ps" {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("report: no Delta_ps column in %q", fname)
	}

	var deltas []float64
	for i := 1; ; i++ {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("report: could not read CSV row %d: %w", i, err)
		}
		if rec[col] == "" {
			continue
		}
		v, err := strconv.ParseFloat(rec[col], 64)
		if err != nil {
			return nil, fmt.Errorf("report: could not parse CSV row %d: %w", i, err)
		}
		deltas = append(deltas, v)
	}
	return deltas, nil
}

// eventRow renders one telemetry event. The pair-level columns are
// only filled on the row closing the pair.
func eventRow(stamp string, p bench.Pair, evt chip.Packet, closing *bench.Pair) []string {
	var cd, fd, delta string
	if closing != nil {
		cd = strconv.Itoa(closing.CoarseDiff)
		fd = strconv.Itoa(closing.FineDiff)
		delta = strconv.FormatFloat(closing.DeltaPS, 'g', -1, 64)
	}
	return []string{
		stamp,
		evt.Kind.String(),
		strconv.Itoa(int(evt.ID)),
		p.Sel,
		strconv.Itoa(int(evt.Coarse)),
		strconv.Itoa(int(evt.Fine)),
		cd, fd, delta,
		fmt.Sprintf("0x%08x", uint32(evt.Raw)),
		p.Label,
	}
}
