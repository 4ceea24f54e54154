// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"time"

	"github.com/go-lpc/tdc/chip"
)

// Pair is a matched UP/DOWN measurement for one phase/measurement id.
//
// CoarseDiff carries the wraparound-corrected coarse-counter
// difference, in the range (-modulus/2, modulus/2]. DeltaPS is the
// signed time difference in picoseconds:
//
//	delta = coarse_diff*clk_period - fine_diff
//
// Sel, Step and Label are stamped by the session that accepted the
// pair; they are zero on pairs observed outside a session.
type Pair struct {
	Up   chip.Packet
	Down chip.Packet

	CoarseDiff int
	FineDiff   int
	DeltaPS    float64

	Time  time.Time
	Sel   string // configuration label of the session
	Step  int    // SCAN step the pair was collected in
	Label string // excitation label, e.g. "CSA3"
}

// Counters tallies the anomalies and discards seen while pairing.
type Counters struct {
	Words   uint64 // telemetry words decoded
	Pairs   uint64 // pairs emitted
	Orphans uint64 // DOWN events with no pending UP
	Evicted uint64 // pending UPs overwritten by a newer UP
	Echoes  uint64 // command echoes discarded
	Infos   uint64 // informational words
}

// Pairer matches UP and DOWN telemetry events sharing a measurement
// id. It keeps at most one pending UP per id: a second UP for the
// same id overwrites the first, which is then permanently unpaired.
//
// Pairer is not safe for concurrent use; in the device it is owned by
// the consumer loop.
type Pairer struct {
	modulus int
	clkPS   float64

	pending map[uint8]chip.Packet
	cnt     Counters
}

// NewPairer returns a pairer computing deltas with the given coarse
// modulus and clock period (in picoseconds).
func NewPairer(modulus int, clkPS float64) *Pairer {
	return &Pairer{
		modulus: modulus,
		clkPS:   clkPS,
		pending: make(map[uint8]chip.Packet, 64),
	}
}

// Ingest feeds one decoded telemetry event to the pairer. It reports
// whether a pair was completed.
func (pr *Pairer) Ingest(pkt chip.Packet) (Pair, bool) {
	switch pkt.Kind {
	case chip.Echo:
		pr.cnt.Echoes++
	case chip.Info:
		pr.cnt.Infos++
	case chip.Up:
		if _, dup := pr.pending[pkt.ID]; dup {
			pr.cnt.Evicted++
		}
		pr.pending[pkt.ID] = pkt
	case chip.Down:
		up, ok := pr.pending[pkt.ID]
		if !ok {
			pr.cnt.Orphans++
			return Pair{}, false
		}
		delete(pr.pending, pkt.ID)
		pr.cnt.Pairs++
		return pr.pair(up, pkt), true
	}
	return Pair{}, false
}

func (pr *Pairer) pair(up, down chip.Packet) Pair {
	var (
		m   = pr.modulus
		raw = (int(down.Coarse) - int(up.Coarse)) % m
	)
	if raw < 0 {
		raw += m
	}
	cd := raw
	if raw > m/2 {
		cd = raw - m
	}
	fd := int(down.Fine) - int(up.Fine)

	return Pair{
		Up:         up,
		Down:       down,
		CoarseDiff: cd,
		FineDiff:   fd,
		DeltaPS:    float64(cd)*pr.clkPS - float64(fd),
		Time:       time.Now(),
	}
}

// Pending returns the number of UP events awaiting their DOWN.
func (pr *Pairer) Pending() int { return len(pr.pending) }

// Counters returns a snapshot of the pairing counters.
func (pr *Pairer) Counters() Counters { return pr.cnt }

// Reset clears the pending table and the counters, ahead of a new
// session.
func (pr *Pairer) Reset() {
	for id := range pr.pending {
		delete(pr.pending, id)
	}
	pr.cnt = Counters{}
}
