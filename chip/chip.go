// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package chip implements the serial protocol of the TDC pixel ASIC
// test fixture: 32-bit command words sent to the fixture and 32-bit
// telemetry words streamed back by it.
//
// All words travel little-endian on an 8N1 serial line. Telemetry
// words are decoded according to a Layout, which fixes the bit widths
// of the id, fine-time and coarse-time fields.
package chip // import "github.com/go-lpc/tdc/chip"

// Word is a 32-bit protocol word, command or telemetry.
type Word uint32

// Kind is the type tag of a telemetry word, stored in its two most
// significant bits.
type Kind uint8

const (
	Up   Kind = 0x0 // rising edge
	Down Kind = 0x1 // falling edge
	Info Kind = 0x2 // informational, ignored by pairing
	Echo Kind = 0x3 // command echo, discarded
)

func (k Kind) String() string {
	switch k {
	case Up:
		return "UP"
	case Down:
		return "DOWN"
	case Info:
		return "INFO"
	case Echo:
		return "CMD"
	}
	return "???"
}

// Kind returns the type tag of w. The tag occupies bits [31:30] in
// every layout.
func (w Word) Kind() Kind {
	return Kind(w >> 30 & 0x3)
}

// Packet is a decoded telemetry word.
type Packet struct {
	Kind   Kind
	ID     uint8  // phase/measurement identifier
	Fine   uint16 // sub-cycle fine time
	Flag   uint8  // channel flag bit
	Coarse uint16 // modulo clock-cycle counter
	Raw    Word
}

const (
	// NumCSA is the number of CSA excitation channels on the pixel chip.
	NumCSA = 6

	// DefaultClock is the nominal TDC coarse-counter clock, in Hz.
	DefaultClock = 260000000
)

// DefaultClockPeriod is the nominal coarse clock period, in picoseconds.
const DefaultClockPeriod = 1e12 / float64(DefaultClock)
