// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chip

import (
	"fmt"
	"strings"
)

// Layout describes how a telemetry word packs its fields.
//
// Two layouts exist in the field, differing in the widths of the id
// and coarse counters. Fields are packed contiguously from the most
// significant bit down: type(2), id, fine, flag(1), coarse.
type Layout struct {
	Name       string
	IDBits     uint
	FineBits   uint
	CoarseBits uint
}

var (
	// LayoutA is the 8-bit id, 8-bit coarse telemetry layout.
	LayoutA = Layout{Name: "A", IDBits: 8, FineBits: 13, CoarseBits: 8}

	// LayoutB is the 6-bit id, 10-bit coarse telemetry layout.
	// This is the layout current fixture firmwares stream.
	LayoutB = Layout{Name: "B", IDBits: 6, FineBits: 13, CoarseBits: 10}
)

// LayoutOf returns the layout with the given name ("A" or "B").
func LayoutOf(name string) (Layout, error) {
	switch strings.ToUpper(name) {
	case "A":
		return LayoutA, nil
	case "B":
		return LayoutB, nil
	}
	return Layout{}, fmt.Errorf("chip: unknown telemetry layout %q", name)
}

// CoarseModulus returns the natural modulus of the coarse counter,
// 1 << CoarseBits.
func (ly Layout) CoarseModulus() int {
	return 1 << ly.CoarseBits
}

func (ly Layout) idShift() uint   { return 30 - ly.IDBits }
func (ly Layout) fineShift() uint { return 30 - ly.IDBits - ly.FineBits }
func (ly Layout) flagShift() uint { return ly.CoarseBits }

// Decode extracts the fields of the telemetry word w.
func (ly Layout) Decode(w Word) Packet {
	return Packet{
		Kind:   w.Kind(),
		ID:     uint8(uint32(w) >> ly.idShift() & mask(ly.IDBits)),
		Fine:   uint16(uint32(w) >> ly.fineShift() & mask(ly.FineBits)),
		Flag:   uint8(uint32(w) >> ly.flagShift() & 0x1),
		Coarse: uint16(uint32(w) & mask(ly.CoarseBits)),
		Raw:    w,
	}
}

// Encode packs p back into a telemetry word, masking each field to
// its width. The inverse of Decode for in-range fields.
func (ly Layout) Encode(p Packet) Word {
	w := uint32(p.Kind&0x3) << 30
	w |= (uint32(p.ID) & mask(ly.IDBits)) << ly.idShift()
	w |= (uint32(p.Fine) & mask(ly.FineBits)) << ly.fineShift()
	w |= uint32(p.Flag&0x1) << ly.flagShift()
	w |= uint32(p.Coarse) & mask(ly.CoarseBits)
	return Word(w)
}

func mask(bits uint) uint32 {
	return 1<<bits - 1
}
