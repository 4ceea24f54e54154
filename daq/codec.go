// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-daq/tdaq"

	"github.com/go-lpc/tdc/bench"
	"github.com/go-lpc/tdc/chip"
)

// MarshalPair encodes a measurement pair into the wire format of the
// /tdc/pairs end-point.
func MarshalPair(p bench.Pair) ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := tdaq.NewEncoder(buf)
	enc.WriteI64(p.Time.UnixNano())
	enc.WriteStr(p.Sel)
	enc.WriteU32(uint32(p.Step))
	enc.WriteStr(p.Label)
	writePacket(enc, p.Up)
	writePacket(enc, p.Down)
	enc.WriteI32(int32(p.CoarseDiff))
	enc.WriteI32(int32(p.FineDiff))
	enc.WriteF64(p.DeltaPS)
	if err := enc.Err(); err != nil {
		return nil, fmt.Errorf("daq: could not encode pair: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalPair decodes a measurement pair from the wire format of the
// /tdc/pairs end-point.
func UnmarshalPair(body []byte) (bench.Pair, error) {
	var p bench.Pair
	dec := tdaq.NewDecoder(bytes.NewReader(body))
	ns := dec.ReadI64()
	p.Sel = dec.ReadStr()
	p.Step = int(dec.ReadU32())
	p.Label = dec.ReadStr()
	p.Up = readPacket(dec, chip.Up)
	p.Down = readPacket(dec, chip.Down)
	p.CoarseDiff = int(dec.ReadI32())
	p.FineDiff = int(dec.ReadI32())
	p.DeltaPS = dec.ReadF64()
	if err := dec.Err(); err != nil {
		return bench.Pair{}, fmt.Errorf("daq: could not decode pair: %w", err)
	}
	p.Time = time.Unix(0, ns)
	return p, nil
}

func writePacket(enc *tdaq.Encoder, pkt chip.Packet) {
	enc.WriteU8(pkt.ID)
	enc.WriteU16(pkt.Fine)
	enc.WriteU8(pkt.Flag)
	enc.WriteU16(pkt.Coarse)
	enc.WriteU32(uint32(pkt.Raw))
}

func readPacket(dec *tdaq.Decoder, kind chip.Kind) chip.Packet {
	var pkt chip.Packet
	pkt.Kind = kind
	pkt.ID = dec.ReadU8()
	pkt.Fine = dec.ReadU16()
	pkt.Flag = dec.ReadU8()
	pkt.Coarse = dec.ReadU16()
	pkt.Raw = chip.Word(dec.ReadU32())
	return pkt
}
