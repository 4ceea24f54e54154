// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chip

import (
	"encoding/binary"
	"fmt"
)

// CmdType selects between stimulus and calibration commands.
type CmdType uint8

const (
	CmdScan  CmdType = 0 // scan/stimulus request
	CmdCalib CmdType = 1 // calibration request
)

func (t CmdType) String() string {
	switch t {
	case CmdScan:
		return "scan"
	case CmdCalib:
		return "calib"
	}
	return "???"
}

// ScanMode selects between a single phase step and a full phase scan.
type ScanMode uint8

const (
	SingleStep ScanMode = 0
	FullScan   ScanMode = 1
)

func (m ScanMode) String() string {
	switch m {
	case SingleStep:
		return "single"
	case FullScan:
		return "full"
	}
	return "???"
}

// Channel is the edge-channel mask of a command word.
type Channel uint8

const (
	ChanNone Channel = 0x0
	ChanDown Channel = 0x1
	ChanUp   Channel = 0x2
	ChanBoth Channel = 0x3
)

func (ch Channel) String() string {
	switch ch {
	case ChanNone:
		return "none"
	case ChanDown:
		return "down"
	case ChanUp:
		return "up"
	case ChanBoth:
		return "both"
	}
	return "???"
}

// PixelCtrl is the pixel-control byte of a command word: a reset
// strobe and a 6-bit CSA excitation mask. Bit 0 is reserved.
type PixelCtrl struct {
	Reset bool
	CSA   uint8 // excitation mask, one bit per CSA channel
}

func (pc PixelCtrl) byte() uint32 {
	var v uint32
	if pc.Reset {
		v |= 1 << 7
	}
	v |= uint32(pc.CSA&0x3f) << 1
	return v
}

// Command is a 32-bit control word sent to the fixture.
//
// Out-of-range field values are masked to their bit width when the
// command is packed; callers wanting visible range errors must
// validate before encoding.
type Command struct {
	Type     CmdType
	ScanMode ScanMode
	Channel  Channel
	Phase    uint8
	Pixel    PixelCtrl
}

// Word packs cmd into its wire representation:
//
//	[31]    type       0=scan/stimulus, 1=calibration
//	[30]    scan_mode  0=single-step, 1=full-scan
//	[29:28] channel    00=none, 01=DOWN, 10=UP, 11=both
//	[27:20] phase
//	[19:12] pixel_ctrl [7]=reset, [6:1]=CSA mask, [0]=reserved
//	[11:0]  reserved
func (cmd Command) Word() Word {
	var w uint32
	w |= uint32(cmd.Type&0x1) << 31
	w |= uint32(cmd.ScanMode&0x1) << 30
	w |= uint32(cmd.Channel&0x3) << 28
	w |= uint32(cmd.Phase) << 20
	w |= cmd.Pixel.byte() << 12
	return Word(w)
}

// Bytes returns the 4 bytes of cmd in transmission order
// (little-endian).
func (cmd Command) Bytes() []byte {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(cmd.Word()))
	return buf[:]
}

// DecodeCommand unpacks a command word. The inverse of Command.Word.
func DecodeCommand(w Word) Command {
	v := uint32(w)
	return Command{
		Type:     CmdType(v >> 31 & 0x1),
		ScanMode: ScanMode(v >> 30 & 0x1),
		Channel:  Channel(v >> 28 & 0x3),
		Phase:    uint8(v >> 20),
		Pixel: PixelCtrl{
			Reset: v>>19&0x1 == 1,
			CSA:   uint8(v >> 13 & 0x3f),
		},
	}
}

func (cmd Command) String() string {
	return fmt.Sprintf("cmd{%v %v ch=%v phase=%d rst=%v csa=0b%06b}",
		cmd.Type, cmd.ScanMode, cmd.Channel, cmd.Phase,
		cmd.Pixel.Reset, cmd.Pixel.CSA,
	)
}
