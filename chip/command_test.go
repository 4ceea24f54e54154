// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package chip

import (
	"bytes"
	"testing"
)

func TestCommandWord(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  Command
		want Word
	}{
		{
			name: "zero",
			cmd:  Command{},
			want: 0x00000000,
		},
		{
			name: "calib",
			cmd:  Command{Type: CmdCalib},
			want: 0x80000000,
		},
		{
			name: "full-scan-calib",
			cmd:  Command{Type: CmdCalib, ScanMode: FullScan},
			want: 0xc0000000,
		},
		{
			name: "step-stimulus",
			cmd: Command{
				Channel: ChanBoth,
				Pixel:   PixelCtrl{Reset: true, CSA: 0x01},
			},
			want: 0x30082000,
		},
		{
			name: "phase",
			cmd:  Command{Channel: ChanUp, Phase: 0xab},
			want: 0x2ab00000,
		},
		{
			name: "all-fields",
			cmd: Command{
				Type:     CmdCalib,
				ScanMode: FullScan,
				Channel:  ChanBoth,
				Phase:    0xab,
				Pixel:    PixelCtrl{Reset: true, CSA: 0x2a},
			},
			want: 0xfabd4000,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.cmd.Word()
			if got != tc.want {
				t.Fatalf("invalid command word: got=0x%08x, want=0x%08x", uint32(got), uint32(tc.want))
			}

			if dec := DecodeCommand(got); dec != tc.cmd {
				t.Fatalf("invalid round-trip:\ngot= %#v\nwant=%#v", dec, tc.cmd)
			}
		})
	}
}

func TestCommandMasking(t *testing.T) {
	for _, tc := range []struct {
		name string
		cmd  Command
		want Command
	}{
		{
			name: "csa-mask",
			cmd:  Command{Pixel: PixelCtrl{CSA: 0xff}},
			want: Command{Pixel: PixelCtrl{CSA: 0x3f}},
		},
		{
			name: "channel-mask",
			cmd:  Command{Channel: Channel(0xff)},
			want: Command{Channel: ChanBoth},
		},
		{
			name: "type-mask",
			cmd:  Command{Type: CmdType(0xfe)},
			want: Command{Type: CmdScan},
		},
		{
			name: "scan-mode-mask",
			cmd:  Command{ScanMode: ScanMode(0x03)},
			want: Command{ScanMode: FullScan},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeCommand(tc.cmd.Word())
			if got != tc.want {
				t.Fatalf("invalid masked command:\ngot= %#v\nwant=%#v", got, tc.want)
			}
		})
	}
}

func TestCommandBytes(t *testing.T) {
	cmd := Command{
		Type:     CmdCalib,
		ScanMode: FullScan,
		Channel:  ChanBoth,
		Phase:    0xab,
		Pixel:    PixelCtrl{Reset: true, CSA: 0x2a},
	}
	want := []byte{0x00, 0x40, 0xbd, 0xfa} // 0xfabd4000, little-endian
	if got := cmd.Bytes(); !bytes.Equal(got, want) {
		t.Fatalf("invalid wire bytes: got=%x, want=%x", got, want)
	}
}
