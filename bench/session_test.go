// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-lpc/tdc/chip"
)

type issuer struct {
	cmds    []chip.Command
	failOn  int // fail the n-th issue (1-based), 0 never
	failErr error
}

func (iss *issuer) issue(cmd chip.Command) error {
	iss.cmds = append(iss.cmds, cmd)
	if iss.failOn > 0 && len(iss.cmds) >= iss.failOn {
		return iss.failErr
	}
	return nil
}

func TestSessionFixed(t *testing.T) {
	var (
		iss issuer
		ses = NewSession(iss.issue)
		cmd = chip.Command{
			Type:    chip.CmdScan,
			Channel: chip.ChanBoth,
			Pixel:   chip.PixelCtrl{Reset: true, CSA: 0x01},
		}
	)
	ses.SetLabel("101")

	err := ses.StartFixed(3, 10, cmd)
	if err != nil {
		t.Fatalf("could not start session: %+v", err)
	}
	if got, want := len(iss.cmds), 1; got != want {
		t.Fatalf("invalid number of issued commands at start: got=%d, want=%d", got, want)
	}
	if got, want := ses.Mode(), Fixed; got != want {
		t.Fatalf("invalid mode: got=%v, want=%v", got, want)
	}

	for i := 0; i < 30; i++ {
		pair, ok, err := ses.OnPair(Pair{DeltaPS: float64(i)})
		if err != nil {
			t.Fatalf("pair %d: could not aggregate: %+v", i, err)
		}
		if !ok {
			t.Fatalf("pair %d: session did not accept pair", i)
		}
		if got, want := pair.Sel, "101"; got != want {
			t.Fatalf("pair %d: invalid sel: got=%q, want=%q", i, got, want)
		}
		if got, want := pair.Label, "CSA0"; got != want {
			t.Fatalf("pair %d: invalid label: got=%q, want=%q", i, got, want)
		}

		// the command is re-issued right after the 10th and 20th
		// pairs, and not after the 30th.
		want := 1
		switch {
		case i >= 19:
			want = 3
		case i >= 9:
			want = 2
		}
		if got := len(iss.cmds); got != want {
			t.Fatalf("pair %d: invalid number of issued commands: got=%d, want=%d", i, got, want)
		}
	}

	if got, want := ses.Mode(), Idle; got != want {
		t.Fatalf("invalid mode after session: got=%v, want=%v", got, want)
	}
	for i, cmd := range iss.cmds {
		if got, want := cmd, iss.cmds[0]; got != want {
			t.Fatalf("issue %d: command drifted:\ngot= %v\nwant=%v", i, got, want)
		}
	}

	sets := ses.Sets()
	if got, want := len(sets), 1; got != want {
		t.Fatalf("invalid number of sample sets: got=%d, want=%d", got, want)
	}
	if got, want := len(sets[0].Pairs), 30; got != want {
		t.Fatalf("invalid number of pairs: got=%d, want=%d", got, want)
	}
	if got, want := sets[0].Mode, Fixed; got != want {
		t.Fatalf("invalid sample set mode: got=%v, want=%v", got, want)
	}
	if got, want := sets[0].Label, "CSA0"; got != want {
		t.Fatalf("invalid sample set label: got=%q, want=%q", got, want)
	}

	// an idle session accepts nothing.
	if _, ok, _ := ses.OnPair(Pair{}); ok {
		t.Fatalf("idle session accepted a pair")
	}
}

func TestSessionScan(t *testing.T) {
	var (
		iss issuer
		ses = NewSession(iss.issue)
	)

	err := ses.StartScan(2, 3)
	if err != nil {
		t.Fatalf("could not start session: %+v", err)
	}
	if got, want := ses.Mode(), Scan; got != want {
		t.Fatalf("invalid mode: got=%v, want=%v", got, want)
	}

	for i := 0; i < 36; i++ {
		pair, ok, err := ses.OnPair(Pair{DeltaPS: float64(i)})
		if err != nil {
			t.Fatalf("pair %d: could not aggregate: %+v", i, err)
		}
		if !ok {
			t.Fatalf("pair %d: session did not accept pair", i)
		}
		if got, want := pair.Step, i/6; got != want {
			t.Fatalf("pair %d: invalid step: got=%d, want=%d", i, got, want)
		}
	}

	if got, want := ses.Mode(), Idle; got != want {
		t.Fatalf("invalid mode after session: got=%v, want=%v", got, want)
	}

	// one issue per step start plus one re-issue per extra round.
	if got, want := len(iss.cmds), 12; got != want {
		t.Fatalf("invalid number of issued commands: got=%d, want=%d", got, want)
	}
	for i, cmd := range iss.cmds {
		step := i / 2
		if got, want := cmd.Pixel.CSA, uint8(1<<step); got != want {
			t.Fatalf("issue %d: invalid CSA mask: got=0b%06b, want=0b%06b", i, got, want)
		}
		if got, want := cmd.Type, chip.CmdScan; got != want {
			t.Fatalf("issue %d: invalid command type: got=%v, want=%v", i, got, want)
		}
		if got, want := cmd.Channel, chip.ChanBoth; got != want {
			t.Fatalf("issue %d: invalid channel: got=%v, want=%v", i, got, want)
		}
	}

	sets := ses.Sets()
	if got, want := len(sets), 6; got != want {
		t.Fatalf("invalid number of sample sets: got=%d, want=%d", got, want)
	}
	for i, set := range sets {
		if got, want := set.Step, i; got != want {
			t.Fatalf("set %d: invalid step: got=%d, want=%d", i, got, want)
		}
		if got, want := set.Label, fmt.Sprintf("CSA%d", i); got != want {
			t.Fatalf("set %d: invalid label: got=%q, want=%q", i, got, want)
		}
		if got, want := len(set.Pairs), 6; got != want {
			t.Fatalf("set %d: invalid number of pairs: got=%d, want=%d", i, got, want)
		}
		if got, want := set.Mode, Scan; got != want {
			t.Fatalf("set %d: invalid mode: got=%v, want=%v", i, got, want)
		}
	}
}

func TestSessionStop(t *testing.T) {
	var (
		iss issuer
		ses = NewSession(iss.issue)
	)

	err := ses.StartFixed(3, 10, chip.Command{Channel: chip.ChanBoth})
	if err != nil {
		t.Fatalf("could not start session: %+v", err)
	}

	for i := 0; i < 14; i++ {
		if _, ok, err := ses.OnPair(Pair{DeltaPS: float64(i)}); !ok || err != nil {
			t.Fatalf("pair %d: ok=%v, err=%+v", i, ok, err)
		}
	}
	ses.Stop()

	if got, want := ses.Mode(), Idle; got != want {
		t.Fatalf("invalid mode after stop: got=%v, want=%v", got, want)
	}
	if _, ok, _ := ses.OnPair(Pair{}); ok {
		t.Fatalf("stopped session accepted a pair")
	}

	sets := ses.Sets()
	if got, want := len(sets), 1; got != want {
		t.Fatalf("invalid number of sample sets: got=%d, want=%d", got, want)
	}
	if got, want := len(sets[0].Pairs), 14; got != want {
		t.Fatalf("partial data not retained: got=%d pairs, want=%d", got, want)
	}
}

func TestSessionRestart(t *testing.T) {
	var (
		iss issuer
		ses = NewSession(iss.issue)
	)

	if err := ses.StartFixed(1, 2, chip.Command{}); err != nil {
		t.Fatalf("could not start session: %+v", err)
	}
	for i := 0; i < 2; i++ {
		ses.OnPair(Pair{})
	}
	old := ses.Sets()

	if err := ses.StartFixed(1, 1, chip.Command{}); err != nil {
		t.Fatalf("could not restart session: %+v", err)
	}
	ses.OnPair(Pair{})

	if got, want := len(old[0].Pairs), 2; got != want {
		t.Fatalf("restart clobbered previous sample sets: got=%d pairs, want=%d", got, want)
	}
	if got, want := len(ses.Sets()), 1; got != want {
		t.Fatalf("invalid number of sample sets: got=%d, want=%d", got, want)
	}
}

func TestSessionErrors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(ses *Session) error
		err   error
	}{
		{
			name: "already-running",
			setup: func(ses *Session) error {
				if err := ses.StartFixed(1, 1, chip.Command{}); err != nil {
					return err
				}
				return ses.StartScan(1, 1)
			},
			err: errors.New("bench: session already running (mode=fixed)"),
		},
		{
			name: "invalid-rounds",
			setup: func(ses *Session) error {
				return ses.StartFixed(0, 10, chip.Command{})
			},
			err: errors.New("bench: invalid session target (rounds=0, pulses=10)"),
		},
		{
			name: "invalid-pulses",
			setup: func(ses *Session) error {
				return ses.StartScan(3, -1)
			},
			err: errors.New("bench: invalid session target (rounds=3, pulses=-1)"),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var iss issuer
			err := tc.setup(NewSession(iss.issue))
			switch {
			case err == nil && tc.err == nil:
				// ok.
			case err != nil && tc.err != nil:
				if got, want := err.Error(), tc.err.Error(); got != want {
					t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
				}
			case err != nil && tc.err == nil:
				t.Fatalf("unexpected error: %+v", err)
			case err == nil && tc.err != nil:
				t.Fatalf("expected an error: %v", tc.err)
			}
		})
	}
}

func TestSessionIssueFailure(t *testing.T) {
	t.Run("at-start", func(t *testing.T) {
		iss := issuer{failOn: 1, failErr: errors.New("boom")}
		ses := NewSession(iss.issue)

		err := ses.StartFixed(3, 10, chip.Command{})
		if err == nil {
			t.Fatalf("expected an error")
		}
		if got, want := err.Error(), "bench: could not issue command: boom"; got != want {
			t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
		}
		if got, want := ses.Mode(), Idle; got != want {
			t.Fatalf("invalid mode after failed start: got=%v, want=%v", got, want)
		}
	})

	t.Run("at-reissue", func(t *testing.T) {
		iss := issuer{failOn: 2, failErr: errors.New("boom")}
		ses := NewSession(iss.issue)

		if err := ses.StartFixed(3, 2, chip.Command{}); err != nil {
			t.Fatalf("could not start session: %+v", err)
		}
		ses.OnPair(Pair{})
		_, ok, err := ses.OnPair(Pair{})
		if !ok {
			t.Fatalf("session did not accept pair")
		}
		if err == nil {
			t.Fatalf("expected an error")
		}
		if got, want := err.Error(), "bench: could not re-issue command: boom"; got != want {
			t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
		}
	})

	t.Run("at-step", func(t *testing.T) {
		iss := issuer{failOn: 2, failErr: errors.New("boom")}
		ses := NewSession(iss.issue)

		if err := ses.StartScan(1, 1); err != nil {
			t.Fatalf("could not start session: %+v", err)
		}
		_, _, err := ses.OnPair(Pair{})
		if err == nil {
			t.Fatalf("expected an error")
		}
		if got, want := err.Error(), "bench: could not issue step 1 command: boom"; got != want {
			t.Fatalf("invalid error:\ngot= %v\nwant=%v", got, want)
		}
	})
}

func TestCSALabel(t *testing.T) {
	for _, tc := range []struct {
		mask uint8
		want string
	}{
		{mask: 0x00, want: "NONE"},
		{mask: 0x01, want: "CSA0"},
		{mask: 0x08, want: "CSA3"},
		{mask: 0x12, want: "CSA1+CSA4"},
		{mask: 0x3f, want: "ALL"},
		{mask: 0xff, want: "ALL"},
	} {
		t.Run(tc.want, func(t *testing.T) {
			if got := csaLabel(tc.mask); got != tc.want {
				t.Fatalf("invalid label for 0b%06b: got=%q, want=%q", tc.mask, got, tc.want)
			}
		})
	}
}
