// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"fmt"
	"strings"

	"github.com/go-lpc/tdc/chip"
)

// Mode is the acquisition state of a session.
type Mode uint8

const (
	Idle Mode = iota
	Fixed
	Scan
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case Fixed:
		return "fixed"
	case Scan:
		return "scan"
	}
	return "???"
}

// SampleSet accumulates the pairs collected for one (mode, step)
// acquisition. Append-only while the session runs; reset at session
// start.
type SampleSet struct {
	Mode  Mode
	Step  int
	Label string // excitation label
	Pairs []Pair
}

// Deltas returns the delta_ps values of the set, in collection order.
func (set *SampleSet) Deltas() []float64 {
	xs := make([]float64, len(set.Pairs))
	for i, p := range set.Pairs {
		xs[i] = p.DeltaPS
	}
	return xs
}

// Summary returns the summary statistics of the set. It reports false
// for an empty set.
func (set *SampleSet) Summary() (Summary, bool) {
	return Summarize(set.Deltas())
}

// Session sequences rounds and steps of an acquisition: it issues a
// latched command, counts accepted pairs and re-issues the command
// for each new round, stepping through the six CSA excitations in
// SCAN mode. Rounds and steps advance on observed pairs, not elapsed
// time, so the session self-paces against the fixture throughput.
//
// Session is not safe for concurrent use; in the device it is owned
// by the consumer loop.
type Session struct {
	issue func(chip.Command) error

	mode   Mode
	rounds int // target rounds
	pulses int // pairs per round
	round  int // completed rounds in the current step
	count  int // pairs in the current round
	step   int // current SCAN step

	cmd  chip.Command // latched command, re-issued per round
	sel  string       // configuration label (SEL)
	sets []*SampleSet
	cur  *SampleSet
}

// NewSession returns a session issuing commands through the given
// function.
func NewSession(issue func(chip.Command) error) *Session {
	return &Session{issue: issue}
}

// SetLabel sets the configuration label (SEL) stamped on every pair
// accepted by the session.
func (s *Session) SetLabel(sel string) { s.sel = sel }

// Label returns the configuration label.
func (s *Session) Label() string { return s.sel }

// Mode returns the current acquisition mode.
func (s *Session) Mode() Mode { return s.mode }

// Step returns the current SCAN step.
func (s *Session) Step() int { return s.step }

// Round returns the number of completed rounds in the current step.
func (s *Session) Round() int { return s.round }

// Sets returns the sample sets collected since the last session
// start. Data is retained when the session stops or completes.
func (s *Session) Sets() []*SampleSet { return s.sets }

// StartFixed starts a FIXED acquisition: cmd is issued once, then
// re-issued after every pulses accepted pairs, for rounds rounds.
func (s *Session) StartFixed(rounds, pulses int, cmd chip.Command) error {
	if err := s.start(rounds, pulses); err != nil {
		return err
	}
	s.mode = Fixed
	s.cmd = cmd
	s.cur = &SampleSet{Mode: Fixed, Label: csaLabel(cmd.Pixel.CSA)}
	s.sets = append(s.sets, s.cur)

	if err := s.issue(cmd); err != nil {
		s.mode = Idle
		return fmt.Errorf("bench: could not issue command: %w", err)
	}
	return nil
}

// StartScan starts a SCAN acquisition: steps 0 to 5 in order, each
// collecting rounds*pulses pairs with a single-CSA both-edges
// stimulus.
func (s *Session) StartScan(rounds, pulses int) error {
	if err := s.start(rounds, pulses); err != nil {
		return err
	}
	s.mode = Scan
	if err := s.startStep(0); err != nil {
		s.mode = Idle
		return err
	}
	return nil
}

func (s *Session) start(rounds, pulses int) error {
	if s.mode != Idle {
		return fmt.Errorf("bench: session already running (mode=%v)", s.mode)
	}
	if rounds <= 0 || pulses <= 0 {
		return fmt.Errorf("bench: invalid session target (rounds=%d, pulses=%d)", rounds, pulses)
	}
	s.rounds = rounds
	s.pulses = pulses
	s.round = 0
	s.count = 0
	s.step = 0
	s.sets = nil
	s.cur = nil
	return nil
}

func (s *Session) startStep(step int) error {
	s.step = step
	s.cmd = stepCommand(step)
	s.cur = &SampleSet{Mode: Scan, Step: step, Label: csaLabel(1 << step)}
	s.sets = append(s.sets, s.cur)
	if err := s.issue(s.cmd); err != nil {
		return fmt.Errorf("bench: could not issue step %d command: %w", step, err)
	}
	return nil
}

// stepCommand builds the stimulus for one SCAN step: a single-bit CSA
// excitation, both edge channels.
func stepCommand(step int) chip.Command {
	return chip.Command{
		Type:    chip.CmdScan,
		Channel: chip.ChanBoth,
		Pixel:   chip.PixelCtrl{CSA: 1 << step},
	}
}

// OnPair offers an accepted pair to the session. It returns the pair
// stamped with the session labels and step, and whether the session
// accepted it (an idle session accepts nothing). Command re-issues
// happen after the pair is aggregated.
func (s *Session) OnPair(p Pair) (Pair, bool, error) {
	if s.mode == Idle {
		return p, false, nil
	}

	p.Sel = s.sel
	p.Step = s.cur.Step
	p.Label = s.cur.Label
	s.cur.Pairs = append(s.cur.Pairs, p)

	s.count++
	if s.count < s.pulses {
		return p, true, nil
	}
	s.count = 0
	s.round++
	if s.round < s.rounds {
		if err := s.issue(s.cmd); err != nil {
			return p, true, fmt.Errorf("bench: could not re-issue command: %w", err)
		}
		return p, true, nil
	}

	switch s.mode {
	case Fixed:
		s.mode = Idle
	case Scan:
		if s.step++; s.step < chip.NumCSA {
			s.round = 0
			if err := s.startStep(s.step); err != nil {
				return p, true, err
			}
		} else {
			s.mode = Idle
		}
	}
	return p, true, nil
}

// Stop aborts the session: any state goes back to IDLE, discarding
// in-flight round/step progress. Already aggregated sample sets are
// retained.
func (s *Session) Stop() {
	s.mode = Idle
}

// csaLabel renders a CSA excitation mask as a label: "CSA3" for a
// single channel, "CSA1+CSA4" for several, "ALL" and "NONE" for the
// extremes.
func csaLabel(mask uint8) string {
	mask &= 1<<chip.NumCSA - 1
	switch mask {
	case 0:
		return "NONE"
	case 1<<chip.NumCSA - 1:
		return "ALL"
	}
	var names []string
	for i := 0; i < chip.NumCSA; i++ {
		if mask&(1<<i) != 0 {
			names = append(names, fmt.Sprintf("CSA%d", i))
		}
	}
	return strings.Join(names, "+")
}
