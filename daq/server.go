// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq bridges a TDC test fixture onto a tdaq data acquisition
// network. The standard run-control transitions map onto the bench
// device (/init opens the serial port, /start launches the configured
// acquisition, /stop winds it down, /quit releases the port) and every
// measurement pair accepted by the session is streamed on the
// /tdc/pairs end-point.
package daq // import "github.com/go-lpc/tdc/daq"

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-daq/tdaq"

	"github.com/go-lpc/tdc/bench"
	"github.com/go-lpc/tdc/chip"
)

// device is the view of a bench Device the tdaq bridge drives.
type device interface {
	RunFixed(rounds, pulses int, cmd chip.Command) error
	RunScan(rounds, pulses int) error
	Stop()
	Status() bench.Status
	SetLabel(sel string)
	Close() error
}

// Server drives one TDC test fixture from a tdaq network.
//
// Without further configuration, /start runs a SCAN acquisition of one
// round of 100 pulses per CSA step. The custom /fixed, /scan and
// /calib commands select another acquisition for the next /start.
type Server struct {
	port string
	opts []bench.Option

	newDevice func(port string, opts ...bench.Option) (device, error)

	dev device

	acq struct {
		mode   string // "fixed", "scan" or "calib"
		rounds int
		pulses int
		phase  uint8
		csa    uint8
		reset  bool
		full   bool
		sel    string
	}

	out     chan []byte
	running bool
	done    chan error
}

// New returns a tdaq bridge for the fixture behind the named serial
// port. Options are applied to the device when /init opens it.
func New(port string, opts ...bench.Option) *Server {
	srv := &Server{
		port: port,
		opts: opts,
		out:  make(chan []byte, 1024),

		newDevice: func(port string, opts ...bench.Option) (device, error) {
			return bench.NewDevice(port, opts...)
		},
	}
	srv.acq.mode = "scan"
	srv.acq.rounds = 1
	srv.acq.pulses = 100
	return srv
}

// OnConfig handles the /config transition.
func (srv *Server) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

// OnInit handles the /init transition: it opens the fixture.
func (srv *Server) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	if srv.dev != nil {
		_ = srv.dev.Close()
		srv.dev = nil
	}

	opts := srv.opts
	opts = append(opts[:len(opts):len(opts)], bench.WithPairFunc(srv.onPair))
	dev, err := srv.newDevice(srv.port, opts...)
	if err != nil {
		return fmt.Errorf("daq: could not open TDC device %q: %w", srv.port, err)
	}
	srv.dev = dev
	ctx.Msg.Infof("opened TDC device %q", srv.port)
	return nil
}

// OnReset handles the /reset transition: the acquisition is stopped
// and the fixture released.
func (srv *Server) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return srv.teardown()
}

// OnStart handles the /start transition: it launches the configured
// acquisition.
func (srv *Server) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	if srv.dev == nil {
		return fmt.Errorf("daq: device not initialized")
	}
	if srv.running {
		return fmt.Errorf("daq: acquisition still running")
	}
	if srv.acq.sel != "" {
		srv.dev.SetLabel(srv.acq.sel)
	}

	var run func() error
	switch srv.acq.mode {
	case "fixed":
		cmd := chip.Command{
			Type:    chip.CmdScan,
			Channel: chip.ChanBoth,
			Phase:   srv.acq.phase,
			Pixel: chip.PixelCtrl{
				Reset: srv.acq.reset,
				CSA:   srv.acq.csa,
			},
		}
		run = func() error { return srv.dev.RunFixed(srv.acq.rounds, srv.acq.pulses, cmd) }
	case "calib":
		cmd := chip.Command{
			Type:    chip.CmdCalib,
			Channel: chip.ChanBoth,
			Phase:   srv.acq.phase,
		}
		if srv.acq.full {
			cmd.ScanMode = chip.FullScan
		}
		run = func() error { return srv.dev.RunFixed(srv.acq.rounds, srv.acq.pulses, cmd) }
	case "scan":
		run = func() error { return srv.dev.RunScan(srv.acq.rounds, srv.acq.pulses) }
	default:
		return fmt.Errorf("daq: unknown acquisition mode %q", srv.acq.mode)
	}

	srv.done = make(chan error, 1)
	srv.running = true
	go func() { srv.done <- run() }()

	ctx.Msg.Infof("started %s acquisition (rounds=%d, pulses=%d)",
		srv.acq.mode, srv.acq.rounds, srv.acq.pulses,
	)
	return nil
}

// OnStop handles the /stop transition: the acquisition is stopped and
// joined, but the fixture stays open for the next run.
func (srv *Server) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")
	if srv.dev == nil {
		return nil
	}
	srv.dev.Stop()
	err := srv.join()
	if err != nil {
		return fmt.Errorf("daq: could not stop acquisition: %w", err)
	}

	cnt := srv.dev.Status().Counters
	ctx.Msg.Infof("stopped acquisition: words=%d pairs=%d orphans=%d evicted=%d",
		cnt.Words, cnt.Pairs, cnt.Orphans, cnt.Evicted,
	)
	return nil
}

// OnQuit handles the /quit transition: the fixture is released.
func (srv *Server) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	return srv.teardown()
}

// OnFixed handles the custom /fixed command. Its payload selects a
// FIXED acquisition for the next /start:
//
//	u32 rounds
//	u32 pulses
//	u32 phase
//	u32 csa    (6-bit excitation mask)
//	u32 reset  (0 or 1)
//	str sel
func (srv *Server) OnFixed(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	var (
		rounds = int(dec.ReadU32())
		pulses = int(dec.ReadU32())
		phase  = uint8(dec.ReadU32())
		csa    = uint8(dec.ReadU32())
		reset  = dec.ReadU32() != 0
		sel    = dec.ReadStr()
	)
	if err := dec.Err(); err != nil {
		return fmt.Errorf("daq: could not decode /fixed payload: %w", err)
	}

	err := srv.configure("fixed", rounds, pulses, sel)
	if err != nil {
		return err
	}
	srv.acq.phase = phase
	srv.acq.csa = csa
	srv.acq.reset = reset
	ctx.Msg.Infof("configured FIXED acquisition (rounds=%d, pulses=%d, phase=%d, csa=0b%06b, sel=%q)",
		rounds, pulses, phase, csa, sel,
	)
	return nil
}

// OnScan handles the custom /scan command. Its payload selects a SCAN
// acquisition for the next /start:
//
//	u32 rounds
//	u32 pulses
//	str sel
func (srv *Server) OnScan(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	var (
		rounds = int(dec.ReadU32())
		pulses = int(dec.ReadU32())
		sel    = dec.ReadStr()
	)
	if err := dec.Err(); err != nil {
		return fmt.Errorf("daq: could not decode /scan payload: %w", err)
	}

	err := srv.configure("scan", rounds, pulses, sel)
	if err != nil {
		return err
	}
	ctx.Msg.Infof("configured SCAN acquisition (rounds=%d, pulses=%d, sel=%q)",
		rounds, pulses, sel,
	)
	return nil
}

// OnCalib handles the custom /calib command. Its payload selects a
// calibration acquisition for the next /start:
//
//	u32 rounds
//	u32 pulses
//	u32 phase
//	u32 full   (0=single-step, 1=full-scan)
//	str sel
func (srv *Server) OnCalib(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	var (
		rounds = int(dec.ReadU32())
		pulses = int(dec.ReadU32())
		phase  = uint8(dec.ReadU32())
		full   = dec.ReadU32() != 0
		sel    = dec.ReadStr()
	)
	if err := dec.Err(); err != nil {
		return fmt.Errorf("daq: could not decode /calib payload: %w", err)
	}

	err := srv.configure("calib", rounds, pulses, sel)
	if err != nil {
		return err
	}
	srv.acq.phase = phase
	srv.acq.full = full
	ctx.Msg.Infof("configured CALIB acquisition (rounds=%d, pulses=%d, phase=%d, full=%v, sel=%q)",
		rounds, pulses, phase, full, sel,
	)
	return nil
}

// Pairs streams marshaled measurement pairs on the /tdc/pairs
// end-point.
func (srv *Server) Pairs(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case body := <-srv.out:
		dst.Body = body
	}
	return nil
}

func (srv *Server) configure(mode string, rounds, pulses int, sel string) error {
	switch strings.ToLower(mode) {
	case "fixed", "scan", "calib":
		srv.acq.mode = strings.ToLower(mode)
	default:
		return fmt.Errorf("daq: unknown acquisition mode %q", mode)
	}
	if rounds <= 0 || pulses <= 0 {
		return fmt.Errorf("daq: invalid acquisition target (rounds=%d, pulses=%d)", rounds, pulses)
	}
	srv.acq.rounds = rounds
	srv.acq.pulses = pulses
	srv.acq.sel = sel
	return nil
}

// onPair runs on the device consumer loop for every accepted pair.
// Slow or absent downstream subscribers drop pairs instead of stalling
// the acquisition.
func (srv *Server) onPair(p bench.Pair) {
	body, err := MarshalPair(p)
	if err != nil {
		return
	}
	select {
	case srv.out <- body:
	default:
	}
}

func (srv *Server) join() error {
	if !srv.running {
		return nil
	}
	err := <-srv.done
	srv.running = false
	return err
}

func (srv *Server) teardown() error {
	if srv.dev == nil {
		return nil
	}
	if srv.running {
		srv.dev.Stop()
		<-srv.done
		srv.running = false
	}
	err := srv.dev.Close()
	srv.dev = nil
	if err != nil {
		return fmt.Errorf("daq: could not close TDC device: %w", err)
	}
	return nil
}
