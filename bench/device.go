// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-lpc/tdc/chip"
)

// Device drives one TDC test fixture over its serial link.
//
// A device runs one acquisition at a time: RunFixed, RunScan and
// RunCalib block until the session completes, is stopped or fails.
// While running, a read loop feeds decoded packets into a bounded
// FIFO queue and a tick loop drains them - in bounded batches -
// through the pairer into the session. Stop may be called from any
// goroutine; both loops observe it at their next checkpoint.
type Device struct {
	msg *log.Logger
	cfg config

	conn Conn
	dec  *chip.FrameDecoder

	pr  *Pairer
	ses *Session

	queue chan chip.Packet
	stopq chan int
	idle  chan int

	cap       *chip.CaptureWriter
	capf      *os.File
	capBroken bool

	running bool

	stat struct {
		mode    atomic.Int32
		step    atomic.Int32
		round   atomic.Int32
		pending atomic.Int32
		words   atomic.Uint64
		pairs   atomic.Uint64
		orphans atomic.Uint64
		evicted atomic.Uint64
		echoes  atomic.Uint64
		infos   atomic.Uint64
	}
}

// NewDevice opens the fixture behind the named serial port. Options
// select the telemetry layout, timing constants and queue geometry;
// WithConn substitutes the transport altogether (replay, tests).
func NewDevice(name string, opts ...Option) (*Device, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	conn := cfg.conn
	if conn == nil {
		c, err := openSerial(name, cfg.baud)
		if err != nil {
			return nil, err
		}
		conn = c
	}

	dev := &Device{
		msg:  log.New(os.Stdout, "tdc: ", 0),
		cfg:  cfg,
		conn: conn,
		dec:  chip.NewFrameDecoder(),
	}
	dev.pr = NewPairer(cfg.coarseModulus(), cfg.clkPS)
	dev.ses = NewSession(dev.issue)
	dev.ses.SetLabel(cfg.sel)

	if cfg.capture != "" {
		f, err := os.Create(cfg.capture)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("bench: could not create capture file: %w", err)
		}
		cw, err := chip.NewCaptureWriter(f, chip.CaptureHeader{
			Layout: cfg.layout,
			Clock:  clockHz(cfg.clkPS),
		})
		if err != nil {
			_ = f.Close()
			_ = conn.Close()
			return nil, err
		}
		dev.cap = cw
		dev.capf = f
	}

	return dev, nil
}

func clockHz(clkPS float64) uint32 {
	if clkPS <= 0 {
		return chip.DefaultClock
	}
	return uint32(1e12/clkPS + 0.5)
}

// issue writes one command word to the fixture. It runs on the
// caller's goroutine at session start and on the consumer loop for
// round re-issues.
func (dev *Device) issue(cmd chip.Command) error {
	dev.msg.Printf("issuing %v", cmd)
	if _, err := dev.conn.Write(cmd.Bytes()); err != nil {
		return fmt.Errorf("bench: could not write command word: %w", err)
	}
	return nil
}

// RunFixed runs a FIXED acquisition to completion: cmd latched and
// re-issued for rounds rounds of pulses pairs each.
func (dev *Device) RunFixed(rounds, pulses int, cmd chip.Command) error {
	return dev.run(func() error {
		return dev.ses.StartFixed(rounds, pulses, cmd)
	})
}

// RunScan runs a SCAN acquisition to completion: CSA steps 0 to 5,
// each for rounds rounds of pulses pairs.
func (dev *Device) RunScan(rounds, pulses int) error {
	return dev.run(func() error {
		return dev.ses.StartScan(rounds, pulses)
	})
}

// RunCalib runs a calibration acquisition: a calibration command with
// the given phase and scan mode, sequenced like a FIXED session.
func (dev *Device) RunCalib(rounds, pulses int, phase uint8, mode chip.ScanMode) error {
	cmd := chip.Command{
		Type:     chip.CmdCalib,
		ScanMode: mode,
		Channel:  chip.ChanBoth,
		Phase:    phase,
	}
	return dev.RunFixed(rounds, pulses, cmd)
}

func (dev *Device) run(start func() error) error {
	if dev.running {
		return fmt.Errorf("bench: device already running")
	}
	dev.running = true
	defer func() { dev.running = false }()

	dev.pr.Reset()
	dev.queue = make(chan chip.Packet, dev.cfg.queue)
	dev.stopq = make(chan int, 1)
	dev.idle = make(chan int, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error { return dev.readLoop(gctx) })

	if err := start(); err != nil {
		cancel()
		_ = grp.Wait()
		return err
	}
	dev.syncStatus()
	grp.Go(func() error { return dev.tickLoop(gctx) })

	<-dev.idle
	cancel()
	err := grp.Wait()
	dev.syncStatus()
	return err
}

// readLoop is the producer: it reads bytes off the transport, frames
// them into words and queues the decoded packets. The transport read
// is the only blocking operation; the loop checks for cancellation
// between reads.
func (dev *Device) readLoop(ctx context.Context) error {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := dev.conn.Read(buf)
		if n > 0 {
			_, _ = dev.dec.Write(buf[:n])
			for {
				w, ok := dev.dec.Next()
				if !ok {
					break
				}
				dev.record(w)
				dev.stat.words.Add(1)
				select {
				case dev.queue <- dev.cfg.layout.Decode(w):
				case <-ctx.Done():
					return nil
				}
			}
		}
		switch {
		case err == nil:
			// timeout or data: go around.
		case errors.Is(err, io.EOF):
			// end of stream: whatever is queued may still
			// complete the session.
			dev.msg.Printf("transport closed")
			return nil
		default:
			return fmt.Errorf("bench: could not read from fixture: %w", err)
		}
	}
}

// record tees the raw word into the capture file, when recording.
func (dev *Device) record(w chip.Word) {
	if dev.cap == nil || dev.capBroken {
		return
	}
	if err := dev.cap.Write(w); err != nil {
		dev.msg.Printf("could not record word: %+v", err)
		dev.capBroken = true
	}
}

// tickLoop is the consumer: on every tick it drains a bounded batch
// of packets through the pairer and the session, and exits once the
// session reaches IDLE.
func (dev *Device) tickLoop(ctx context.Context) error {
	tick := time.NewTicker(dev.cfg.tick)
	defer tick.Stop()

	defer func() {
		select {
		case dev.idle <- 1:
		default:
		}
	}()

	for {
		select {
		case <-ctx.Done():
			dev.ses.Stop()
			dev.syncStatus()
			return nil
		case <-dev.stopq:
			dev.ses.Stop()
			dev.syncStatus()
			dev.msg.Printf("session stopped")
			return nil
		case <-tick.C:
			active := dev.ses.Mode() != Idle
			_, err := dev.Drain(dev.cfg.batch)
			dev.syncStatus()
			if err != nil {
				dev.ses.Stop()
				dev.syncStatus()
				return err
			}
			if active && dev.ses.Mode() == Idle {
				dev.msg.Printf("session complete")
				return nil
			}
		}
	}
}

// Drain consumes up to max queued packets through the pairer and the
// session, returning the number of packets processed. It is the poll
// operation the tick loop runs; harnesses may drive a device with it
// directly, but never concurrently with a running acquisition.
func (dev *Device) Drain(max int) (int, error) {
	n := 0
	for n < max {
		select {
		case pkt := <-dev.queue:
			n++
			if err := dev.process(pkt); err != nil {
				return n, err
			}
		default:
			return n, nil
		}
	}
	return n, nil
}

func (dev *Device) process(pkt chip.Packet) error {
	pair, ok := dev.pr.Ingest(pkt)
	if !ok {
		return nil
	}
	pair, accepted, err := dev.ses.OnPair(pair)
	if accepted && dev.cfg.onPair != nil {
		dev.cfg.onPair(pair)
	}
	return err
}

// Stop requests the running session to stop. Both loops observe the
// request at their next checkpoint; aggregated data is retained.
func (dev *Device) Stop() {
	select {
	case dev.stopq <- 1:
	default:
	}
}

// Status is a point-in-time view of a device, safe to call from any
// goroutine while an acquisition runs.
type Status struct {
	Mode     Mode
	Step     int
	Round    int
	Pending  int
	Counters Counters
}

// Status returns the current acquisition status.
func (dev *Device) Status() Status {
	return Status{
		Mode:    Mode(dev.stat.mode.Load()),
		Step:    int(dev.stat.step.Load()),
		Round:   int(dev.stat.round.Load()),
		Pending: int(dev.stat.pending.Load()),
		Counters: Counters{
			Words:   dev.stat.words.Load(),
			Pairs:   dev.stat.pairs.Load(),
			Orphans: dev.stat.orphans.Load(),
			Evicted: dev.stat.evicted.Load(),
			Echoes:  dev.stat.echoes.Load(),
			Infos:   dev.stat.infos.Load(),
		},
	}
}

func (dev *Device) syncStatus() {
	cnt := dev.pr.Counters()
	dev.stat.mode.Store(int32(dev.ses.Mode()))
	dev.stat.step.Store(int32(dev.ses.Step()))
	dev.stat.round.Store(int32(dev.ses.Round()))
	dev.stat.pending.Store(int32(dev.pr.Pending()))
	dev.stat.pairs.Store(cnt.Pairs)
	dev.stat.orphans.Store(cnt.Orphans)
	dev.stat.evicted.Store(cnt.Evicted)
	dev.stat.echoes.Store(cnt.Echoes)
	dev.stat.infos.Store(cnt.Infos)
}

// Sets returns the sample sets of the last session. Only valid once
// the acquisition returned.
func (dev *Device) Sets() []*SampleSet { return dev.ses.Sets() }

// Counters returns the pairing counters of the last session. Only
// valid once the acquisition returned.
func (dev *Device) Counters() Counters {
	cnt := dev.pr.Counters()
	cnt.Words = dev.stat.words.Load()
	return cnt
}

// Label returns the configuration label (SEL) of the device.
func (dev *Device) Label() string { return dev.ses.Label() }

// SetLabel sets the configuration label (SEL) stamped on subsequent
// sessions. It must not be called while an acquisition runs.
func (dev *Device) SetLabel(sel string) { dev.ses.SetLabel(sel) }

// Close releases the transport and the capture file, if any. Close
// must not be called while an acquisition runs.
func (dev *Device) Close() error {
	var first error
	if dev.capf != nil {
		if err := dev.capf.Close(); err != nil {
			first = fmt.Errorf("bench: could not close capture file: %w", err)
		}
		dev.capf = nil
		dev.cap = nil
	}
	if err := dev.conn.Close(); err != nil && first == nil {
		first = fmt.Errorf("bench: could not close transport: %w", err)
	}
	return first
}
