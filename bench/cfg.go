// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bench

import (
	"time"

	"github.com/go-lpc/tdc/chip"
)

type config struct {
	baud    int
	layout  chip.Layout
	modulus int     // coarse modulus; 0 means the layout natural one
	clkPS   float64 // coarse clock period, in ps

	queue int           // packet queue depth
	batch int           // max packets drained per tick
	tick  time.Duration // consumer tick interval

	sel     string // configuration label (SEL)
	capture string // raw capture output file; "" disables

	conn   Conn       // transport override (tests, replay)
	onPair func(Pair) // tap invoked for every accepted pair
}

func newConfig() config {
	return config{
		baud:   115200,
		layout: chip.LayoutB,
		clkPS:  chip.DefaultClockPeriod,
		queue:  4096,
		batch:  500,
		tick:   50 * time.Millisecond,
	}
}

func (cfg *config) coarseModulus() int {
	if cfg.modulus > 0 {
		return cfg.modulus
	}
	return cfg.layout.CoarseModulus()
}

// Option configures a bench device.
type Option func(*config)

// WithBaud sets the serial line baud rate.
func WithBaud(baud int) Option {
	return func(cfg *config) {
		cfg.baud = baud
	}
}

// WithLayout selects the telemetry layout streamed by the fixture.
func WithLayout(ly chip.Layout) Option {
	return func(cfg *config) {
		cfg.layout = ly
	}
}

// WithCoarseModulus overrides the coarse-counter modulus used for
// wraparound correction. The default is the layout natural modulus.
func WithCoarseModulus(m int) Option {
	return func(cfg *config) {
		cfg.modulus = m
	}
}

// WithClockPeriod sets the coarse clock period, in picoseconds.
func WithClockPeriod(ps float64) Option {
	return func(cfg *config) {
		cfg.clkPS = ps
	}
}

// WithQueueDepth sets the depth of the packet queue between the read
// loop and the tick loop.
func WithQueueDepth(n int) Option {
	return func(cfg *config) {
		cfg.queue = n
	}
}

// WithDrainBatch bounds the number of packets consumed per tick.
func WithDrainBatch(n int) Option {
	return func(cfg *config) {
		cfg.batch = n
	}
}

// WithTick sets the consumer tick interval.
func WithTick(d time.Duration) Option {
	return func(cfg *config) {
		cfg.tick = d
	}
}

// WithLabel sets the configuration label (SEL) recorded with every
// pair. The label is bookkeeping only, never sent to the fixture.
func WithLabel(sel string) Option {
	return func(cfg *config) {
		cfg.sel = sel
	}
}

// WithCapture records every raw telemetry word to the given file.
func WithCapture(fname string) Option {
	return func(cfg *config) {
		cfg.capture = fname
	}
}

// WithConn overrides the transport the device talks through, instead
// of opening a serial port.
func WithConn(conn Conn) Option {
	return func(cfg *config) {
		cfg.conn = conn
	}
}

// WithPairFunc installs a tap invoked from the consumer loop for
// every pair accepted into the session.
func WithPairFunc(fn func(Pair)) Option {
	return func(cfg *config) {
		cfg.onPair = fn
	}
}
