// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bench drives the TDC pixel-chip test fixture: it issues
// command words, decodes the telemetry stream, pairs rising and
// falling edges into timing measurements and sequences multi-round,
// multi-step acquisitions.
//
// The engine is split between one producer (the serial read loop,
// feeding decoded packets to a bounded FIFO queue) and one consumer
// (the tick loop, draining bounded batches into the pairing table,
// the sample sets and the acquisition session). Pending table, sample
// sets and session state are only ever touched by the consumer.
package bench // import "github.com/go-lpc/tdc/bench"
