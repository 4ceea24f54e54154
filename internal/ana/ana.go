// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ana derives performance figures from TDC acquisitions:
// converter linearity from calibration sweeps and per-channel time
// constants from CSA step scans.
package ana // import "github.com/go-lpc/tdc/internal/ana"
