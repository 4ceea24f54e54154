// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rundb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run describes one acquisition run of a TDC test fixture.
type Run struct {
	ID     int64     // run identifier, assigned by AddRun
	Mode   string    // acquisition mode: "fixed", "scan" or "calib"
	Sel    string    // configuration label (SEL)
	Layout string    // telemetry layout name
	Rounds int       // target rounds
	Pulses int       // pairs per round
	Start  time.Time // acquisition start
	Stop   time.Time // acquisition end, zero while running
}

// Stats is the per-sample-set statistics record of a run.
type Stats struct {
	RunID int64
	Step  int
	Label string
	N     int
	Mean  float64
	Var   float64
	Std   float64
	Min   float64
	Max   float64
}

// AddRun inserts a new run and assigns its identifier.
func (db *DB) AddRun(ctx context.Context, run *Run) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := db.db.ExecContext(
		ctx,
		"INSERT INTO runs (mode, sel, layout, rounds, pulses, tbeg) VALUES (?, ?, ?, ?, ?, ?)",
		run.Mode, run.Sel, run.Layout, run.Rounds, run.Pulses, run.Start,
	)
	if err != nil {
		return fmt.Errorf("rundb: could not insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("rundb: could not get run id: %w", err)
	}
	run.ID = id

	return nil
}

// CloseRun marks the run as finished at the given time.
func (db *DB) CloseRun(ctx context.Context, id int64, stop time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		"UPDATE runs SET tend=? WHERE identifier=?",
		stop, id,
	)
	if err != nil {
		return fmt.Errorf("rundb: could not close run %d: %w", id, err)
	}

	return nil
}

// AddStats records the per-sample-set statistics of the run.
func (db *DB) AddStats(ctx context.Context, runID int64, stats []Stats) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for i, st := range stats {
		_, err := db.db.ExecContext(
			ctx,
			"INSERT INTO run_stats (run, step, label, n, mean, variance, stddev, vmin, vmax) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
			runID, st.Step, st.Label, st.N, st.Mean, st.Var, st.Std, st.Min, st.Max,
		)
		if err != nil {
			return fmt.Errorf("rundb: could not insert stats row %d for run %d: %w", i, runID, err)
		}
	}

	return nil
}

// Runs returns the n most recent runs, newest first.
func (db *DB) Runs(ctx context.Context, n int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var runs []Run
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT identifier, mode, sel, layout, rounds, pulses, tbeg, tend FROM runs ORDER BY identifier DESC LIMIT ?",
		n,
	)
	if err != nil {
		return runs, fmt.Errorf("rundb: could not query runs: %w", err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		var (
			run Run
			end sql.NullTime
		)
		err = rows.Scan(
			&run.ID, &run.Mode, &run.Sel, &run.Layout,
			&run.Rounds, &run.Pulses, &run.Start, &end,
		)
		if err != nil {
			return runs, fmt.Errorf("rundb: could not scan row %d for runs: %w", i, err)
		}
		if end.Valid {
			run.Stop = end.Time
		}
		i++

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return runs, fmt.Errorf("rundb: could not scan db for runs: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return runs, fmt.Errorf("rundb: context error while retrieving runs: %w", err)
	}

	return runs, nil
}

// RunStats returns the statistics records of the run, in step order.
func (db *DB) RunStats(ctx context.Context, runID int64) ([]Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var stats []Stats
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT step, label, n, mean, variance, stddev, vmin, vmax FROM run_stats WHERE run=? ORDER BY step",
		runID,
	)
	if err != nil {
		return stats, fmt.Errorf("rundb: could not query stats for run %d: %w", runID, err)
	}
	defer rows.Close()

	i := 0
	for rows.Next() {
		st := Stats{RunID: runID}
		err = rows.Scan(
			&st.Step, &st.Label, &st.N,
			&st.Mean, &st.Var, &st.Std, &st.Min, &st.Max,
		)
		if err != nil {
			return stats, fmt.Errorf("rundb: could not scan row %d for run %d stats: %w", i, runID, err)
		}
		i++

		stats = append(stats, st)
	}

	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("rundb: could not scan db for run %d stats: %w", runID, err)
	}

	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("rundb: context error while retrieving run %d stats: %w", runID, err)
	}

	return stats, nil
}
