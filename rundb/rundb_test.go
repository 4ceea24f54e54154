// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rundb

import (
	"context"
	"database/sql/driver"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-lpc/tdc/internal/fakedb"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()
}

func TestLastRunID(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{"identifier"},
		Values: [][]driver.Value{
			{int64(42)},
		},
	}, func(ctx context.Context) error {
		id, err := db.LastRunID(ctx)
		if err != nil {
			t.Fatalf("could not retrieve last run id: %+v", err)
		}

		if got, want := id, int64(42); got != want {
			t.Fatalf("invalid last run id: got=%d, want=%d", got, want)
		}
		return nil
	})
}

func TestAddRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	start := time.Date(2023, 6, 2, 10, 30, 0, 0, time.UTC)

	_ = fakedb.Run(context.Background(), fakedb.Rows{}, func(ctx context.Context) error {
		run := Run{
			Mode:   "fixed",
			Sel:    "101",
			Layout: "B",
			Rounds: 3,
			Pulses: 10,
			Start:  start,
		}
		err := db.AddRun(ctx, &run)
		if err != nil {
			t.Fatalf("could not add run: %+v", err)
		}
		if got, want := run.ID, int64(1); got != want {
			t.Fatalf("invalid run id: got=%d, want=%d", got, want)
		}

		execs := fakedb.Execs()
		if got, want := len(execs), 1; got != want {
			t.Fatalf("invalid number of statements: got=%d, want=%d", got, want)
		}
		if !strings.HasPrefix(execs[0].Query, "INSERT INTO runs") {
			t.Fatalf("invalid statement: %q", execs[0].Query)
		}
		want := []driver.Value{"fixed", "101", "B", int64(3), int64(10), start}
		if got := execs[0].Args; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid statement args:\ngot= %#v\nwant=%#v", got, want)
		}
		return nil
	})
}

func TestCloseRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	stop := time.Date(2023, 6, 2, 10, 42, 0, 0, time.UTC)

	_ = fakedb.Run(context.Background(), fakedb.Rows{}, func(ctx context.Context) error {
		err := db.CloseRun(ctx, 7, stop)
		if err != nil {
			t.Fatalf("could not close run: %+v", err)
		}

		execs := fakedb.Execs()
		if got, want := len(execs), 1; got != want {
			t.Fatalf("invalid number of statements: got=%d, want=%d", got, want)
		}
		if !strings.HasPrefix(execs[0].Query, "UPDATE runs SET tend") {
			t.Fatalf("invalid statement: %q", execs[0].Query)
		}
		want := []driver.Value{stop, int64(7)}
		if got := execs[0].Args; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid statement args:\ngot= %#v\nwant=%#v", got, want)
		}
		return nil
	})
}

func TestAddStats(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	stats := []Stats{
		{Step: 0, Label: "CSA0", N: 30, Mean: 34634, Var: 2, Std: 1.4142, Min: 34630, Max: 34640},
		{Step: 1, Label: "CSA1", N: 30, Mean: 20780, Var: 1, Std: 1, Min: 20778, Max: 20782},
	}

	_ = fakedb.Run(context.Background(), fakedb.Rows{}, func(ctx context.Context) error {
		err := db.AddStats(ctx, 7, stats)
		if err != nil {
			t.Fatalf("could not add stats: %+v", err)
		}

		execs := fakedb.Execs()
		if got, want := len(execs), 2; got != want {
			t.Fatalf("invalid number of statements: got=%d, want=%d", got, want)
		}
		for i, exec := range execs {
			if !strings.HasPrefix(exec.Query, "INSERT INTO run_stats") {
				t.Fatalf("statement %d: invalid query: %q", i, exec.Query)
			}
			st := stats[i]
			want := []driver.Value{
				int64(7), int64(st.Step), st.Label, int64(st.N),
				st.Mean, st.Var, st.Std, st.Min, st.Max,
			}
			if got := exec.Args; !reflect.DeepEqual(got, want) {
				t.Fatalf("statement %d: invalid args:\ngot= %#v\nwant=%#v", i, got, want)
			}
		}
		return nil
	})
}

func TestRuns(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	var (
		tbeg = time.Date(2023, 6, 2, 10, 30, 0, 0, time.UTC)
		tend = time.Date(2023, 6, 2, 10, 42, 0, 0, time.UTC)
	)

	want := []Run{
		{ID: 2, Mode: "scan", Sel: "110", Layout: "B", Rounds: 2, Pulses: 5, Start: tend},
		{ID: 1, Mode: "fixed", Sel: "101", Layout: "A", Rounds: 3, Pulses: 10, Start: tbeg, Stop: tend},
	}

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{
			"identifier", "mode", "sel", "layout",
			"rounds", "pulses", "tbeg", "tend",
		},
		Values: [][]driver.Value{
			{int64(2), "scan", "110", "B", int64(2), int64(5), tend, nil},
			{int64(1), "fixed", "101", "A", int64(3), int64(10), tbeg, tend},
		},
	}, func(ctx context.Context) error {
		runs, err := db.Runs(ctx, 2)
		if err != nil {
			t.Fatalf("could not retrieve runs: %+v", err)
		}

		if got, want := runs, want; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid runs:\ngot= %#v\nwant=%#v", got, want)
		}
		return nil
	})
}

func TestRunStats(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	want := []Stats{
		{RunID: 7, Step: 0, Label: "CSA0", N: 10, Mean: 34634, Var: 2, Std: 1.4142, Min: 34630, Max: 34640},
		{RunID: 7, Step: 1, Label: "CSA1", N: 10, Mean: 20780, Var: 1, Std: 1, Min: 20778, Max: 20782},
	}

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{
			"step", "label", "n", "mean",
			"variance", "stddev", "vmin", "vmax",
		},
		Values: [][]driver.Value{
			{int64(0), "CSA0", int64(10), 34634.0, 2.0, 1.4142, 34630.0, 34640.0},
			{int64(1), "CSA1", int64(10), 20780.0, 1.0, 1.0, 20778.0, 20782.0},
		},
	}, func(ctx context.Context) error {
		stats, err := db.RunStats(ctx, 7)
		if err != nil {
			t.Fatalf("could not retrieve run stats: %+v", err)
		}

		if got, want := stats, want; !reflect.DeepEqual(got, want) {
			t.Fatalf("invalid run stats:\ngot= %#v\nwant=%#v", got, want)
		}
		return nil
	})
}
