// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command tdc-sql inspects the TDC bench-test run database from an
// interactive shell:
//
//	tdc-sql> runs 5
//	tdc-sql> stats 42
//	tdc-sql> last
package main // import "github.com/go-lpc/tdc/cmd/tdc-sql"

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/go-lpc/tdc/rundb"
)

const histFile = ".tdc-sql-history"

func main() {
	log.SetPrefix("tdc-sql: ")
	log.SetFlags(0)

	dbname := flag.String("db", "tdcbench", "bench-test database to inspect")

	flag.Parse()

	db, err := rundb.Open(*dbname)
	if err != nil {
		log.Fatalf("could not open run database: %+v", err)
	}
	defer db.Close()

	repl(db)
}

var verbs = []string{"help", "last", "runs", "stats", "quit", "exit"}

func repl(db *rundb.DB) {
	shell := liner.NewLiner()
	defer shell.Close()

	shell.SetCtrlCAborts(true)
	shell.SetCompleter(func(line string) (c []string) {
		for _, verb := range verbs {
			if strings.HasPrefix(verb, strings.ToLower(line)) {
				c = append(c, verb)
			}
		}
		return c
	})

	hist := histPath()
	if f, err := os.Open(hist); err == nil {
		_, _ = shell.ReadHistory(f)
		f.Close()
	}

	fmt.Println(`interactive mode. type "help" for commands, Ctrl-D to quit.`)
loop:
	for {
		input, err := shell.Prompt("tdc-sql> ")
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			fmt.Println()
			break
		}
		if err != nil {
			log.Printf("could not read line: %+v", err)
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		shell.AppendHistory(input)

		tokens := strings.Fields(input)
		switch tokens[0] {
		case "help":
			usage()
		case "quit", "exit":
			break loop
		case "last":
			err = cmdLast(db)
		case "runs":
			err = cmdRuns(db, tokens[1:])
		case "stats":
			err = cmdStats(db, tokens[1:])
		default:
			fmt.Printf("unknown command %q\n", tokens[0])
			continue
		}
		if err != nil {
			fmt.Printf("error: %+v\n", err)
		}
	}

	if f, err := os.Create(hist); err == nil {
		_, _ = shell.WriteHistory(f)
		f.Close()
	}
}

func histPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return histFile
	}
	return filepath.Join(home, histFile)
}

func usage() {
	fmt.Print(`commands:
  runs [N]      list the N most recent runs (default: 10)
  stats RUN-ID  show the per-sample-set statistics of a run
  last          show the most recent run identifier
  quit          exit
`)
}

func cmdLast(db *rundb.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := db.LastRunID(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("run #%d\n", id)
	return nil
}

func cmdRuns(db *rundb.DB, args []string) error {
	n := 10
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid run count %q: %w", args[0], err)
		}
		n = v
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	runs, err := db.Runs(ctx, n)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs")
		return nil
	}

	fmt.Printf("%-6s %-6s %-5s %-6s %6s %6s  %-19s  %-19s\n",
		"run", "mode", "sel", "layout", "rounds", "pulses", "start", "stop",
	)
	for _, run := range runs {
		stop := "-"
		if !run.Stop.IsZero() {
			stop = run.Stop.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-6d %-6s %-5s %-6s %6d %6d  %-19s  %-19s\n",
			run.ID, run.Mode, run.Sel, run.Layout, run.Rounds, run.Pulses,
			run.Start.Format("2006-01-02 15:04:05"), stop,
		)
	}
	return nil
}

func cmdStats(db *rundb.DB, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: stats RUN-ID")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q: %w", args[0], err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stats, err := db.RunStats(ctx, id)
	if err != nil {
		return err
	}
	if len(stats) == 0 {
		fmt.Printf("no stats for run #%d\n", id)
		return nil
	}

	fmt.Printf("%-4s %-12s %8s %14s %12s %14s %14s\n",
		"step", "label", "n", "mean [ps]", "std [ps]", "min [ps]", "max [ps]",
	)
	for _, st := range stats {
		fmt.Printf("%-4d %-12s %8d %14.2f %12.2f %14.2f %14.2f\n",
			st.Step, st.Label, st.N, st.Mean, st.Std, st.Min, st.Max,
		)
	}
	return nil
}
