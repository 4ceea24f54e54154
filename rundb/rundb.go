// Copyright 2023 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rundb records TDC test-fixture runs and their summary
// statistics in the bench-test database.
package rundb // import "github.com/go-lpc/tdc/rundb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// DB exposes convenience methods to record and retrieve TDC runs
// from the bench-test database.
type DB struct {
	db   *sql.DB
	name string // name of the bench-test database
}

// Open opens a connection to the bench-test database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("rundb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("rundb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastRunID returns the identifier of the most recent run.
func (db *DB) LastRunID(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var id int64
	rows, err := db.db.QueryContext(
		ctx,
		"SELECT identifier FROM runs ORDER BY identifier DESC LIMIT 1",
	)
	if err != nil {
		return id, fmt.Errorf("rundb: could not query last run id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&id)
		if err != nil {
			return id, fmt.Errorf("rundb: could not get last run id value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return id, fmt.Errorf("rundb: could not scan db for last run id: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return id, fmt.Errorf("rundb: context error while retrieving last run id: %w", err)
	}

	return id, nil
}
