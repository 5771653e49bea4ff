// Shinchaku - Anime & Manga Release Tracking and Aggregation
// Copyright 2026 R. Ayatori
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/ayatori/shinchaku

// Package database is the DuckDB-backed storage engine: works, releases, the
// per-source fetch cursors, and run history. All multi-statement mutations run
// in transactions; the UNIQUE constraint on releases is the system's sole
// duplicate gate under concurrent writers.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/ayatori/shinchaku/internal/config"
	"github.com/ayatori/shinchaku/internal/logging"
	"github.com/ayatori/shinchaku/internal/metrics"
)

// DB wraps the DuckDB connection pool and provides the data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// UnavailableError marks storage as unreachable: connection failures, pool
// exhaustion, failed transaction begins. It is the only error class that
// aborts an entire ingestion run.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("storage unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func unavailable(err error) error {
	return &UnavailableError{Err: err}
}

// IsUnavailable reports whether err means storage is down.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// New opens the database, configures the pool, and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists so a fresh deployment does not fail
	// with "No such file or directory".
	if dbDir := filepath.Dir(cfg.Path); dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	// Disable auto-install/auto-load of extensions to prevent hangs in
	// restricted network environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to open database: %w", err))
	}

	db := &DB{conn: conn, cfg: cfg}
	db.configureConnectionPool()

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Msg("database opened")
	return db, nil
}

// configureConnectionPool bounds the shared pool. The pool is the single
// resource shared across collectors; its size is fixed here at startup.
func (db *DB) configureConnectionPool() {
	maxOpen := db.cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
		if maxOpen < 4 {
			maxOpen = 4
		}
	}
	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(maxOpen / 2)
	db.conn.SetConnMaxLifetime(time.Hour)
}

// Close closes the underlying pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection; a failure is an UnavailableError.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return unavailable(err)
	}
	return nil
}

// Conn exposes the pool for packages that need direct access (tests).
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// begin starts a transaction, classifying failures as unavailability.
func (db *DB) begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable(fmt.Errorf("begin transaction: %w", err))
	}
	return tx, nil
}

// instrument returns a completion func recording query duration and errors
// for one logical operation.
func instrument(operation, table string) func(error) {
	start := time.Now()
	return func(err error) {
		metrics.DBQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.DBQueryErrors.WithLabelValues(operation, table).Inc()
		}
	}
}

func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Warn().Err(err).Msg("failed to close database connection")
	}
}

// rollbackQuietly is the deferred rollback for all transactional paths; after
// a successful commit it is a no-op error we ignore.
func rollbackQuietly(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logging.Warn().Err(err).Msg("transaction rollback failed")
	}
}
