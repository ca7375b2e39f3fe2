// Package db owns the embedded DuckDB engine used to query the statistics
// table in place.
package db

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"

	_ "github.com/marcboeker/go-duckdb"
)

var (
	instance *sqlx.DB
	once     sync.Once
	initErr  error
)

// Config holds database configuration. An empty DataDir keeps the database
// in memory, which is all the dashboard needs since every query reads the
// source files directly.
type Config struct {
	DataDir string
	DBName  string
}

// Open opens a new DuckDB connection pool.
func Open(cfg Config) (*sqlx.DB, error) {
	dsn := ""
	if cfg.DataDir != "" {
		duckdbDir := filepath.Join(cfg.DataDir, "duckdb")
		if err := os.MkdirAll(duckdbDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create duckdb directory: %w", err)
		}
		dsn = filepath.Join(duckdbDir, cfg.DBName+".duckdb")
	}

	conn, err := sqlx.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("opening duckdb: %w", err)
	}
	return conn, nil
}

// Get returns the process-wide DuckDB connection, opening it on first use.
func Get(cfg Config) (*sqlx.DB, error) {
	once.Do(func() {
		instance, initErr = Open(cfg)
	})
	return instance, initErr
}

// Close closes the process-wide connection.
func Close() error {
	if instance != nil {
		return instance.Close()
	}
	return nil
}
