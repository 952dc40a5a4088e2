// Package db provides the SQLite medication catalog.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/raphaelgruber/rxrag/internal/metrics"
)

// Config holds catalog connection configuration.
type Config struct {
	Path string
}

// Client wraps the catalog database handle.
type Client struct {
	db      *sql.DB
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewClient opens (creating if needed) the SQLite catalog at cfg.Path.
// mc may be nil.
func NewClient(ctx context.Context, cfg Config, log *slog.Logger, mc *metrics.Collector) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("catalog path required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", cfg.Path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	log.Debug("catalog opened", "path", cfg.Path)
	return &Client{db: sqlDB, cfg: cfg, logger: log, metrics: mc}, nil
}

// Close closes the catalog database.
func (c *Client) Close() error {
	c.logger.Debug("closing catalog", "path", c.cfg.Path)
	return c.db.Close()
}

// DB returns the underlying database handle.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Path returns the catalog file path.
func (c *Client) Path() string {
	return c.cfg.Path
}

// InitSchema creates the catalog tables if they do not exist.
func (c *Client) InitSchema(ctx context.Context) error {
	c.logger.Info("initializing catalog schema")
	if _, err := c.db.ExecContext(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// WipeData deletes all catalog rows while preserving schema.
// Use for testing only.
func (c *Client) WipeData(ctx context.Context) error {
	c.logger.Warn("wiping all catalog data")

	// knowledge rows reference medication rows
	for _, table := range []string{"medication_knowledge", "medication"} {
		if _, err := c.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("delete %s: %w", table, err)
		}
	}
	return nil
}
