// Package postgres mirrors discovered page elements into a Postgres table.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/element-crawler/internal/crawler"
)

const defaultTable = "page_elements"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for element rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// ElementStore writes one row per discovered element.
type ElementStore struct {
	pool  execCloser
	table string
	runID string
	clock crawler.Clock
}

var _ crawler.ResultSink = (*ElementStore)(nil)

// NewElementStore connects to Postgres using cfg. Rows are tagged with runID.
func NewElementStore(ctx context.Context, cfg Config, runID string, clock crawler.Clock) (*ElementStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewElementStoreWithPool(pool, table, runID, clock)
}

// NewElementStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewElementStoreWithPool(pool execCloser, table, runID string, clock crawler.Clock) (*ElementStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &ElementStore{pool: pool, table: table, runID: runID, clock: clock}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *ElementStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Write inserts every element of result in one transaction, so a page is
// mirrored completely or not at all.
func (s *ElementStore) Write(ctx context.Context, result crawler.CaptureResult) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("element store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	page_url,
	image_path,
	element_type,
	element_text,
	x,
	y,
	width,
	height,
	captured_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.table)

	if len(result.Elements) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin element tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	capturedAt := s.clock.Now()
	for _, el := range result.Elements {
		args := []any{
			s.runID,
			result.URL,
			result.ImagePath,
			el.Type.WireName(),
			el.Text,
			el.LeftTop.X,
			el.LeftTop.Y,
			el.Size.W,
			el.Size.H,
			capturedAt,
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert element %s: %w", el.Signature(), err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit element tx: %w", err)
	}
	return nil
}
