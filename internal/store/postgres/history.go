// Package postgres provides Postgres-backed snapshot history persistence.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lunchbot/menuwatch/internal/menu"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// HistoryConfig controls the Postgres connection pool used for snapshot rows.
type HistoryConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// HistoryStore archives one snapshot per day into Postgres.
type HistoryStore struct {
	pool  execQuerier
	table string
}

// NewHistoryStore creates a Postgres-backed HistoryStore using the provided config.
func NewHistoryStore(ctx context.Context, cfg HistoryConfig) (*HistoryStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "menu_snapshots"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
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
	return &HistoryStore{
		pool:  pool,
		table: table,
	}, nil
}

// NewHistoryStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewHistoryStoreWithPool(pool execQuerier, table string) (*HistoryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "menu_snapshots"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &HistoryStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *HistoryStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Archive upserts the snapshot row for its fetch day. A later snapshot for
// the same day replaces the earlier one. It assumes a table schema like:
// CREATE TABLE menu_snapshots (
//
//	id UUID NOT NULL,
//	day TEXT PRIMARY KEY,
//	restaurant TEXT NOT NULL DEFAULT '',
//	location TEXT NOT NULL DEFAULT '',
//	url TEXT NOT NULL DEFAULT '',
//	display_date TEXT NOT NULL DEFAULT '',
//	items JSONB NOT NULL,
//	fetched_at TIMESTAMPTZ NOT NULL,
//	source_strategy TEXT NOT NULL
//
// );
func (s *HistoryStore) Archive(ctx context.Context, snap menu.Snapshot) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("history store is not configured")
	}
	if snap.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}
	if snap.FetchedAt.IsZero() {
		return fmt.Errorf("snapshot fetched_at is required")
	}
	itemsJSON, err := json.Marshal(snap.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}
	// The snapshot is stamped in the restaurant's timezone, so its date is
	// the menu day.
	day := snap.FetchedAt.Format(time.DateOnly)
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	day,
	restaurant,
	location,
	url,
	display_date,
	items,
	fetched_at,
	source_strategy
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (day) DO UPDATE SET
	id = EXCLUDED.id,
	restaurant = EXCLUDED.restaurant,
	location = EXCLUDED.location,
	url = EXCLUDED.url,
	display_date = EXCLUDED.display_date,
	items = EXCLUDED.items,
	fetched_at = EXCLUDED.fetched_at,
	source_strategy = EXCLUDED.source_strategy`, s.table)

	args := []any{
		snap.ID,
		day,
		snap.Restaurant,
		snap.Location,
		snap.URL,
		snap.DisplayDate,
		itemsJSON,
		snap.FetchedAt,
		string(snap.SourceStrategy),
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ByDate returns the archived snapshot for a day (YYYY-MM-DD) or
// menu.ErrNotFound.
func (s *HistoryStore) ByDate(ctx context.Context, day string) (menu.Snapshot, error) {
	if s == nil || s.pool == nil {
		return menu.Snapshot{}, fmt.Errorf("history store is not configured")
	}
	if _, err := time.Parse(time.DateOnly, day); err != nil {
		return menu.Snapshot{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	query := fmt.Sprintf(`
SELECT id, restaurant, location, url, display_date, items, fetched_at, source_strategy
FROM %s
WHERE day = $1`, s.table)

	var (
		id          string
		restaurant  string
		location    string
		url         string
		displayDate string
		itemsJSON   []byte
		fetchedAt   time.Time
		strategy    string
	)
	row := s.pool.QueryRow(ctx, query, day)
	if err := row.Scan(&id, &restaurant, &location, &url, &displayDate, &itemsJSON, &fetchedAt, &strategy); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return menu.Snapshot{}, menu.ErrNotFound
		}
		return menu.Snapshot{}, fmt.Errorf("query snapshot: %w", err)
	}

	snap := menu.Snapshot{
		ID:             id,
		Restaurant:     restaurant,
		Location:       location,
		URL:            url,
		DisplayDate:    displayDate,
		FetchedAt:      fetchedAt,
		SourceStrategy: menu.Strategy(strategy),
	}
	if len(itemsJSON) > 0 {
		if err := json.Unmarshal(itemsJSON, &snap.Items); err != nil {
			return menu.Snapshot{}, fmt.Errorf("unmarshal items: %w", err)
		}
	}
	if snap.Items == nil {
		snap.Items = []menu.Item{}
	}
	return snap, nil
}

// Days lists archived days newest first.
func (s *HistoryStore) Days(ctx context.Context, limit, offset int) ([]string, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("history store is not configured")
	}
	if limit <= 0 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}
	query := fmt.Sprintf(`
SELECT day
FROM %s
ORDER BY day DESC
LIMIT $1 OFFSET $2`, s.table)

	rows, err := s.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query days: %w", err)
	}
	defer rows.Close()

	days := make([]string, 0, limit)
	for rows.Next() {
		var day string
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate days: %w", err)
	}
	return days, nil
}
