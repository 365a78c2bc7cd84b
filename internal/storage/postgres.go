package storage

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"ath-watcher/internal/config"
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS ath_records (
        asset      TEXT PRIMARY KEY,
        value      NUMERIC(20,0) NOT NULL,
        updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE TABLE IF NOT EXISTS ath_events (
        id         BIGSERIAL PRIMARY KEY,
        asset      TEXT NOT NULL,
        previous   NUMERIC(20,0) NOT NULL,
        value      NUMERIC(20,0) NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	loadAthSQL = `SELECT value::text FROM ath_records WHERE asset = $1;`

	seedAthSQL = `INSERT INTO ath_records (asset, value)
    VALUES ($1, 0)
    ON CONFLICT (asset) DO NOTHING;`

	lockAthSQL = `SELECT value::text FROM ath_records WHERE asset = $1 FOR UPDATE;`

	upsertAthSQL = `INSERT INTO ath_records (asset, value, updated_at)
    VALUES ($1, $2::numeric, now())
    ON CONFLICT (asset) DO UPDATE
    SET value      = EXCLUDED.value,
        updated_at = EXCLUDED.updated_at
    WHERE ath_records.value < EXCLUDED.value;`

	insertEventSQL = `INSERT INTO ath_events (asset, previous, value)
    VALUES ($1, $2::numeric, $3::numeric);`

	listRecentEventsSQL = `SELECT
        id,
        asset,
        previous::text,
        value::text,
        created_at
    FROM ath_events
    WHERE asset = $1
    ORDER BY created_at DESC, id DESC
    LIMIT $2;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// pgxConn is the part of *pgxpool.Pool the store uses.
type pgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore keeps the ATH in a row keyed by asset and logs every advance to ath_events.
type PostgresStore struct {
	pool   pgxConn
	asset  string
	logger zerolog.Logger
}

// NewPostgresStore wires a pgx pool into a PostgresStore for asset.
func NewPostgresStore(pool *pgxpool.Pool, asset string, logger zerolog.Logger) *PostgresStore {
	if pool == nil {
		return newPostgresStore(nil, asset, logger)
	}
	return newPostgresStore(pool, asset, logger)
}

func newPostgresStore(conn pgxConn, asset string, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		pool:   conn,
		asset:  asset,
		logger: logger.With().Str("component", "postgres_store").Str("asset", asset).Logger(),
	}
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (pgxConn, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the tables used by the store if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Load returns the stored ATH, or 0 when no row exists or the query fails.
func (s *PostgresStore) Load(ctx context.Context) uint64 {
	pool, err := s.getPool()
	if err != nil {
		s.logger.Warn().Err(err).Msg("load ath; baseline 0")
		return 0
	}

	var raw string
	if err := pool.QueryRow(ctx, loadAthSQL, s.asset).Scan(&raw); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().Err(err).Msg("load ath failed; baseline 0")
		}
		return 0
	}
	v, err := parseValue(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("raw", raw).Msg("stored ath unparsable; baseline 0")
		return 0
	}
	return v
}

// Save advances the ATH row and appends an event in one transaction. The row is
// seeded before it is locked, so the event's previous value is the one replaced.
func (s *PostgresStore) Save(ctx context.Context, value uint64) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save ath: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, seedAthSQL, s.asset); err != nil {
		return fmt.Errorf("seed ath row: %w", err)
	}

	var previous uint64
	var raw string
	switch err := tx.QueryRow(ctx, lockAthSQL, s.asset).Scan(&raw); {
	case errors.Is(err, pgx.ErrNoRows):
	case err != nil:
		return fmt.Errorf("lock ath row: %w", err)
	default:
		// an unparsable row is overwritten like a missing one
		previous, _ = parseValue(raw)
	}
	if value <= previous {
		return ErrNotAdvanced
	}

	numeric := toNumeric(value)
	tag, err := tx.Exec(ctx, upsertAthSQL, s.asset, numeric)
	if err != nil {
		return fmt.Errorf("upsert ath: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotAdvanced
	}

	if _, err := tx.Exec(ctx, insertEventSQL, s.asset, toNumeric(previous), numeric); err != nil {
		return fmt.Errorf("insert ath event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save ath: %w", err)
	}
	return nil
}

// ListRecentEvents lists the most recent detected maxima, newest first.
func (s *PostgresStore) ListRecentEvents(ctx context.Context, limit int) ([]AthEvent, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentEventsSQL, s.asset, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent events: %w", queryErr)
	}
	defer rows.Close()

	events := make([]AthEvent, 0, limit)
	for rows.Next() {
		var (
			ev          AthEvent
			prev, value string
		)
		if err := rows.Scan(&ev.ID, &ev.Asset, &prev, &value, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ath event: %w", err)
		}
		if ev.Previous, err = parseValue(prev); err != nil {
			return nil, fmt.Errorf("parse previous: %w", err)
		}
		if ev.Value, err = parseValue(value); err != nil {
			return nil, fmt.Errorf("parse value: %w", err)
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// toNumeric binds v to a NUMERIC parameter; uint64 overflows int8.
func toNumeric(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

var (
	_ Store       = (*PostgresStore)(nil)
	_ EventLister = (*PostgresStore)(nil)
)
