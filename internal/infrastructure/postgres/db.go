// Package postgres implements the hazard reference store and the analysis
// store on PostgreSQL through the pgx database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolConfig sizes the connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open creates and verifies a connection pool
func Open(ctx context.Context, databaseURL string, cfg PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return db, nil
}

// schema creates the tables the service reads and writes
const schema = `
CREATE TABLE IF NOT EXISTS hazardous_ingredients (
    id           SERIAL PRIMARY KEY,
    name         TEXT    NOT NULL,
    hazard_score INTEGER NOT NULL CHECK (hazard_score >= 0),
    hazard_type  TEXT    NOT NULL DEFAULT '',
    description  TEXT    NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS product_analyses (
    id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id             TEXT        NOT NULL,
    product_name        TEXT        NOT NULL,
    brand               TEXT        NOT NULL,
    category            TEXT        NOT NULL,
    ingredients         JSONB       NOT NULL,
    toxiscore           DOUBLE PRECISION NOT NULL,
    color_code          TEXT        NOT NULL,
    flagged_ingredients JSONB       NOT NULL,
    summary             TEXT        NOT NULL,
    alternatives        JSONB       NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS product_analyses_user_created_idx
    ON product_analyses (user_id, created_at DESC);
`

// EnsureSchema creates missing tables and indexes
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
