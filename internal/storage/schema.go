package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the markets/windows/market_stats tables if they
// don't already exist. Scanner deployments are expected to run a single
// process against a dedicated database, so a plain IF NOT EXISTS here
// stands in for a migration tool.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS markets (
		market_id        TEXT PRIMARY KEY,
		question         TEXT NOT NULL,
		category         TEXT NOT NULL,
		end_date_iso     TEXT,
		total_volume     DOUBLE PRECISION NOT NULL DEFAULT 0,
		yes_token_id     TEXT NOT NULL,
		no_token_id      TEXT NOT NULL,
		pinned           BOOLEAN NOT NULL DEFAULT FALSE,
		created_at       BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS windows (
		id                        BIGSERIAL PRIMARY KEY,
		market_id                 TEXT NOT NULL,
		opened_at                 BIGINT NOT NULL,
		closed_at                 BIGINT,
		duration_ms               DOUBLE PRECISION,
		yes_ask                   DOUBLE PRECISION NOT NULL,
		no_ask                    DOUBLE PRECISION NOT NULL,
		combined_cost             DOUBLE PRECISION NOT NULL,
		spread_size               DOUBLE PRECISION NOT NULL,
		spread_category           TEXT NOT NULL,
		closing_yes_ask           DOUBLE PRECISION,
		closing_no_ask            DOUBLE PRECISION,
		closing_combined_cost     DOUBLE PRECISION,
		closing_spread_size       DOUBLE PRECISION,
		closing_spread_category   TEXT,
		open_duration_class       TEXT,
		close_reason              TEXT,
		tick_count                INTEGER,
		volume_changed            BOOLEAN,
		volume_change_ticks       INTEGER,
		price_shifted             BOOLEAN,
		opportunity_class         INTEGER,
		detection_latency_us      BIGINT
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS windows_open_row
		ON windows (market_id, opened_at) WHERE closed_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS windows_market_id_idx ON windows (market_id)`,
	`CREATE TABLE IF NOT EXISTS market_stats (
		market_id           TEXT PRIMARY KEY,
		computed_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
		window_count        INTEGER NOT NULL,
		class1_count        INTEGER NOT NULL,
		class2_count        INTEGER NOT NULL,
		avg_duration_ms     DOUBLE PRECISION NOT NULL,
		avg_spread          DOUBLE PRECISION NOT NULL,
		max_spread          DOUBLE PRECISION NOT NULL,
		noise_ratio         DOUBLE PRECISION NOT NULL,
		frequency_score     DOUBLE PRECISION NOT NULL,
		duration_score      DOUBLE PRECISION NOT NULL,
		spread_score        DOUBLE PRECISION NOT NULL,
		noise_penalty       DOUBLE PRECISION NOT NULL,
		composite_score     DOUBLE PRECISION NOT NULL
	)`,
}
