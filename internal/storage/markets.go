package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/arb-scanner/internal/model"
)

// UpsertMarket records a newly-admitted market, mirroring the Rust
// source's `INSERT OR IGNORE INTO markets` — a market already on file
// (same market_id) is left untouched rather than overwritten, since
// the catalog can rediscover the same market on every poll.
func UpsertMarket(ctx context.Context, pool *pgxpool.Pool, m model.Market, pinned bool, createdAtNs int64) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO markets (market_id, question, category, end_date_iso, total_volume, yes_token_id, no_token_id, pinned, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (market_id) DO NOTHING
	`, m.ID, m.Question, string(m.Category), m.EndDateISO, m.TotalVolume, m.YesTokenID, m.NoTokenID, pinned, createdAtNs)
	return err
}
