package aggregate

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/arb-scanner/internal/model"
)

// queryWindow24hStats scans the windows table for every market with at
// least one row opened in the last 24h, grouping and aggregating in
// SQL rather than in Go (same division of labour as the original's
// sqlx query).
func queryWindow24hStats(ctx context.Context, pool *pgxpool.Pool, sinceNs int64) ([]Stats, error) {
	rows, err := pool.Query(ctx, `
		SELECT
			market_id,
			COUNT(*) AS window_count,
			COALESCE(SUM(CASE WHEN open_duration_class = $2 THEN 1 ELSE 0 END), 0) AS single_tick_count,
			COALESCE(SUM(CASE WHEN opportunity_class = 1 THEN 1 ELSE 0 END), 0) AS class1_count,
			COALESCE(SUM(CASE WHEN opportunity_class = 2 THEN 1 ELSE 0 END), 0) AS class2_count,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms,
			COALESCE(AVG(spread_size), 0) AS avg_spread,
			COALESCE(MAX(spread_size), 0) AS max_spread
		FROM windows
		WHERE opened_at > $1
		GROUP BY market_id
	`, sinceNs, string(model.SingleTick))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Stats
	for rows.Next() {
		var s Stats
		var singleTickCount int
		if err := rows.Scan(
			&s.MarketID, &s.WindowCount, &singleTickCount,
			&s.Class1Count, &s.Class2Count,
			&s.AvgDurationMs, &s.AvgSpread, &s.MaxSpread,
		); err != nil {
			return nil, err
		}
		if s.WindowCount > 0 {
			s.NoiseRatio = float64(singleTickCount) / float64(s.WindowCount)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// upsertMarketStats writes one market's computed Score into
// market_stats, matching the original's ON CONFLICT DO UPDATE shape.
func upsertMarketStats(ctx context.Context, pool *pgxpool.Pool, s Stats, sc Score) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO market_stats (
			market_id, window_count, class1_count, class2_count,
			avg_duration_ms, avg_spread, max_spread, noise_ratio,
			frequency_score, duration_score, spread_score, noise_penalty, composite_score
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (market_id) DO UPDATE SET
			computed_at     = now(),
			window_count    = excluded.window_count,
			class1_count    = excluded.class1_count,
			class2_count    = excluded.class2_count,
			avg_duration_ms = excluded.avg_duration_ms,
			avg_spread      = excluded.avg_spread,
			max_spread      = excluded.max_spread,
			noise_ratio     = excluded.noise_ratio,
			frequency_score = excluded.frequency_score,
			duration_score  = excluded.duration_score,
			spread_score    = excluded.spread_score,
			noise_penalty   = excluded.noise_penalty,
			composite_score = excluded.composite_score
	`, s.MarketID, s.WindowCount, s.Class1Count, s.Class2Count,
		s.AvgDurationMs, s.AvgSpread, s.MaxSpread, s.NoiseRatio,
		sc.FrequencyScore, sc.DurationScore, sc.SpreadScore, sc.NoisePenalty, sc.CompositeScore)
	return err
}
