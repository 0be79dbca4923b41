// Package aggregate implements the Aggregator (C9): a 60-second
// scheduled scan of the last 24h of persisted windows, computing a
// composite per-market opportunity score and upserting it into
// market_stats.
//
// Grounded on original_source/src/scorer/market_scorer.rs, with the
// frequency term reweighted per spec.md §4.9 ("weights class-1 windows
// ×2 and class-2 ×1.5 over other classes") — the original's
// compute_score weighted every window equally.
package aggregate

// Stats is one market's rolling 24h summary, computed from the
// windows table by the query in query.go.
type Stats struct {
	MarketID      string
	WindowCount   int
	Class1Count   int // CloseVolumeSpikeGradual: gradual volume spike close
	Class2Count   int // ClosePriceDrift
	AvgDurationMs float64
	AvgSpread     float64
	MaxSpread     float64
	NoiseRatio    float64 // single-tick (never-opened) closes / total
}

// Score is the weighted decomposition of a Stats row into the four
// components that sum (net of the noise penalty) to CompositeScore.
type Score struct {
	FrequencyScore float64
	DurationScore  float64
	SpreadScore    float64
	NoisePenalty   float64
	CompositeScore float64
}

// Compute derives a Score from a market's rolling Stats. Class-1 and
// class-2 windows (the two highest-priority opportunity classes, see
// internal/detect/classify) count extra toward the frequency term;
// every other window in WindowCount, whatever its class, counts once.
// NoiseRatio is applied separately, as a penalty.
func Compute(s Stats) Score {
	otherCount := s.WindowCount - s.Class1Count - s.Class2Count
	if otherCount < 0 {
		otherCount = 0
	}
	weightedCount := float64(s.Class1Count)*2.0 + float64(s.Class2Count)*1.5 + float64(otherCount)

	frequency := min1(weightedCount/50.0) * 30.0
	duration := min1(s.AvgDurationMs/2000.0) * 30.0
	spread := min1(s.AvgSpread/0.10) * 25.0
	noisePenalty := s.NoiseRatio * 15.0

	composite := frequency + duration + spread - noisePenalty
	if composite < 0 {
		composite = 0
	}

	return Score{
		FrequencyScore: frequency,
		DurationScore:  duration,
		SpreadScore:    spread,
		NoisePenalty:   noisePenalty,
		CompositeScore: composite,
	}
}

func min1(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0 {
		return 0
	}
	return v
}
