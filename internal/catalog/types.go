package catalog

import "github.com/rickgao/arb-scanner/internal/model"

// Config holds the admission filters and paging settings for a catalog
// fetch cycle.
type Config struct {
	GammaAPIURL        string
	MinVolume24h       float64
	MinLiquidity       float64
	MinExpiryMinutes   float64
	MaxExpiryHours     float64
	MaxMarkets         int
	PageSize           int
	PinnedSlugPrefixes []string
}

// DefaultConfig returns the admission-filter defaults.
func DefaultConfig() Config {
	return Config{
		GammaAPIURL:      "https://gamma-api.polymarket.com",
		MinVolume24h:     5000.0,
		MinLiquidity:     1000.0,
		MinExpiryMinutes: 30.0,
		MaxExpiryHours:   72.0,
		MaxMarkets:       500,
		PageSize:         500,
	}
}

// FetchStats records how many candidate markets were rejected by each
// admission gate, for operational visibility (supplemented from the
// original fetcher's diagnostic counters).
type FetchStats struct {
	APITotal             int
	RejectedNoTokens     int
	RejectedNoOutcomes   int
	RejectedLowVolume    int
	RejectedLowLiquidity int
	RejectedExpiry       int
	Qualified            int
}

// gammaMarket is the subset of the Gamma /markets response this
// scanner needs. clobTokenIds and outcomes arrive as JSON-encoded
// strings (not native arrays), matching the upstream API.
type gammaMarket struct {
	ConditionID  string       `json:"conditionId"`
	Question     string       `json:"question"`
	Slug         string       `json:"slug"`
	ClobTokenIDs string       `json:"clobTokenIds"`
	Outcomes     string       `json:"outcomes"`
	EndDateISO   string       `json:"endDateIso"`
	Volume       jsonNumber   `json:"volume"`
	Volume24hr   jsonNumber   `json:"volume24hr"`
	LiquidityNum jsonNumber   `json:"liquidityNum"`
	Events       []gammaEvent `json:"events"`
}

type gammaEvent struct {
	Category string `json:"category"`
}

// PinnedCandidate is a pinned-family market fetched from the catalog,
// paired with the slug prefix it matched and the Unix end timestamp
// parsed from its slug.
type PinnedCandidate struct {
	Market model.Market
	Prefix string
	EndTS  uint64
}
