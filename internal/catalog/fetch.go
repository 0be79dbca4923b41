package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/arb-scanner/internal/model"
)

// FetchMarkets fetches active markets from the Gamma API, ordered by
// 24h volume descending, applying the admission gates in Config, and
// stopping once Config.MaxMarkets qualifying markets are found.
func FetchMarkets(ctx context.Context, client *Client, cfg Config) ([]model.Market, FetchStats, error) {
	now := float64(time.Now().Unix())
	minExpirySecs := cfg.MinExpiryMinutes * 60
	maxExpirySecs := cfg.MaxExpiryHours * 3600
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}

	var markets []model.Market
	var stats FetchStats
	offset := 0

	for {
		q := url.Values{}
		q.Set("active", "true")
		q.Set("closed", "false")
		q.Set("limit", strconv.Itoa(pageSize))
		q.Set("offset", strconv.Itoa(offset))
		q.Set("order", "volume24hr")
		q.Set("ascending", "false")

		var page []gammaMarket
		if err := client.getJSON(ctx, "/markets", q, &page); err != nil {
			return nil, stats, fmt.Errorf("fetch markets page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		stats.APITotal += len(page)

		for _, raw := range page {
			m, rejection := parseGammaMarketChecked(raw, cfg, now, minExpirySecs, maxExpirySecs)
			switch rejection {
			case rejectionNone:
				markets = append(markets, m)
				if len(markets) >= cfg.MaxMarkets {
					stats.Qualified = len(markets)
					return markets, stats, nil
				}
			case rejectionNoTokens:
				stats.RejectedNoTokens++
			case rejectionNoOutcomes:
				stats.RejectedNoOutcomes++
			case rejectionLowVolume:
				stats.RejectedLowVolume++
			case rejectionLowLiquidity:
				stats.RejectedLowLiquidity++
			case rejectionExpiry:
				stats.RejectedExpiry++
			}
		}

		if len(page) < pageSize {
			break
		}
		offset += pageSize
	}

	stats.Qualified = len(markets)
	return markets, stats, nil
}

type rejectionKind int

const (
	rejectionNone rejectionKind = iota
	rejectionNoTokens
	rejectionNoOutcomes
	rejectionLowVolume
	rejectionLowLiquidity
	rejectionExpiry
)

func parseGammaMarketChecked(v gammaMarket, cfg Config, nowSecs, minExpirySecs, maxExpirySecs float64) (model.Market, rejectionKind) {
	tokenIDs := decodeStringArray(v.ClobTokenIDs)
	if len(tokenIDs) < 2 {
		return model.Market{}, rejectionNoTokens
	}

	outcomes := decodeStringArray(v.Outcomes)
	yesIdx, noIdx, ok := resolveOutcomeIndices(outcomes)
	if !ok {
		return model.Market{}, rejectionNoOutcomes
	}

	if v.Volume24hr.Float64() < cfg.MinVolume24h {
		return model.Market{}, rejectionLowVolume
	}
	if v.LiquidityNum.Float64() < cfg.MinLiquidity {
		return model.Market{}, rejectionLowLiquidity
	}

	if v.EndDateISO == "" {
		return model.Market{}, rejectionExpiry
	}
	endSecs, err := parseISOToUnixSecs(v.EndDateISO)
	if err != nil {
		return model.Market{}, rejectionExpiry
	}
	secsUntil := endSecs - nowSecs
	if secsUntil < minExpirySecs || secsUntil > maxExpirySecs {
		return model.Market{}, rejectionExpiry
	}

	if v.ConditionID == "" {
		return model.Market{}, rejectionNoTokens
	}

	return model.Market{
		ID:          v.ConditionID,
		Question:    v.Question,
		Category:    categoryFromEvents(v.Events),
		EndDateISO:  v.EndDateISO,
		TotalVolume: v.Volume.Float64(),
		YesTokenID:  tokenIDs[yesIdx],
		NoTokenID:   tokenIDs[noIdx],
	}, rejectionNone
}

// resolveOutcomeIndices disambiguates YES/NO by label
// (case-insensitive "yes"/"up" vs "no"/"down"), falling back to
// positional 0/1 when there are exactly two outcomes and labels don't
// disambiguate.
func resolveOutcomeIndices(outcomes []string) (yesIdx, noIdx int, ok bool) {
	yesIdx, noIdx = -1, -1
	for i, o := range outcomes {
		lo := strings.ToLower(o)
		if lo == "yes" || lo == "up" {
			yesIdx = i
		}
		if lo == "no" || lo == "down" {
			noIdx = i
		}
	}
	if yesIdx >= 0 && noIdx >= 0 {
		return yesIdx, noIdx, true
	}
	if len(outcomes) == 2 {
		return 0, 1, true
	}
	return 0, 0, false
}

func decodeStringArray(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

func categoryFromEvents(events []gammaEvent) model.Category {
	if len(events) == 0 {
		return model.CategoryOther
	}
	return parseCategoryString(events[0].Category)
}

func parseCategoryString(s string) model.Category {
	switch strings.ToLower(s) {
	case "sports":
		return model.CategorySports
	case "weather":
		return model.CategoryWeather
	case "crypto":
		return model.CategoryCrypto
	case "politics":
		return model.CategoryPolitics
	case "economics", "business":
		return model.CategoryEconomics
	default:
		return model.CategoryOther
	}
}

func parseISOToUnixSecs(s string) (float64, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse("2006-01-02T15:04:05.999999Z", s)
		if err != nil {
			return 0, err
		}
	}
	return float64(t.Unix()), nil
}

// FetchPinnedMarkets queries the most recently created markets and
// returns every one whose slug matches a pinned prefix, paired with
// the matched prefix and the Unix end timestamp parsed from the slug.
// The Gamma API has no slug-filter parameter, so this queries the 300
// most recently created markets (order=startDate desc), which reliably
// surfaces rolling short-timeframe families since the upstream creates
// them every few minutes with a fresh startDate.
func FetchPinnedMarkets(ctx context.Context, client *Client, slugPrefixes []string) ([]PinnedCandidate, error) {
	if len(slugPrefixes) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("active", "true")
	q.Set("closed", "false")
	q.Set("limit", "300")
	q.Set("order", "startDate")
	q.Set("ascending", "false")

	var page []gammaMarket
	if err := client.getJSON(ctx, "/markets", q, &page); err != nil {
		return nil, fmt.Errorf("fetch pinned candidates: %w", err)
	}

	var results []PinnedCandidate
	seen := make(map[string]struct{})
	for _, raw := range page {
		prefix := matchedPrefix(raw.Slug, slugPrefixes)
		if prefix == "" {
			continue
		}
		m := parseGammaMarketUnfiltered(raw)
		if m == nil {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}
		results = append(results, PinnedCandidate{
			Market: *m,
			Prefix: prefix,
			EndTS:  ParseSlugEndTS(raw.Slug),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Market.ID < results[j].Market.ID })
	return results, nil
}

func matchedPrefix(slug string, prefixes []string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(slug, p) {
			return p
		}
	}
	return ""
}

// parseGammaMarketUnfiltered parses a market with no admission-filter
// gates applied, returning nil only if it is structurally unusable.
func parseGammaMarketUnfiltered(v gammaMarket) *model.Market {
	tokenIDs := decodeStringArray(v.ClobTokenIDs)
	outcomes := decodeStringArray(v.Outcomes)
	if len(tokenIDs) < 2 || len(outcomes) < 2 {
		return nil
	}
	yesIdx, noIdx, ok := resolveOutcomeIndices(outcomes)
	if !ok {
		return nil
	}
	if v.ConditionID == "" {
		return nil
	}
	return &model.Market{
		ID:          v.ConditionID,
		Question:    v.Question,
		Category:    categoryFromEvents(v.Events),
		EndDateISO:  v.EndDateISO,
		TotalVolume: v.Volume.Float64(),
		YesTokenID:  tokenIDs[yesIdx],
		NoTokenID:   tokenIDs[noIdx],
	}
}

// ParseSlugEndTS extracts the Unix timestamp from the last numeric
// segment of a slug: "btc-updown-5m-1772068500" -> 1772068500. Returns
// 0 if the slug has no trailing numeric segment.
func ParseSlugEndTS(slug string) uint64 {
	idx := strings.LastIndex(slug, "-")
	if idx < 0 {
		return 0
	}
	n, err := strconv.ParseUint(slug[idx+1:], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// ParsePrefixDurationSecs parses the window duration encoded in a slug
// prefix's trailing segment: "btc-updown-5m" -> 300, "sol-updown-1h" ->
// 3600. Defaults to 300 (5 minutes) if the segment cannot be parsed.
func ParsePrefixDurationSecs(prefix string) uint64 {
	idx := strings.LastIndex(prefix, "-")
	if idx < 0 {
		return 300
	}
	segment := prefix[idx+1:]
	if n, ok := trimSuffixUint(segment, "m"); ok {
		return n * 60
	}
	if n, ok := trimSuffixUint(segment, "h"); ok {
		return n * 3600
	}
	return 300
}

func trimSuffixUint(s, suffix string) (uint64, bool) {
	if !strings.HasSuffix(s, suffix) {
		return 0, false
	}
	n, err := strconv.ParseUint(strings.TrimSuffix(s, suffix), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
