// Package model defines the domain types shared across the scanner's
// pipeline: catalog markets, window lifecycle events, and the
// classification taxonomy.
//
// Conventions:
//   - Prices: float64 dollars as received from the feed; order-book keys
//     are quantised to four decimals (price*1e4, rounded, int32) where a
//     price needs to be used as a map key.
//   - Timestamps: time.Time for wall-clock fields, time.Duration/elapsed
//     for latency. Persisted timestamps are stored as Unix nanoseconds.
//   - IDs: string for market and token identifiers (both are opaque
//     strings on the upstream catalog/feed).
package model
