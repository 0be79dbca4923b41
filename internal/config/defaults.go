package config

import "time"

// Default values for optional configuration fields. Mirrors spec §6:
// "All have defaults."
const (
	DefaultFeedURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"

	DefaultCatalogURL          = "https://gamma-api.polymarket.com"
	DefaultMinVolume24h        = 5000.0
	DefaultMinLiquidity        = 1000.0
	DefaultMinExpiryMinutes    = 30.0
	DefaultMaxExpiryHours      = 72.0
	DefaultMaxMarkets          = 500
	DefaultPageSize            = 500
	DefaultCatalogPollInterval = 60 * time.Second

	DefaultMaxSubscriptions = 1000

	DefaultStoragePort     = 5432
	DefaultStorageSSLMode  = "prefer"
	DefaultStorageMaxConns = 10
	DefaultStorageMinConns = 2

	DefaultRedisAddr = "localhost:6379"

	DefaultWriterBatchSize     = 1000
	DefaultWriterFlushInterval = 1 * time.Second

	DefaultMetricsPort = 9090
	DefaultMetricsPath = "/metrics"

	DefaultHTTPPort = 8080
	DefaultLogLevel = "info"
)

func (c *ScannerConfig) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.HTTPPort == 0 {
		c.HTTPPort = DefaultHTTPPort
	}

	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}

	if c.Catalog.URL == "" {
		c.Catalog.URL = DefaultCatalogURL
	}
	if c.Catalog.MinVolume24h == 0 {
		c.Catalog.MinVolume24h = DefaultMinVolume24h
	}
	if c.Catalog.MinLiquidity == 0 {
		c.Catalog.MinLiquidity = DefaultMinLiquidity
	}
	if c.Catalog.MinExpiryMinutes == 0 {
		c.Catalog.MinExpiryMinutes = DefaultMinExpiryMinutes
	}
	if c.Catalog.MaxExpiryHours == 0 {
		c.Catalog.MaxExpiryHours = DefaultMaxExpiryHours
	}
	if c.Catalog.MaxMarkets == 0 {
		c.Catalog.MaxMarkets = DefaultMaxMarkets
	}
	if c.Catalog.PageSize == 0 {
		c.Catalog.PageSize = DefaultPageSize
	}
	if c.Catalog.PollInterval == 0 {
		c.Catalog.PollInterval = DefaultCatalogPollInterval
	}

	if c.Subscribe.MaxSubscriptions == 0 {
		c.Subscribe.MaxSubscriptions = DefaultMaxSubscriptions
	}

	if c.Storage.Port == 0 {
		c.Storage.Port = DefaultStoragePort
	}
	if c.Storage.SSLMode == "" {
		c.Storage.SSLMode = DefaultStorageSSLMode
	}
	if c.Storage.MaxConns == 0 {
		c.Storage.MaxConns = DefaultStorageMaxConns
	}
	if c.Storage.MinConns == 0 {
		c.Storage.MinConns = DefaultStorageMinConns
	}

	if c.Redis.Addr == "" {
		c.Redis.Addr = DefaultRedisAddr
	}

	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultWriterBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultWriterFlushInterval
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
