// Package config defines ScannerConfig, the single root configuration
// struct for the scanner binary, loaded from a YAML file with ${VAR}
// environment expansion.
package config

import "time"

// ScannerConfig is the root configuration for a scanner instance. It
// unifies what the teacher split across a nested GathererConfig (API,
// Database, Connections, Writers, Poller, Metrics) into the sections
// this system actually needs: one feed connection, one catalog poller,
// one storage pool, one writer queue, one Redis broadcaster.
type ScannerConfig struct {
	LogLevel string `yaml:"log_level"`
	HTTPPort int    `yaml:"http_port"`

	Feed      FeedConfig      `yaml:"feed"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Subscribe SubscribeConfig `yaml:"subscribe"`
	Storage   StorageConfig   `yaml:"storage"`
	Redis     RedisConfig     `yaml:"redis"`
	Writer    WriterConfig    `yaml:"writer"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// FeedConfig holds the CLOB WebSocket feed connection settings.
type FeedConfig struct {
	URL string `yaml:"url"`
}

// CatalogConfig holds the Gamma API polling and admission-filter
// settings (§4.1's volume/liquidity/expiry gates).
type CatalogConfig struct {
	URL                string        `yaml:"url"`
	MinVolume24h       float64       `yaml:"min_volume_24h"`
	MinLiquidity       float64       `yaml:"min_liquidity"`
	MinExpiryMinutes   float64       `yaml:"min_expiry_minutes"`
	MaxExpiryHours     float64       `yaml:"max_expiry_hours"`
	MaxMarkets         int           `yaml:"max_markets"`
	PageSize           int           `yaml:"page_size"`
	PollInterval       time.Duration `yaml:"poll_interval"`
	PinnedSlugPrefixes []string      `yaml:"pinned_slug_prefixes"`
}

// SubscribeConfig holds the Subscription Controller's watched-set cap.
type SubscribeConfig struct {
	MaxSubscriptions int `yaml:"max_subscriptions"`
}

// StorageConfig holds the Postgres connection pool settings for the
// windows/markets/market_stats database.
type StorageConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// RedisConfig holds the live-push broadcaster's Redis connection.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// WriterConfig holds the Persistence Writer's batching settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// MetricsConfig holds the Prometheus metrics HTTP settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
