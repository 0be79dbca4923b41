package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
log_level: debug
feed:
  url: wss://example.test/ws
catalog:
  url: https://gamma.example.test
storage:
  host: localhost
  port: 5432
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.Feed.URL != "wss://example.test/ws" {
		t.Errorf("Feed.URL = %q, want %q", cfg.Feed.URL, "wss://example.test/ws")
	}
	if cfg.Storage.Host != "localhost" {
		t.Errorf("Storage.Host = %q, want %q", cfg.Storage.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
storage:
  host: localhost
  name: test_db
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Password != "secret123" {
		t.Errorf("Storage.Password = %q, want %q", cfg.Storage.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
storage:
  host: localhost
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Feed.URL != DefaultFeedURL {
		t.Errorf("Feed.URL = %q, want default %q", cfg.Feed.URL, DefaultFeedURL)
	}
	if cfg.Catalog.URL != DefaultCatalogURL {
		t.Errorf("Catalog.URL = %q, want default %q", cfg.Catalog.URL, DefaultCatalogURL)
	}
	if cfg.Catalog.PollInterval != DefaultCatalogPollInterval {
		t.Errorf("Catalog.PollInterval = %v, want default %v", cfg.Catalog.PollInterval, DefaultCatalogPollInterval)
	}
	if cfg.Storage.Port != DefaultStoragePort {
		t.Errorf("Storage.Port = %d, want default %d", cfg.Storage.Port, DefaultStoragePort)
	}
	if cfg.Storage.MaxConns != DefaultStorageMaxConns {
		t.Errorf("Storage.MaxConns = %d, want default %d", cfg.Storage.MaxConns, DefaultStorageMaxConns)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Subscribe.MaxSubscriptions != DefaultMaxSubscriptions {
		t.Errorf("Subscribe.MaxSubscriptions = %d, want default %d", cfg.Subscribe.MaxSubscriptions, DefaultMaxSubscriptions)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ScannerConfig
		wantErr string
	}{
		{
			name:    "missing feed url",
			cfg:     ScannerConfig{},
			wantErr: "feed.url is required",
		},
		{
			name: "missing storage host",
			cfg: ScannerConfig{
				Feed:      FeedConfig{URL: "wss://x"},
				Catalog:   CatalogConfig{URL: "https://x", MaxExpiryHours: 1, PageSize: 1},
				Subscribe: SubscribeConfig{MaxSubscriptions: 1},
			},
			wantErr: "storage.host is required",
		},
		{
			name: "missing storage password",
			cfg: ScannerConfig{
				Feed:      FeedConfig{URL: "wss://x"},
				Catalog:   CatalogConfig{URL: "https://x", MaxExpiryHours: 1, PageSize: 1},
				Subscribe: SubscribeConfig{MaxSubscriptions: 1},
				Storage:   StorageConfig{Host: "h", Name: "db", User: "u"},
			},
			wantErr: "storage.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			cfg: ScannerConfig{
				Feed:      FeedConfig{URL: "wss://x"},
				Catalog:   CatalogConfig{URL: "https://x", MaxExpiryHours: 1, PageSize: 1},
				Subscribe: SubscribeConfig{MaxSubscriptions: 1},
				Storage:   StorageConfig{Host: "h", Name: "db", User: "u", Password: "p", MaxConns: 5, MinConns: 10},
			},
			wantErr: "storage.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "valid config",
			cfg: ScannerConfig{
				Feed:      FeedConfig{URL: "wss://x"},
				Catalog:   CatalogConfig{URL: "https://x", MaxExpiryHours: 72, PageSize: 500},
				Subscribe: SubscribeConfig{MaxSubscriptions: 1000},
				Storage:   StorageConfig{Host: "h", Name: "db", User: "u", Password: "p", MaxConns: 10, MinConns: 2},
				Writer:    WriterConfig{BatchSize: 1000, FlushInterval: time.Second},
				HTTPPort:  8080,
				Metrics:   MetricsConfig{Port: 9090},
			},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
