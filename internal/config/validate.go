package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are
// valid, returning the first problem found.
func (c *ScannerConfig) Validate() error {
	if c.Feed.URL == "" {
		return errors.New("feed.url is required")
	}
	if c.Catalog.URL == "" {
		return errors.New("catalog.url is required")
	}
	if c.Catalog.MinExpiryMinutes < 0 {
		return errors.New("catalog.min_expiry_minutes must be >= 0")
	}
	if c.Catalog.MaxExpiryHours <= 0 {
		return errors.New("catalog.max_expiry_hours must be > 0")
	}
	if c.Catalog.PageSize < 1 {
		return errors.New("catalog.page_size must be >= 1")
	}

	if c.Subscribe.MaxSubscriptions < 1 {
		return errors.New("subscribe.max_subscriptions must be >= 1")
	}

	if err := c.Storage.validate("storage"); err != nil {
		return err
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}

	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (s *StorageConfig) validate(prefix string) error {
	if s.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if s.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if s.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if s.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if s.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if s.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if s.MinConns > s.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, s.MinConns, s.MaxConns)
	}
	return nil
}
