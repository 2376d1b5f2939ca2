package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Config configures the staging backend.
type Config struct {
	// Root is the staging directory.
	Root string

	// Retention is the default GC policy.
	Retention RetentionConfig
}

// RetentionConfig bounds how many runs the staging area keeps.
// Zero values disable the corresponding rule.
type RetentionConfig struct {
	MaxAgeDays int
	MaxRuns    int
}

// IsEnabled reports whether any retention rule is active.
func (r RetentionConfig) IsEnabled() bool {
	return r.MaxAgeDays > 0 || r.MaxRuns > 0
}

// Validate checks the config.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Root == "" {
		return errors.New("staging root is required")
	}
	if c.Retention.MaxAgeDays < 0 {
		return fmt.Errorf("retention max age must be >= 0, got %d", c.Retention.MaxAgeDays)
	}
	if c.Retention.MaxRuns < 0 {
		return fmt.Errorf("retention max runs must be >= 0, got %d", c.Retention.MaxRuns)
	}
	return nil
}

// DefaultRoot returns the default staging directory, under the user cache dir.
func DefaultRoot() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve cache dir: %w", err)
	}
	return filepath.Join(dir, "hostscan", "staging"), nil
}

// DefaultConfig returns a config rooted at DefaultRoot with retention off.
func DefaultConfig() (*Config, error) {
	root, err := DefaultRoot()
	if err != nil {
		return nil, err
	}
	return &Config{Root: root}, nil
}

// Factory builds a backend from a config.
type Factory func(ctx context.Context, cfg *Config) (Backend, error)

// DefaultFactory is used by NewBackend.
var DefaultFactory Factory

// NewBackend builds a backend with DefaultFactory.
func NewBackend(ctx context.Context, cfg *Config) (Backend, error) {
	if DefaultFactory == nil {
		return nil, errors.New("no storage backend registered")
	}
	return DefaultFactory(ctx, cfg)
}

type configKey struct{}

// WithConfig stores cfg in ctx.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFromContext returns the config stored by WithConfig.
func ConfigFromContext(ctx context.Context) (*Config, bool) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	return cfg, ok && cfg != nil
}
