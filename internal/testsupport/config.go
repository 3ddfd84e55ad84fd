// Package testsupport holds shared helpers for package tests: temp-dir
// backed configs, tiny decodable images, and minimal template documents.
package testsupport

import (
	"path/filepath"
	"testing"

	"phieu/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfg.Paths.OutputDir = filepath.Join(base, "output")
	cfg.Paths.LogDir = filepath.Join(base, "logs")

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithAMISBaseURL points the config at a test server.
func WithAMISBaseURL(baseURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.AMIS.BaseURL = baseURL
	}
}

// WithDownloadAttempts overrides the retry budget.
func WithDownloadAttempts(attempts int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.AMIS.DownloadAttempts = attempts
	}
}
