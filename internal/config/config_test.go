package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opengov-watch/bounty-archiver/internal/rules"
)

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Validate(Default()))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "archiver.yml")
	content := `
root_dir: /data/archive
defaults:
  mode: recursive
  recursive_depth: 3
fetch:
  delay: 2s
review:
  auto_accept:
    - gitbook.io
rules:
  - pattern: "*.gitbook.io"
    category: docs
    route: archive
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, Validate(cfg))

	assert.Equal(t, "/data/archive", cfg.RootDir)
	assert.Equal(t, filepath.Join("/data/archive", "scraping"), cfg.StateDir)
	assert.Equal(t, "recursive", cfg.Defaults.Mode)
	assert.Equal(t, 3, cfg.Defaults.RecursiveDepth)
	assert.Equal(t, 2*time.Second, cfg.Fetch.Delay)
	assert.Equal(t, []string{"gitbook.io"}, cfg.Review.AutoAccept)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, rules.RouteArchive, cfg.Rules[0].Route)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestModeDepth(t *testing.T) {
	d := DefaultsConfig{Mode: "single", SingleDepth: 0, RecursiveDepth: 2}
	mode, depth := d.ModeDepth()
	assert.Equal(t, "single", mode)
	assert.Zero(t, depth)

	d.Mode = "recursive"
	mode, depth = d.ModeDepth()
	assert.Equal(t, "recursive", mode)
	assert.Equal(t, 2, depth)
}

func TestValidateRejects(t *testing.T) {
	mutate := []func(*Config){
		func(c *Config) { c.RootDir = "" },
		func(c *Config) { c.Defaults.Mode = "walk" },
		func(c *Config) { c.Defaults.RecursiveDepth = 12 },
		func(c *Config) { c.Fetch.Timeout = 0 },
		func(c *Config) { c.Fetch.Delay = -time.Second },
		func(c *Config) { c.Fetch.MaxBodySize = 0 },
		func(c *Config) { c.Rules = append(c.Rules, rules.Rule{Pattern: "", Route: rules.RouteArchive}) },
		func(c *Config) { c.Rules = append(c.Rules, rules.Rule{Pattern: "x.com", Route: "banana"}) },
		func(c *Config) { c.Logging.Level = "chatty" },
		func(c *Config) { c.Logging.Format = "xml" },
	}
	for i, m := range mutate {
		cfg := Default()
		m(cfg)
		assert.Error(t, Validate(cfg), "case %d", i)
	}
}
