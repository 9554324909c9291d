package config

import (
	"fmt"

	"github.com/opengov-watch/bounty-archiver/internal/rules"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.RootDir == "" {
		return fmt.Errorf("root_dir must not be empty")
	}
	if cfg.Defaults.Mode != "single" && cfg.Defaults.Mode != "recursive" {
		return fmt.Errorf("defaults.mode must be 'single' or 'recursive', got %q", cfg.Defaults.Mode)
	}
	if cfg.Defaults.SingleDepth < 0 || cfg.Defaults.SingleDepth > 9 {
		return fmt.Errorf("defaults.single_depth must be 0-9, got %d", cfg.Defaults.SingleDepth)
	}
	if cfg.Defaults.RecursiveDepth < 0 || cfg.Defaults.RecursiveDepth > 9 {
		return fmt.Errorf("defaults.recursive_depth must be 0-9, got %d", cfg.Defaults.RecursiveDepth)
	}

	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be > 0")
	}
	if cfg.Fetch.Delay < 0 {
		return fmt.Errorf("fetch.delay must be >= 0")
	}
	if cfg.Fetch.MaxRedirects < 0 {
		return fmt.Errorf("fetch.max_redirects must be >= 0")
	}
	if cfg.Fetch.MaxBodySize <= 0 {
		return fmt.Errorf("fetch.max_body_size must be > 0")
	}

	validRoutes := map[rules.Route]bool{
		rules.RouteArchive:   true,
		rules.RouteReference: true,
		rules.RouteSocial:    true,
		rules.RouteIgnored:   true,
	}
	for i, r := range cfg.Rules {
		if r.Pattern == "" {
			return fmt.Errorf("rules[%d]: empty pattern", i)
		}
		if !validRoutes[r.Route] {
			return fmt.Errorf("rules[%d] (%s): invalid route %q", i, r.Pattern, r.Route)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}
