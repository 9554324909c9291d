package config

import (
	"time"

	"github.com/opengov-watch/bounty-archiver/internal/rules"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for the archiver.
type Config struct {
	RootDir  string         `mapstructure:"root_dir"  yaml:"root_dir"`
	StateDir string         `mapstructure:"state_dir" yaml:"state_dir"`
	Defaults DefaultsConfig `mapstructure:"defaults"  yaml:"defaults"`
	Fetch    FetchConfig    `mapstructure:"fetch"     yaml:"fetch"`
	Review   ReviewConfig   `mapstructure:"review"    yaml:"review"`
	Rules    []rules.Rule   `mapstructure:"rules"     yaml:"rules"`
	Logging  LoggingConfig  `mapstructure:"logging"   yaml:"logging"`
}

// DefaultsConfig supplies the mode and depth applied to new suggestions.
type DefaultsConfig struct {
	Mode           string `mapstructure:"mode"            yaml:"mode"`
	SingleDepth    int    `mapstructure:"single_depth"    yaml:"single_depth"`
	RecursiveDepth int    `mapstructure:"recursive_depth" yaml:"recursive_depth"`
}

// ModeDepth returns the configured default mode with its depth.
func (d DefaultsConfig) ModeDepth() (string, int) {
	if d.Mode == "recursive" {
		return d.Mode, d.RecursiveDepth
	}
	return "single", d.SingleDepth
}

// FetchConfig controls the HTTP fetcher and crawl pacing.
type FetchConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"`
	Delay        time.Duration `mapstructure:"delay"         yaml:"delay"`
	UserAgent    string        `mapstructure:"user_agent"    yaml:"user_agent"`
	MaxRedirects int           `mapstructure:"max_redirects" yaml:"max_redirects"`
	MaxBodySize  int64         `mapstructure:"max_body_size" yaml:"max_body_size"`
}

// ReviewConfig controls the review gate.
type ReviewConfig struct {
	// AutoAccept lists domains whose archive-routed suggestions skip the
	// interactive decision and go straight to the queue.
	AutoAccept []string `mapstructure:"auto_accept" yaml:"auto_accept"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		RootDir:  ".",
		StateDir: "", // derived from root_dir when empty
		Defaults: DefaultsConfig{
			Mode:           "single",
			SingleDepth:    0,
			RecursiveDepth: 2,
		},
		Fetch: FetchConfig{
			Timeout:      30 * time.Second,
			Delay:        time.Second,
			UserAgent:    "BountyArchiver/" + Version + " (+https://github.com/opengov-watch/bounty-archiver)",
			MaxRedirects: 10,
			MaxBodySize:  20 << 20,
		},
		Rules: []rules.Rule{
			{Pattern: "twitter.com", Category: "social", Route: rules.RouteSocial},
			{Pattern: "x.com", Category: "social", Route: rules.RouteSocial},
			{Pattern: "t.me", Category: "telegram", Route: rules.RouteSocial},
			{Pattern: "telegram.me", Category: "telegram", Route: rules.RouteSocial},
			{Pattern: "discord.com", Category: "discord", Route: rules.RouteSocial},
			{Pattern: "discord.gg", Category: "discord", Route: rules.RouteSocial},
			{Pattern: "matrix.to", Category: "matrix", Route: rules.RouteSocial},
			{Pattern: "github.com", Category: "github", Route: rules.RouteReference},
			{Pattern: "docs.*", Category: "docs", Route: rules.RouteArchive},
			{Pattern: "*.gitbook.io", Category: "docs", Route: rules.RouteArchive},
			{Pattern: "youtube.com", Category: "video", Route: rules.RouteIgnored},
			{Pattern: "google.com", Category: "search", Route: rules.RouteIgnored},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
