package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nicheradar/nicheradar/pkg/scoring"
)

// Config is the root configuration.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Provider  ProviderConfig  `yaml:"provider"`
	Cache     CacheConfig     `yaml:"cache"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Trend     TrendConfig     `yaml:"trend"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Schedule  ScheduleConfig  `yaml:"schedule"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Server    ServerConfig    `yaml:"server"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ProviderConfig configures the metadata provider.
type ProviderConfig struct {
	YouTube YouTubeConfig `yaml:"youtube"`
}

// YouTubeConfig for the YouTube metadata provider.
type YouTubeConfig struct {
	APIKey     string `yaml:"api_key"`
	Timeout    string `yaml:"timeout"`
	MaxResults int    `yaml:"max_results"`
	RateLimit  int    `yaml:"rate_limit_per_min"`
}

// ParseTimeout returns the provider call timeout as time.Duration.
func (y YouTubeConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(y.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// CacheConfig configures response cache TTLs per operation class.
type CacheConfig struct {
	ChannelTTL   string `yaml:"channel_ttl"`
	SearchTTL    string `yaml:"search_ttl"`
	RateLimitTTL string `yaml:"rate_limit_ttl"`
}

// ParseTTL parses one TTL string, falling back to the given default.
func ParseTTL(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// ScoringConfig carries the category weight set. The weights must sum
// to exactly 100; engine construction rejects anything else.
type ScoringConfig struct {
	Weights scoring.Weights `yaml:"weights"`
}

// TrendConfig configures trend derivation.
type TrendConfig struct {
	Window int `yaml:"window"`
}

// DiscoveryConfig configures discovery runs.
type DiscoveryConfig struct {
	Concurrency   int      `yaml:"concurrency"`
	MaxCandidates int      `yaml:"max_candidates"`
	Seeds         []string `yaml:"seeds"`
}

// ScheduleConfig configures the periodic discovery loop.
type ScheduleConfig struct {
	DiscoverInterval string `yaml:"discover_interval"`
}

// ParseDiscoverInterval returns the discovery interval as a Duration.
func (s ScheduleConfig) ParseDiscoverInterval() time.Duration {
	d, err := time.ParseDuration(s.DiscoverInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// AlertsConfig configures alert destinations for high-potential
// niches.
type AlertsConfig struct {
	MinScore float64       `yaml:"min_score"`
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
	Webhook  WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./nicheradar.db"},
		Provider: ProviderConfig{
			YouTube: YouTubeConfig{
				Timeout:    "30s",
				MaxResults: 25,
				RateLimit:  60,
			},
		},
		Cache: CacheConfig{
			ChannelTTL:   "1h",
			SearchTTL:    "6h",
			RateLimitTTL: "2m",
		},
		Scoring: ScoringConfig{Weights: scoring.DefaultWeights()},
		Trend:   TrendConfig{Window: 7},
		Discovery: DiscoveryConfig{
			Concurrency:   5,
			MaxCandidates: 50,
		},
		Schedule: ScheduleConfig{DiscoverInterval: "6h"},
		Alerts:   AlertsConfig{MinScore: 90},
		Server:   ServerConfig{Port: 8080},
	}
}

// Load reads configuration from a YAML file and applies env var
// overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Scoring.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment
// variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NICHERADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("YOUTUBE_API_KEY"); v != "" {
		cfg.Provider.YouTube.APIKey = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
