package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Scoring.Weights.Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
	if cfg.Discovery.Concurrency != 5 {
		t.Errorf("default concurrency = %d, want 5", cfg.Discovery.Concurrency)
	}
	if cfg.Trend.Window != 7 {
		t.Errorf("default trend window = %d, want 7", cfg.Trend.Window)
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/custom.db
discovery:
  concurrency: 2
  seeds:
    - "cooking tutorials"
    - "@veritasium"
server:
  port: 9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Path != "/tmp/custom.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Discovery.Concurrency != 2 {
		t.Errorf("concurrency = %d, want 2", cfg.Discovery.Concurrency)
	}
	if len(cfg.Discovery.Seeds) != 2 {
		t.Errorf("seeds = %v, want 2 entries", cfg.Discovery.Seeds)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	// Untouched sections keep their defaults.
	if cfg.Cache.ChannelTTL != "1h" {
		t.Errorf("channel ttl = %q, want default 1h", cfg.Cache.ChannelTTL)
	}
}

func TestLoad_RejectsBadWeights(t *testing.T) {
	path := writeConfig(t, `
scoring:
  weights:
    trend: 50
    competition: 25
    monetization: 20
    audience: 25
    content_opportunity: 15
`)

	if _, err := Load(path); err == nil {
		t.Error("expected load to fail when weights do not sum to 100")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NICHERADAR_DB_PATH", "/tmp/env.db")
	t.Setenv("YOUTUBE_API_KEY", "test-key")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.test/abc")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("db path = %q, want env override", cfg.Database.Path)
	}
	if cfg.Provider.YouTube.APIKey != "test-key" {
		t.Errorf("api key = %q, want env override", cfg.Provider.YouTube.APIKey)
	}
	if !cfg.Alerts.Slack.Enabled || cfg.Alerts.Slack.WebhookURL == "" {
		t.Error("slack webhook env var should enable slack alerts")
	}
}

func TestParseTTL(t *testing.T) {
	if d := ParseTTL("90s", time.Hour); d != 90*time.Second {
		t.Errorf("ParseTTL(90s) = %v", d)
	}
	if d := ParseTTL("bogus", time.Hour); d != time.Hour {
		t.Errorf("ParseTTL fallback = %v, want 1h", d)
	}
	if d := ParseTTL("", time.Minute); d != time.Minute {
		t.Errorf("ParseTTL empty fallback = %v, want 1m", d)
	}
}

func TestParseDurationsFallBack(t *testing.T) {
	if d := (YouTubeConfig{Timeout: "oops"}).ParseTimeout(); d != 30*time.Second {
		t.Errorf("timeout fallback = %v, want 30s", d)
	}
	if d := (ScheduleConfig{DiscoverInterval: ""}).ParseDiscoverInterval(); d != 6*time.Hour {
		t.Errorf("interval fallback = %v, want 6h", d)
	}
}
