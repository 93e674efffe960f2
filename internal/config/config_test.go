package config

import (
	"os"
	"path/filepath"
	"testing"

	"watttime-api/pkg/carbon"
	_ "watttime-api/pkg/carbon/sources/watttime"
)

// Test_sourceConfig_envExpansion verifies that the carbon source config
// expands environment variables when loaded directly via carbon.LoadConfig.
func Test_sourceConfig_envExpansion(t *testing.T) {
	dir := t.TempDir()

	carbonYAML := []byte(`
default: watttime
sources:
  watttime:
    type: watttime
    token: ${WT_TOKEN}
    base_url: ${WT_BASE_URL}
    http_timeout: ${WT_HTTP_TIMEOUT}
    page_limit: 50
`)
	carbonPath := filepath.Join(dir, "carbon.yaml")
	if err := os.WriteFile(carbonPath, carbonYAML, 0o600); err != nil {
		t.Fatalf("write carbon.yaml: %v", err)
	}

	t.Setenv("WT_TOKEN", "test-token")
	t.Setenv("WT_BASE_URL", "https://watttime.example/api/v1/marginal/")
	t.Setenv("WT_HTTP_TIMEOUT", "11s")

	cfg, err := carbon.LoadConfig(carbonPath)
	if err != nil {
		t.Fatalf("carbon.LoadConfig: %v", err)
	}
	src := cfg.Sources["watttime"]
	if src == nil {
		t.Fatalf("source 'watttime' missing")
	}
	if got := src.Token; got != "test-token" {
		t.Fatalf("Token not expanded, got %q", got)
	}
	if got := src.BaseURL; got != "https://watttime.example/api/v1/marginal/" {
		t.Fatalf("BaseURL not expanded, got %q", got)
	}
	if src.HTTPTimeout.String() != "11s" {
		t.Fatalf("http_timeout not parsed, got %s", src.HTTPTimeout)
	}
	if src.PageLimit != 50 {
		t.Fatalf("page_limit got %d", src.PageLimit)
	}
}

func TestValidate_CacheBackend(t *testing.T) {
	cfg := &Config{}
	cfg.Cache.Backend = "memcached"
	cfg.Query.DefaultStaleness = "1h"
	cfg.Query.FetchPadding = "4h"
	cfg.Warm.Interval = "5m"
	cfg.Warm.Lookback = "1h"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected cache.backend validation error")
	}

	cfg.Cache.Backend = "lru"
	cfg.Cache.LRUSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected cache.lrusize validation error")
	}

	cfg.Cache.Backend = "redis"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected cache.redis.host validation error")
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := &Config{}
	cfg.Query.DefaultStaleness = "1h"
	cfg.Query.FetchPadding = "4h"
	cfg.Warm.Interval = "5m"
	cfg.Warm.Lookback = "1h"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("empty loglevel should default to info, got %q", cfg.LogLevel)
	}

	cfg.LogLevel = "Debug"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate with mixed-case level: %v", err)
	}

	cfg.LogLevel = "loud"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected loglevel validation error")
	}
}

func TestValidate_Durations(t *testing.T) {
	cfg := &Config{}
	cfg.Query.Staleness = map[string]string{"rt5m": "5m", "DAHR": "1h"}
	cfg.Query.DefaultStaleness = "1h"
	cfg.Query.FetchPadding = "4h"
	cfg.Warm.Interval = "5m"
	cfg.Warm.Lookback = "1h"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := cfg.StalenessTable()["RT5M"]; got.String() != "5m0s" {
		t.Fatalf("staleness map not upper-cased or parsed, got %s", got)
	}
	if cfg.DefaultStaleness().String() != "1h0m0s" || cfg.FetchPadding().String() != "4h0m0s" {
		t.Fatalf("query durations not parsed: %s %s", cfg.DefaultStaleness(), cfg.FetchPadding())
	}

	cfg.Query.FetchPadding = "sideways"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected fetchpadding validation error")
	}

	cfg.Query.FetchPadding = "-4h"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected positive-duration validation error")
	}
}
