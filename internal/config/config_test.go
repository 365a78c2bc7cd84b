package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	os.Unsetenv(PollPeriodEnv)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("default config should load: %v", err)
	}
	if cfg.Scheduler.Interval != DefaultPollPeriod {
		t.Fatalf("expected default interval %s, got %s", DefaultPollPeriod, cfg.Scheduler.Interval)
	}
	if cfg.Store.Backend != BackendFile || cfg.Store.Path != "last_ath.txt" {
		t.Fatalf("unexpected store defaults: %+v", cfg.Store)
	}
	if got := cfg.FeedURL(); got != "https://api.coingecko.com/api/v3/simple/price?ids=bitcoin&vs_currencies=usd" {
		t.Fatalf("unexpected feed url %s", got)
	}
	if cfg.TickTimeout() != cfg.Scheduler.Interval {
		t.Fatalf("tick timeout should default to the interval")
	}
	if len(cfg.Alerting.Channels) != 1 || cfg.Alerting.Channels[0] != ChannelNtfy {
		t.Fatalf("unexpected channels %v", cfg.Alerting.Channels)
	}
}

func TestLoadPollPeriodOverride(t *testing.T) {
	chdirTemp(t)
	t.Setenv(PollPeriodEnv, "5")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.Interval != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.Scheduler.Interval)
	}
}

func TestLoadPollPeriodInvalidIsFatal(t *testing.T) {
	chdirTemp(t)
	for _, raw := range []string{"abc", "-1", "1.5", ""} {
		t.Setenv(PollPeriodEnv, raw)
		if _, err := Load(""); err == nil {
			t.Fatalf("POLL_PERIOD=%q should fail", raw)
		}
	}
}

func TestLoadPollPeriodZeroRejected(t *testing.T) {
	chdirTemp(t)
	t.Setenv(PollPeriodEnv, "0")
	_, err := Load("")
	if err == nil {
		t.Fatal("a zero interval cannot drive the scheduler")
	}
	if !strings.Contains(err.Error(), "POLL_PERIOD=0 is not supported") {
		t.Fatalf("zero should be named in the error, got %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	os.Unsetenv(PollPeriodEnv)
	t.Cleanup(func() { os.Unsetenv(PollPeriodEnv) })

	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("POLL_PERIOD=12\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Scheduler.Interval != 12*time.Second {
		t.Fatalf("expected .env interval 12s, got %s", cfg.Scheduler.Interval)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := chdirTemp(t)
	os.Unsetenv(PollPeriodEnv)

	path := filepath.Join(dir, "watcher.yaml")
	body := `
feed:
  asset: ethereum
  currency: eur
store:
  backend: redis
  redis:
    addr: localhost:6379
alerting:
  channels: [ntfy]
  ntfy:
    url: https://ntfy.example.com/topic
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Feed.Asset != "ethereum" || cfg.Feed.Currency != "eur" {
		t.Fatalf("feed not read from file: %+v", cfg.Feed)
	}
	if cfg.Store.Backend != BackendRedis || cfg.Store.Redis.Addr != "localhost:6379" {
		t.Fatalf("store not read from file: %+v", cfg.Store)
	}
}

func TestValidate(t *testing.T) {
	chdirTemp(t)
	os.Unsetenv(PollPeriodEnv)

	base, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	cases := map[string]func(c *Config){
		"unknown backend":    func(c *Config) { c.Store.Backend = "s3" },
		"postgres sans dsn":  func(c *Config) { c.Store.Backend = BackendPostgres },
		"redis sans addr":    func(c *Config) { c.Store.Backend = BackendRedis },
		"unknown channel":    func(c *Config) { c.Alerting.Channels = []string{"pager"} },
		"telegram sans bot":  func(c *Config) { c.Alerting.Channels = []string{ChannelTelegram} },
		"bad feed url":       func(c *Config) { c.Feed.BaseURL = "not a url" },
		"negative timeout":   func(c *Config) { c.Feed.RequestTimeout = -time.Second },
		"empty store path":   func(c *Config) { c.Store.Path = " " },
		"non-positive cycle": func(c *Config) { c.Scheduler.Interval = 0 },
	}
	for name, mutate := range cases {
		cfg := *base
		cfg.Alerting.Channels = append([]string(nil), base.Alerting.Channels...)
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestParsePollPeriod(t *testing.T) {
	d, err := ParsePollPeriod(" 30 ")
	if err != nil || d != 30*time.Second {
		t.Fatalf("expected 30s, got %s (%v)", d, err)
	}
	if _, err := ParsePollPeriod("99999999999999999999"); err == nil {
		t.Fatal("overflowing value should fail")
	}
}
