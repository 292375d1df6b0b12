package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetSessionTTL(t *testing.T) {
	tests := []struct {
		name     string
		ttl      string
		expected time.Duration
	}{
		{"empty", "", 30 * time.Minute},
		{"invalid", "soon", 30 * time.Minute},
		{"negative", "-1m", 30 * time.Minute},
		{"5 minutes", "5m", 5 * time.Minute},
		{"1 hour", "1h", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Sessions: SessionsConfig{TTL: tt.ttl}}
			if got := cfg.GetSessionTTL(); got != tt.expected {
				t.Errorf("GetSessionTTL() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestGetRateLimit(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetRateLimitRPS(); got != 10 {
		t.Errorf("GetRateLimitRPS() = %v, want 10", got)
	}
	if got := cfg.GetRateLimitBurst(); got != 20 {
		t.Errorf("GetRateLimitBurst() = %v, want 20", got)
	}

	cfg.RateLimit = RateLimitConfig{RequestsPerSecond: 2.5, Burst: 4}
	if got := cfg.GetRateLimitRPS(); got != 2.5 {
		t.Errorf("GetRateLimitRPS() = %v, want 2.5", got)
	}
	if got := cfg.GetRateLimitBurst(); got != 4 {
		t.Errorf("GetRateLimitBurst() = %v, want 4", got)
	}
}

func TestGetRedisPassword(t *testing.T) {
	t.Setenv("TEST_REDIS_PASSWORD", "s3cret")
	cfg := &Config{Sessions: SessionsConfig{Redis: RedisConfig{Password: "${TEST_REDIS_PASSWORD}"}}}
	if got := cfg.GetRedisPassword(); got != "s3cret" {
		t.Errorf("GetRedisPassword() = %q, want s3cret", got)
	}
}

func TestDefaults(t *testing.T) {
	cfg := &Config{}
	if got := cfg.GetSessionStore(); got != StoreMemory {
		t.Errorf("GetSessionStore() = %q, want %q", got, StoreMemory)
	}
	if got := cfg.GetIsolation(); got != IsolationBlock {
		t.Errorf("GetIsolation() = %q, want %q", got, IsolationBlock)
	}
	if got := cfg.GetRedisPrefix(); got != "walkthrough:session:" {
		t.Errorf("GetRedisPrefix() = %q", got)
	}
	if got := cfg.GetCodeStyle(); got != "github" {
		t.Errorf("GetCodeStyle() = %q, want github", got)
	}
	if got := cfg.GetRenderTimeout(); got != 0 {
		t.Errorf("GetRenderTimeout() = %v, want 0", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{"defaults", func(*Config) {}, false},
		{"redis store", func(c *Config) { c.Sessions.Store = StoreRedis }, false},
		{"unknown store", func(c *Config) { c.Sessions.Store = "etcd" }, true},
		{"page isolation", func(c *Config) { c.Render.Isolation = IsolationPage }, false},
		{"unknown isolation", func(c *Config) { c.Render.Isolation = "none" }, true},
		{"bad ttl", func(c *Config) { c.Sessions.TTL = "forever" }, true},
		{"bad timeout", func(c *Config) { c.Render.Timeout = "quick" }, true},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, true},
		{"dark theme", func(c *Config) { c.Styling.Theme = ThemeDark }, false},
		{"unknown theme", func(c *Config) { c.Styling.Theme = "neon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantError && err == nil {
				t.Errorf("Validate() expected error, got nil")
			}
			if !tt.wantError && err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	content := `title: Workshop
server:
  port: 9000
sessions:
  store: redis
  ttl: 10m
render:
  isolation: page
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}
	if cfg.Title != "Workshop" {
		t.Errorf("Title = %q, want Workshop", cfg.Title)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	// Unset keys keep their defaults
	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, want localhost", cfg.Server.Host)
	}
	if cfg.GetSessionStore() != StoreRedis {
		t.Errorf("GetSessionStore() = %q, want redis", cfg.GetSessionStore())
	}
	if cfg.GetSessionTTL() != 10*time.Minute {
		t.Errorf("GetSessionTTL() = %v, want 10m", cfg.GetSessionTTL())
	}
	if cfg.GetIsolation() != IsolationPage {
		t.Errorf("GetIsolation() = %q, want page", cfg.GetIsolation())
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("render:\n  isolation: sometimes\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for unknown isolation")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Apply(Overrides{Port: 3000, Debug: true, Store: StoreRedis, NoReload: true})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.LogLevel != "debug" {
		t.Errorf("Server.LogLevel = %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Features.HotReload {
		t.Error("Features.HotReload should be disabled")
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("Server.Host = %q, zero override should keep it", cfg.Server.Host)
	}

	if err := cfg.Apply(Overrides{Isolation: "bogus"}); err == nil {
		t.Error("Apply() expected error for unknown isolation")
	}
}
