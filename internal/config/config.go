package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up in a content directory.
const FileName = "walkthrough.yaml"

// Config represents the walkthrough configuration
type Config struct {
	Title       string          `yaml:"title"`
	Description string          `yaml:"description"`
	Server      ServerConfig    `yaml:"server"`
	Styling     StylingConfig   `yaml:"styling"`
	Features    FeaturesConfig  `yaml:"features"`
	Sessions    SessionsConfig  `yaml:"sessions"`
	Render      RenderConfig    `yaml:"render"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	Ignore      []string        `yaml:"ignore"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port     int    `yaml:"port"`
	Host     string `yaml:"host"`
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
}

// StylingConfig holds styling-related configuration
type StylingConfig struct {
	Theme        string `yaml:"theme"`
	PrimaryColor string `yaml:"primary_color"`
	Font         string `yaml:"font"`
	CodeStyle    string `yaml:"code_style"` // chroma style name
}

// FeaturesConfig holds feature flags
type FeaturesConfig struct {
	HotReload bool `yaml:"hot_reload"`
	Metrics   bool `yaml:"metrics"`
}

// SessionsConfig selects where per-session widget state lives.
type SessionsConfig struct {
	Store string      `yaml:"store"` // "memory" or "redis"
	TTL   string      `yaml:"ttl"`   // idle time before a session is dropped
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings for the redis session store.
// Password supports environment variable expansion.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// RenderConfig holds renderer settings.
type RenderConfig struct {
	Isolation string `yaml:"isolation"` // "block" or "page"
	Timeout   string `yaml:"timeout"`   // per-render deadline, empty for none
}

// RateLimitConfig holds per-client rate limiting for interactions
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"` // default: 10
	Burst             int     `yaml:"burst,omitempty"`               // default: 20
}

// Session store kinds.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Isolation policies.
const (
	ThemeClean = "clean"
	ThemeDark  = "dark"
)

const (
	IsolationBlock = "block"
	IsolationPage  = "page"
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Title:       "Tech Trek",
		Description: "An interactive walkthrough",
		Server: ServerConfig{
			Port:     8080,
			Host:     "localhost",
			Debug:    false,
			LogLevel: "info",
		},
		Styling: StylingConfig{
			Theme:        ThemeClean,
			PrimaryColor: "#ff4b4b",
			Font:         "system-ui",
			CodeStyle:    "github",
		},
		Features: FeaturesConfig{
			HotReload: true,
			Metrics:   true,
		},
		Sessions: SessionsConfig{
			Store: StoreMemory,
			TTL:   "30m",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "walkthrough:session:",
			},
		},
		Render: RenderConfig{
			Isolation: IsolationBlock,
		},
		Ignore: []string{
			"drafts/**",
			"_*.md",
		},
	}
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Sessions.Store {
	case "", StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("sessions.store: unknown store %q (want memory or redis)", c.Sessions.Store)
	}
	switch c.Render.Isolation {
	case "", IsolationBlock, IsolationPage:
	default:
		return fmt.Errorf("render.isolation: unknown policy %q (want block or page)", c.Render.Isolation)
	}
	switch c.Styling.Theme {
	case "", ThemeClean, ThemeDark:
	default:
		return fmt.Errorf("styling.theme: unknown theme %q (want clean or dark)", c.Styling.Theme)
	}
	if c.Sessions.TTL != "" {
		if _, err := time.ParseDuration(c.Sessions.TTL); err != nil {
			return fmt.Errorf("sessions.ttl: %w", err)
		}
	}
	if c.Render.Timeout != "" {
		if _, err := time.ParseDuration(c.Render.Timeout); err != nil {
			return fmt.Errorf("render.timeout: %w", err)
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port: %d out of range", c.Server.Port)
	}
	return nil
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetSessionStore returns the session store kind (default: memory)
func (c *Config) GetSessionStore() string {
	if c.Sessions.Store == "" {
		return StoreMemory
	}
	return c.Sessions.Store
}

// GetSessionTTL returns the idle session lifetime (default: 30m)
func (c *Config) GetSessionTTL() time.Duration {
	if c.Sessions.TTL == "" {
		return 30 * time.Minute
	}
	d, err := time.ParseDuration(c.Sessions.TTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// GetRedisPassword returns the redis password with environment variable expansion
func (c *Config) GetRedisPassword() string {
	return os.ExpandEnv(c.Sessions.Redis.Password)
}

// GetRedisPrefix returns the redis key prefix (default: "walkthrough:session:")
func (c *Config) GetRedisPrefix() string {
	if c.Sessions.Redis.Prefix == "" {
		return "walkthrough:session:"
	}
	return c.Sessions.Redis.Prefix
}

// GetIsolation returns the live block isolation policy (default: block)
func (c *Config) GetIsolation() string {
	if c.Render.Isolation == "" {
		return IsolationBlock
	}
	return c.Render.Isolation
}

// GetRenderTimeout returns the per-render deadline (0 = none)
func (c *Config) GetRenderTimeout() time.Duration {
	if c.Render.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Render.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// GetRateLimitRPS returns the rate limit in requests per second (default: 10)
func (c *Config) GetRateLimitRPS() float64 {
	if c.RateLimit.RequestsPerSecond <= 0 {
		return 10
	}
	return c.RateLimit.RequestsPerSecond
}

// GetRateLimitBurst returns the burst size (default: 20)
func (c *Config) GetRateLimitBurst() int {
	if c.RateLimit.Burst <= 0 {
		return 20
	}
	return c.RateLimit.Burst
}

// GetCodeStyle returns the chroma style name (default: "github")
func (c *Config) GetCodeStyle() string {
	if c.Styling.CodeStyle == "" {
		return "github"
	}
	return c.Styling.CodeStyle
}

// Load loads configuration from a YAML file
// If the file doesn't exist, returns the default configuration
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig() // Start with defaults
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return config, nil
}

// LoadFromDir looks for walkthrough.yaml (or .yml) in the given directory.
// If none is found, returns the default configuration
func LoadFromDir(dir string) (*Config, error) {
	ymlPath := filepath.Join(dir, "walkthrough.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		if _, err := os.Stat(filepath.Join(dir, FileName)); os.IsNotExist(err) {
			return Load(ymlPath)
		}
	}
	return Load(filepath.Join(dir, FileName))
}

// Overrides carries values set on the command line. Zero values leave the
// loaded configuration untouched.
type Overrides struct {
	Host      string
	Port      int
	Debug     bool
	Store     string
	RedisAddr string
	Isolation string
	NoReload  bool
}

// Apply copies the non-zero overrides onto c and revalidates.
func (c *Config) Apply(o Overrides) error {
	if o.Host != "" {
		c.Server.Host = o.Host
	}
	if o.Port != 0 {
		c.Server.Port = o.Port
	}
	if o.Debug {
		c.Server.Debug = true
		c.Server.LogLevel = "debug"
	}
	if o.Store != "" {
		c.Sessions.Store = o.Store
	}
	if o.RedisAddr != "" {
		c.Sessions.Redis.Addr = o.RedisAddr
	}
	if o.Isolation != "" {
		c.Render.Isolation = o.Isolation
	}
	if o.NoReload {
		c.Features.HotReload = false
	}
	return c.Validate()
}
