package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all engine configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	API       APIConfig       `mapstructure:"api"`
	Live      LiveConfig      `mapstructure:"live"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig tunes the diagnostics HTTP server.
type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

// APIConfig points at the dashboard REST API.
type APIConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LiveConfig carries the live-channel protocol constants.
type LiveConfig struct {
	WSURL          string `mapstructure:"ws_url"`
	BackoffMs      int    `mapstructure:"backoff_ms"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	FallbackMs     int    `mapstructure:"fallback_ms"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms"`
}

func (l LiveConfig) Backoff() time.Duration       { return time.Duration(l.BackoffMs) * time.Millisecond }
func (l LiveConfig) FallbackAfter() time.Duration { return time.Duration(l.FallbackMs) * time.Millisecond }
func (l LiveConfig) PollInterval() time.Duration {
	return time.Duration(l.PollIntervalMs) * time.Millisecond
}

// EngineConfig tunes the caches and the notification store.
type EngineConfig struct {
	ViewportRadiusM float64 `mapstructure:"viewport_radius_m"`
	MinPOIs         int     `mapstructure:"min_pois"`
	SyntheticPOIs   int     `mapstructure:"synthetic_pois"`
	PageSize        int     `mapstructure:"page_size"`
	CacheTTLSeconds int     `mapstructure:"cache_ttl_seconds"`
}

// ValkeyConfig enables the optional second-level cache.
type ValkeyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// NATSConfig enables the optional event publisher.
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8099)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("api.base_url", "http://localhost:8003")
	v.SetDefault("api.username", "")
	v.SetDefault("api.password", "")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("live.ws_url", "ws://localhost:8003/ws/positions")
	v.SetDefault("live.backoff_ms", 3000)
	v.SetDefault("live.max_attempts", 5)
	v.SetDefault("live.fallback_ms", 5000)
	v.SetDefault("live.poll_interval_ms", 3000)
	v.SetDefault("engine.viewport_radius_m", 500)
	v.SetDefault("engine.min_pois", 5)
	v.SetDefault("engine.synthetic_pois", 10)
	v.SetDefault("engine.page_size", 10)
	v.SetDefault("engine.cache_ttl_seconds", 300)
	v.SetDefault("valkey.enabled", false)
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("nats.enabled", false)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: NEARSYNC_LIVE_WS_URL → live.ws_url
	v.SetEnvPrefix("NEARSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.API.BaseURL == "" {
		errs = append(errs, "api.base_url is required")
	}
	if c.Live.WSURL == "" {
		errs = append(errs, "live.ws_url is required")
	}
	if c.Live.BackoffMs <= 0 {
		errs = append(errs, "live.backoff_ms must be positive")
	}
	if c.Live.MaxAttempts <= 0 {
		errs = append(errs, "live.max_attempts must be positive")
	}
	if c.Live.FallbackMs <= 0 {
		errs = append(errs, "live.fallback_ms must be positive")
	}
	if c.Live.PollIntervalMs <= 0 {
		errs = append(errs, "live.poll_interval_ms must be positive")
	}
	if c.Engine.ViewportRadiusM <= 0 {
		errs = append(errs, "engine.viewport_radius_m must be positive")
	}
	if c.Engine.PageSize <= 0 {
		errs = append(errs, "engine.page_size must be positive")
	}
	if c.Engine.SyntheticPOIs <= 0 {
		errs = append(errs, "engine.synthetic_pois must be positive")
	}
	if c.Valkey.Enabled && c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required when valkey.enabled")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, "nats.url is required when nats.enabled")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
