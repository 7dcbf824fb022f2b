// Package config defines the top-level configuration for the Cerberus oracle
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CERBERUS_* environment
// variables.
type Config struct {
	Djinn    DjinnConfig    `toml:"djinn"`
	LLM      LLMConfig      `toml:"llm"`
	Twitter  TwitterConfig  `toml:"twitter"`
	Oracle   OracleConfig   `toml:"oracle"`
	Redis    RedisConfig    `toml:"redis"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// DjinnConfig holds the market registry API parameters.
type DjinnConfig struct {
	APIURL     string   `toml:"api_url"`
	WebhookURL string   `toml:"webhook_url"`
	Timeout    duration `toml:"timeout"`
}

// LLMConfig holds the judge model parameters. MinInterval is the shared
// request budget across the validation pipeline and the free-form oracle
// path: no two LLM calls start closer together than this.
type LLMConfig struct {
	APIKey      string   `toml:"api_key"`
	Model       string   `toml:"model"`
	Timeout     duration `toml:"timeout"`
	MinInterval duration `toml:"min_interval"`
}

// TwitterConfig holds the social search API parameters.
type TwitterConfig struct {
	APIURL  string   `toml:"api_url"`
	APIKey  string   `toml:"api_key"`
	Timeout duration `toml:"timeout"`
}

// OracleConfig holds the orchestrator scheduling parameters.
type OracleConfig struct {
	PollInterval       duration `toml:"poll_interval"`
	SocialPollInterval duration `toml:"social_poll_interval"`
	SourceProbeTimeout duration `toml:"source_probe_timeout"`
	VerifiedThreshold  int      `toml:"verified_threshold"`
}

// RedisConfig holds the optional event-bridge connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Djinn: DjinnConfig{
			APIURL:  "http://localhost:3000/api",
			Timeout: duration{30 * time.Second},
		},
		LLM: LLMConfig{
			Model:       "gemini-2.0-flash",
			Timeout:     duration{30 * time.Second},
			MinInterval: duration{2 * time.Second},
		},
		Twitter: TwitterConfig{
			Timeout: duration{30 * time.Second},
		},
		Oracle: OracleConfig{
			PollInterval:       duration{3 * time.Minute},
			SocialPollInterval: duration{5 * time.Minute},
			SourceProbeTimeout: duration{15 * time.Second},
			VerifiedThreshold:  70,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8090,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Djinn.APIURL) == "" {
		errs = append(errs, "djinn: api_url must not be empty")
	}

	if c.LLM.APIKey == "" {
		errs = append(errs, "llm: api_key must be set")
	}
	if c.LLM.Model == "" {
		errs = append(errs, "llm: model must not be empty")
	}
	if c.LLM.MinInterval.Duration < 0 {
		errs = append(errs, "llm: min_interval must not be negative")
	}

	if c.Oracle.PollInterval.Duration < time.Second {
		errs = append(errs, fmt.Sprintf("oracle: poll_interval must be at least 1s, got %s", c.Oracle.PollInterval.Duration))
	}
	if c.Oracle.SocialPollInterval.Duration < time.Second {
		errs = append(errs, fmt.Sprintf("oracle: social_poll_interval must be at least 1s, got %s", c.Oracle.SocialPollInterval.Duration))
	}
	if c.Oracle.VerifiedThreshold < 0 || c.Oracle.VerifiedThreshold > 100 {
		errs = append(errs, fmt.Sprintf("oracle: verified_threshold must be 0-100, got %d", c.Oracle.VerifiedThreshold))
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Notify — Telegram fields must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
