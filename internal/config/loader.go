package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CERBERUS_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CERBERUS_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Djinn registry ──
	setStr(&cfg.Djinn.APIURL, "CERBERUS_DJINN_API_URL")
	setStr(&cfg.Djinn.WebhookURL, "CERBERUS_DJINN_WEBHOOK_URL")
	setDuration(&cfg.Djinn.Timeout, "CERBERUS_DJINN_TIMEOUT")

	// ── LLM judge ──
	setStr(&cfg.LLM.APIKey, "CERBERUS_LLM_API_KEY")
	setStr(&cfg.LLM.APIKey, "GEMINI_API_KEY") // compatibility alias
	setStr(&cfg.LLM.Model, "CERBERUS_LLM_MODEL")
	setDuration(&cfg.LLM.Timeout, "CERBERUS_LLM_TIMEOUT")
	setDuration(&cfg.LLM.MinInterval, "CERBERUS_LLM_MIN_INTERVAL")

	// ── Twitter search ──
	setStr(&cfg.Twitter.APIURL, "CERBERUS_TWITTER_API_URL")
	setStr(&cfg.Twitter.APIKey, "CERBERUS_TWITTER_API_KEY")
	setDuration(&cfg.Twitter.Timeout, "CERBERUS_TWITTER_TIMEOUT")

	// ── Oracle scheduling ──
	setDuration(&cfg.Oracle.PollInterval, "CERBERUS_ORACLE_POLL_INTERVAL")
	setDuration(&cfg.Oracle.SocialPollInterval, "CERBERUS_ORACLE_SOCIAL_POLL_INTERVAL")
	setDuration(&cfg.Oracle.SourceProbeTimeout, "CERBERUS_ORACLE_SOURCE_PROBE_TIMEOUT")
	setInt(&cfg.Oracle.VerifiedThreshold, "CERBERUS_ORACLE_VERIFIED_THRESHOLD")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "CERBERUS_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "CERBERUS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CERBERUS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CERBERUS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CERBERUS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CERBERUS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CERBERUS_REDIS_TLS_ENABLED")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CERBERUS_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CERBERUS_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CERBERUS_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CERBERUS_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CERBERUS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CERBERUS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CERBERUS_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CERBERUS_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "CERBERUS_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
