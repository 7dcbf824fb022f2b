package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.Equal(t, "http://localhost:3000/api", cfg.Djinn.APIURL)
	require.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	require.Equal(t, 2*time.Second, cfg.LLM.MinInterval.Duration)
	require.Equal(t, 3*time.Minute, cfg.Oracle.PollInterval.Duration)
	require.Equal(t, 5*time.Minute, cfg.Oracle.SocialPollInterval.Duration)
	require.Equal(t, 15*time.Second, cfg.Oracle.SourceProbeTimeout.Duration)
	require.Equal(t, 70, cfg.Oracle.VerifiedThreshold)
	require.False(t, cfg.Redis.Enabled)
	require.True(t, cfg.Server.Enabled)
	require.Equal(t, 8090, cfg.Server.Port)
	require.Equal(t, "info", cfg.LogLevel)
}

func TestValidateAcceptsDefaultsWithAPIKey(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.APIKey = "test-key"
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "loud"
	cfg.Djinn.APIURL = "  "
	cfg.Oracle.PollInterval.Duration = 100 * time.Millisecond
	cfg.Oracle.VerifiedThreshold = 150
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	require.ErrorContains(t, err, `unknown log_level "loud"`)
	require.ErrorContains(t, err, "djinn: api_url must not be empty")
	require.ErrorContains(t, err, "llm: api_key must be set")
	require.ErrorContains(t, err, "oracle: poll_interval must be at least 1s")
	require.ErrorContains(t, err, "oracle: verified_threshold must be 0-100, got 150")
	require.ErrorContains(t, err, "server: port must be 1-65535, got 0")
}

func TestValidateTelegramFieldsPaired(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.APIKey = "test-key"

	cfg.Notify.TelegramToken = "tok"
	require.ErrorContains(t, cfg.Validate(), "telegram_token and telegram_chat_id must be set together")

	cfg.Notify.TelegramChatID = "chat"
	require.NoError(t, cfg.Validate())
}

func TestValidateRedisAddrRequiredWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.APIKey = "test-key"
	cfg.Redis.Enabled = true
	cfg.Redis.Addr = ""
	require.ErrorContains(t, cfg.Validate(), "redis: addr must not be empty when enabled")
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
log_level = "debug"

[djinn]
api_url = "https://registry.example.com/api"
timeout = "45s"

[llm]
api_key = "file-key"

[oracle]
poll_interval = "1m"

[server]
port = 9000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "https://registry.example.com/api", cfg.Djinn.APIURL)
	require.Equal(t, 45*time.Second, cfg.Djinn.Timeout.Duration)
	require.Equal(t, "file-key", cfg.LLM.APIKey)
	require.Equal(t, time.Minute, cfg.Oracle.PollInterval.Duration)
	require.Equal(t, 9000, cfg.Server.Port)

	// Untouched fields keep their defaults.
	require.Equal(t, "gemini-2.0-flash", cfg.LLM.Model)
	require.Equal(t, 5*time.Minute, cfg.Oracle.SocialPollInterval.Duration)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[llm]
api_key = "file-key"
`)

	t.Setenv("CERBERUS_LLM_API_KEY", "env-key")
	t.Setenv("CERBERUS_ORACLE_POLL_INTERVAL", "90s")
	t.Setenv("CERBERUS_SERVER_PORT", "8123")
	t.Setenv("CERBERUS_REDIS_ENABLED", "true")
	t.Setenv("CERBERUS_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "env-key", cfg.LLM.APIKey)
	require.Equal(t, 90*time.Second, cfg.Oracle.PollInterval.Duration)
	require.Equal(t, 8123, cfg.Server.Port)
	require.True(t, cfg.Redis.Enabled)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
}

func TestLoadGeminiKeyAlias(t *testing.T) {
	path := writeConfig(t, "")
	t.Setenv("GEMINI_API_KEY", "alias-key")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "alias-key", cfg.LLM.APIKey)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
