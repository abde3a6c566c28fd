package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setAccountEnv(t *testing.T) {
	t.Helper()
	t.Setenv("IMAP_HOST", "imap.example.net")
	t.Setenv("IMAP_USERNAME", "service@example.net")
	t.Setenv("IMAP_PASSWORD", "secret")
	t.Setenv("SMTP_HOST", "smtp.example.net")
}

func TestLoadConfigDefaults(t *testing.T) {
	setAccountEnv(t)

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendSQLite, cfg.StateBackend)
	assert.Equal(t, "/data/responder_state.db", cfg.StatePath)
	assert.Equal(t, "service@example.net", cfg.ServiceAddress)
	assert.Equal(t, 10, cfg.MaxRepliesPerHour)
	assert.Equal(t, 10, cfg.MaxRepliesPerSenderPerHour)
	assert.Equal(t, 800, cfg.MaxReplyTokens)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 2*time.Second, cfg.MessageDelay)
	assert.Equal(t, 60*time.Second, cfg.SendTimeout)
	assert.Equal(t, 180*24*time.Hour, cfg.HistoryRetention())
	assert.Equal(t, 1000, cfg.HandledCap)
	assert.Equal(t, []string{"mailer-daemon", "postmaster", "noreply", "no-reply"}, cfg.AutomatedSenderMarkers)

	assert.Equal(t, 993, cfg.Account.IMAPPort)
	assert.Equal(t, 465, cfg.Account.SMTPPort)
	assert.Equal(t, "INBOX", cfg.Account.IMAPFolder)
	assert.Equal(t, "service@example.net", cfg.Account.SMTPUsername)
	assert.Equal(t, "secret", cfg.Account.SMTPPassword)
}

func TestLoadConfigOverrides(t *testing.T) {
	setAccountEnv(t)
	t.Setenv("STATE_BACKEND", "JSON")
	t.Setenv("POLL_INTERVAL", "45")
	t.Setenv("MESSAGE_DELAY", "500ms")
	t.Setenv("SEND_TIMEOUT", "15")
	t.Setenv("CONTENT_FILTER_KEYWORDS", "spam, ,scam")
	t.Setenv("TEXTGEN_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("MAX_HISTORY", "not-a-number")

	cfg := LoadConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, BackendJSON, cfg.StateBackend)
	assert.Equal(t, "/data/responder_state.json", cfg.StatePath)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)
	assert.Equal(t, 500*time.Millisecond, cfg.MessageDelay)
	assert.Equal(t, 15*time.Second, cfg.SendTimeout)
	assert.Equal(t, []string{"spam", "scam"}, cfg.ContentFilterKeywords)
	assert.Equal(t, "sk-openai", cfg.TextGen.APIKey)
	assert.Equal(t, "https://api.openai.com/v1", cfg.TextGen.BaseURL)
	assert.Equal(t, 5, cfg.MaxHistory)
}

func TestDeepSeekKeyFallback(t *testing.T) {
	t.Setenv("TEXTGEN_PROVIDER", "")
	t.Setenv("TEXTGEN_API_KEY", "")
	t.Setenv("DEEPSEEK_API_KEY", "sk-deep")
	cfg := LoadConfig()
	assert.Equal(t, ProviderDeepSeek, cfg.TextGen.Provider)
	assert.Equal(t, "sk-deep", cfg.TextGen.APIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing imap host", func(c *Config) { c.Account.IMAPHost = "" }, "IMAP_HOST"},
		{"bad smtp port", func(c *Config) { c.Account.SMTPPort = 70000 }, "SMTP_PORT"},
		{"bad backend", func(c *Config) { c.StateBackend = "redis" }, "STATE_BACKEND"},
		{"bad provider", func(c *Config) { c.TextGen.Provider = "markov" }, "TEXTGEN_PROVIDER"},
		{"service address", func(c *Config) { c.ServiceAddress = "nobody" }, "SERVICE_ADDRESS"},
		{"zero poll", func(c *Config) { c.PollInterval = 0 }, "POLL_INTERVAL"},
		{"negative limit", func(c *Config) { c.MaxRepliesPerHour = -1 }, "rate limits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setAccountEnv(t)
			cfg := LoadConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateStateOnly(t *testing.T) {
	t.Setenv("IMAP_HOST", "")
	t.Setenv("STATE_BACKEND", "")
	cfg := LoadConfig()
	assert.NoError(t, cfg.ValidateState())
	assert.Error(t, cfg.Validate())
}
