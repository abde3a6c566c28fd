package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	LogLevel string
	LogFile  string

	// State settings
	StateBackend string
	StatePath    string

	// Personas
	PersonasFile   string
	DefaultPersona string

	// ServiceAddress is the mailbox the personas deliver into.
	ServiceAddress string

	Account AccountConfig
	TextGen TextGenConfig

	// Limits
	MaxRepliesPerHour          int
	MaxRepliesPerSenderPerHour int
	MaxReplyTokens             int
	Temperature                float64

	// Timing
	PollInterval    time.Duration
	MessageDelay    time.Duration
	GenerateTimeout time.Duration
	SendTimeout     time.Duration

	// Conversation memory
	HistoryRetentionDays int
	MaxHistory           int
	HistoryContext       int
	HandledCap           int

	AutomatedSenderMarkers []string
	ContentFilterKeywords  []string
}

// AccountConfig holds configuration for the service mail account
type AccountConfig struct {
	// IMAP settings
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	IMAPFolder   string

	// SMTP settings
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
}

// TextGenConfig selects and configures the reply generator
type TextGenConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
}

const (
	BackendSQLite = "sqlite"
	BackendJSON   = "json"

	ProviderDeepSeek = "deepseek"
	ProviderOpenAI   = "openai"
	ProviderGemini   = "gemini"
)

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	cfg := &Config{
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
		StateBackend:   strings.ToLower(getEnv("STATE_BACKEND", BackendSQLite)),
		PersonasFile:   getEnv("PERSONAS_FILE", ""),
		DefaultPersona: getEnv("DEFAULT_PERSONA", ""),

		MaxRepliesPerHour:          getEnvInt("MAX_REPLIES_PER_HOUR", 10),
		MaxRepliesPerSenderPerHour: getEnvInt("MAX_REPLIES_PER_SENDER_PER_HOUR", 10),
		MaxReplyTokens:             getEnvInt("MAX_REPLY_TOKENS", 800),
		Temperature:                getEnvFloat("TEMPERATURE", 0.8),

		PollInterval:    getEnvDuration("POLL_INTERVAL", 30*time.Second),
		MessageDelay:    getEnvDuration("MESSAGE_DELAY", 2*time.Second),
		GenerateTimeout: getEnvDuration("GENERATE_TIMEOUT", 30*time.Second),
		SendTimeout:     getEnvDuration("SEND_TIMEOUT", 60*time.Second),

		HistoryRetentionDays: getEnvInt("HISTORY_RETENTION_DAYS", 180),
		MaxHistory:           getEnvInt("MAX_HISTORY", 5),
		HistoryContext:       getEnvInt("HISTORY_CONTEXT", 3),
		HandledCap:           getEnvInt("HANDLED_CAP", 1000),

		AutomatedSenderMarkers: getEnvList("AUTOMATED_SENDER_MARKERS", []string{"mailer-daemon", "postmaster", "noreply", "no-reply"}),
		ContentFilterKeywords:  getEnvList("CONTENT_FILTER_KEYWORDS", []string{"inappropriate", "offensive"}),
	}

	switch cfg.StateBackend {
	case BackendJSON:
		cfg.StatePath = getEnv("STATE_PATH", "/data/responder_state.json")
	default:
		cfg.StatePath = getEnv("STATE_PATH", "/data/responder_state.db")
	}

	cfg.Account = loadAccount()
	cfg.ServiceAddress = strings.ToLower(getEnv("SERVICE_ADDRESS", cfg.Account.IMAPUsername))
	cfg.TextGen = loadTextGen()

	return cfg
}

// loadAccount loads the mail account; SMTP credentials default to the IMAP ones
func loadAccount() AccountConfig {
	acc := AccountConfig{
		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPUsername: getEnv("IMAP_USERNAME", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPFolder:   getEnv("IMAP_FOLDER", "INBOX"),
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 465),
	}
	acc.SMTPUsername = getEnv("SMTP_USERNAME", acc.IMAPUsername)
	acc.SMTPPassword = getEnv("SMTP_PASSWORD", acc.IMAPPassword)
	return acc
}

func loadTextGen() TextGenConfig {
	tg := TextGenConfig{
		Provider: strings.ToLower(getEnv("TEXTGEN_PROVIDER", ProviderDeepSeek)),
		APIKey:   getEnv("TEXTGEN_API_KEY", ""),
		BaseURL:  getEnv("TEXTGEN_BASE_URL", ""),
		Model:    getEnv("TEXTGEN_MODEL", ""),
	}

	if tg.APIKey == "" {
		switch tg.Provider {
		case ProviderDeepSeek:
			tg.APIKey = getEnv("DEEPSEEK_API_KEY", "")
		case ProviderOpenAI:
			tg.APIKey = getEnv("OPENAI_API_KEY", "")
		case ProviderGemini:
			tg.APIKey = getEnv("GEMINI_API_KEY", "")
		}
	}

	if tg.Provider == ProviderOpenAI && tg.BaseURL == "" {
		tg.BaseURL = "https://api.openai.com/v1"
	}

	return tg
}

// HistoryRetention returns the conversation retention window
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.HistoryRetentionDays) * 24 * time.Hour
}

// ValidateState checks the settings needed to open the state store
func (c *Config) ValidateState() error {
	if c.StatePath == "" {
		return fmt.Errorf("STATE_PATH is required")
	}
	if c.StateBackend != BackendSQLite && c.StateBackend != BackendJSON {
		return fmt.Errorf("STATE_BACKEND must be %q or %q", BackendSQLite, BackendJSON)
	}
	if c.HandledCap < 1 {
		return fmt.Errorf("HANDLED_CAP must be positive")
	}
	if c.HistoryRetentionDays < 1 {
		return fmt.Errorf("HISTORY_RETENTION_DAYS must be positive")
	}
	return nil
}

// Validate validates the configuration for running the responder
func (c *Config) Validate() error {
	if err := c.ValidateState(); err != nil {
		return err
	}

	acc := &c.Account
	if acc.IMAPHost == "" {
		return fmt.Errorf("IMAP_HOST is required")
	}
	if acc.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required")
	}
	if acc.IMAPUsername == "" || acc.IMAPPassword == "" {
		return fmt.Errorf("IMAP_USERNAME and IMAP_PASSWORD are required")
	}
	if acc.IMAPPort < 1 || acc.IMAPPort > 65535 {
		return fmt.Errorf("invalid IMAP_PORT")
	}
	if acc.SMTPPort < 1 || acc.SMTPPort > 65535 {
		return fmt.Errorf("invalid SMTP_PORT")
	}
	if !strings.Contains(c.ServiceAddress, "@") {
		return fmt.Errorf("SERVICE_ADDRESS must be an email address")
	}

	switch c.TextGen.Provider {
	case ProviderDeepSeek, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown TEXTGEN_PROVIDER: %s", c.TextGen.Provider)
	}

	if c.MaxRepliesPerHour < 0 || c.MaxRepliesPerSenderPerHour < 0 {
		return fmt.Errorf("rate limits must not be negative")
	}
	if c.MaxReplyTokens < 1 {
		return fmt.Errorf("MAX_REPLY_TOKENS must be positive")
	}
	if c.MaxHistory < 1 {
		return fmt.Errorf("MAX_HISTORY must be positive")
	}
	if c.HistoryContext < 0 {
		return fmt.Errorf("HISTORY_CONTEXT must not be negative")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive")
	}
	if c.GenerateTimeout <= 0 {
		return fmt.Errorf("GENERATE_TIMEOUT must be positive")
	}
	if c.SendTimeout <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be positive")
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
