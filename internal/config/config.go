package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables overriding config keys
const EnvPrefix = "DAILY_BRIEF"

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance from config.yaml, .env and the environment
func New() (*Config, error) {
	return Load("")
}

// Load reads configuration from path, or searches the default locations when path is empty
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/daily-brief/")
		v.AddConfigPath("$HOME/.daily-brief")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	// LLM providers
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.timeout", "20s")
	v.SetDefault("embedding.breaker.enabled", true)
	v.SetDefault("embedding.breaker.max_failures", 5)
	v.SetDefault("embedding.breaker.open_timeout", "60s")
	v.SetDefault("summary.provider", "")
	v.SetDefault("summary.timeout", "60s")
	v.SetDefault("summary.breaker.enabled", true)
	v.SetDefault("summary.breaker.max_failures", 3)
	v.SetDefault("summary.breaker.open_timeout", "120s")

	// OpenAI
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.embedding_model", "text-embedding-3-small")
	v.SetDefault("openai.summary_model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 2000)
	v.SetDefault("openai.temperature", 0.7)
	v.SetDefault("openai.top_p", 1.0)
	v.SetDefault("openai.max_body_size", 1000)

	// Gemini
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.embedding_model", "text-embedding-004")
	v.SetDefault("gemini.summary_model", "gemini-1.5-flash")
	v.SetDefault("gemini.max_tokens", 2000)
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.top_p", 0.95)
	v.SetDefault("gemini.max_body_size", 1000)

	// Bedrock
	v.SetDefault("bedrock.region", "us-east-1")
	v.SetDefault("bedrock.embedding_model", "amazon.titan-embed-text-v1")
	v.SetDefault("bedrock.summary_model", "anthropic.claude-v2")
	v.SetDefault("bedrock.max_tokens", 2000)
	v.SetDefault("bedrock.temperature", 0.7)
	v.SetDefault("bedrock.top_p", 0.9)
	v.SetDefault("bedrock.max_body_size", 1000)

	// Mail connector
	v.SetDefault("mail.connector", "gmail")
	v.SetDefault("mail.fetch_window", "48h")
	v.SetDefault("mail.fetch_timeout", "60s")
	v.SetDefault("mail.max_results", 100)
	v.SetDefault("gmail.client_id", "")
	v.SetDefault("gmail.client_secret", "")
	v.SetDefault("gmail.refresh_token", "")
	v.SetDefault("gmail.user", "me")
	v.SetDefault("imap.host", "imap.gmail.com")
	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("file.dir", "./mail")

	// Storage
	v.SetDefault("storage.type", "sqlite")
	v.SetDefault("storage.sqlite_path", "./data/email_brief.db")
	v.SetDefault("storage.mysql_dsn", "user:password@tcp(localhost:3306)/daily_brief")
	v.SetDefault("storage.embeddings", "")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "daily-brief:embedding:")

	// Scoring and feedback
	v.SetDefault("scoring.workers", 4)
	v.SetDefault("feedback.rescore", true)

	// Brief
	v.SetDefault("brief.top_n", 10)
	v.SetDefault("brief.critical_score", 0.7)
	v.SetDefault("brief.schedule", "0 0 7 * * *")
	v.SetDefault("brief.whitelisted_senders", []string{})

	// Delivery
	v.SetDefault("delivery.method", "none")
	v.SetDefault("delivery.recipient", "")
	v.SetDefault("delivery.file_dir", "./briefs")
	v.SetDefault("smtp.host", "smtp.gmail.com")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.starttls", true)

	// Server
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_address", "127.0.0.1:5001")

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	d, err := time.ParseDuration(c.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return d, nil
}

// Set overrides a configuration value
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
