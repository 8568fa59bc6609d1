package config

import "time"

// LLMConfig selects the providers backing embeddings and summaries
type LLMConfig struct {
	Provider          string
	EmbeddingProvider string
	SummaryProvider   string
	EmbeddingTimeout  time.Duration
	SummaryTimeout    time.Duration
}

// BreakerConfig represents circuit breaker settings for an LLM call path
type BreakerConfig struct {
	Enabled     bool
	MaxFailures uint32
	OpenTimeout time.Duration
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region         string
	EmbeddingModel string
	SummaryModel   string
	MaxTokens      int
	Temperature    float32
	TopP           float32
	MaxBodySize    int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey         string
	EmbeddingModel string
	SummaryModel   string
	MaxTokens      int
	Temperature    float32
	TopP           float32
	MaxBodySize    int
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	SummaryModel   string
	MaxTokens      int
	Temperature    float32
	TopP           float32
	MaxBodySize    int
}

// MailConfig represents the mail connector configuration
type MailConfig struct {
	Connector    string
	FetchWindow  time.Duration
	FetchTimeout time.Duration
	MaxResults   int
}

// GmailConfig represents the Gmail API credentials
type GmailConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	User         string
}

// IMAPConfig represents the IMAP connector configuration
type IMAPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Mailbox  string
}

// StorageConfig represents the persistence configuration
type StorageConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
	Embeddings string
}

// RedisConfig represents the Redis connection used for the embedding layer
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// ScoringConfig represents scoring and feedback behaviour
type ScoringConfig struct {
	Workers         int
	RescoreFeedback bool
}

// BriefConfig represents the digest configuration
type BriefConfig struct {
	TopN               int
	CriticalScore      float64
	Schedule           string
	WhitelistedSenders []string
}

// DeliveryConfig represents how generated briefs are delivered
type DeliveryConfig struct {
	Method    string
	Recipient string
	FileDir   string
}

// SMTPConfig represents the outbound SMTP configuration
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	StartTLS bool
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Enabled       bool
	ListenAddress string
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// GetLLM returns the LLM configuration. Embedding and summary providers fall back to llm.provider.
func (c *Config) GetLLM() LLMConfig {
	provider := c.GetString("llm.provider")
	cfg := LLMConfig{
		Provider:          provider,
		EmbeddingProvider: c.GetString("embedding.provider"),
		SummaryProvider:   c.GetString("summary.provider"),
		EmbeddingTimeout:  c.durationOr("embedding.timeout", 20*time.Second),
		SummaryTimeout:    c.durationOr("summary.timeout", 60*time.Second),
	}
	if cfg.EmbeddingProvider == "" {
		cfg.EmbeddingProvider = provider
	}
	if cfg.SummaryProvider == "" {
		cfg.SummaryProvider = provider
	}
	return cfg
}

// GetBreaker returns the circuit breaker settings under prefix ("embedding" or "summary")
func (c *Config) GetBreaker(prefix string) BreakerConfig {
	return BreakerConfig{
		Enabled:     c.GetBool(prefix + ".breaker.enabled"),
		MaxFailures: uint32(c.GetInt(prefix + ".breaker.max_failures")),
		OpenTimeout: c.durationOr(prefix+".breaker.open_timeout", time.Minute),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:         c.GetString("bedrock.region"),
		EmbeddingModel: c.GetString("bedrock.embedding_model"),
		SummaryModel:   c.GetString("bedrock.summary_model"),
		MaxTokens:      c.GetInt("bedrock.max_tokens"),
		Temperature:    float32(c.GetFloat64("bedrock.temperature")),
		TopP:           float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize:    c.GetInt("bedrock.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:         c.GetString("gemini.api_key"),
		EmbeddingModel: c.GetString("gemini.embedding_model"),
		SummaryModel:   c.GetString("gemini.summary_model"),
		MaxTokens:      c.GetInt("gemini.max_tokens"),
		Temperature:    float32(c.GetFloat64("gemini.temperature")),
		TopP:           float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize:    c.GetInt("gemini.max_body_size"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:         c.GetString("openai.api_key"),
		BaseURL:        c.GetString("openai.base_url"),
		EmbeddingModel: c.GetString("openai.embedding_model"),
		SummaryModel:   c.GetString("openai.summary_model"),
		MaxTokens:      c.GetInt("openai.max_tokens"),
		Temperature:    float32(c.GetFloat64("openai.temperature")),
		TopP:           float32(c.GetFloat64("openai.top_p")),
		MaxBodySize:    c.GetInt("openai.max_body_size"),
	}
}

// GetMail returns the mail connector configuration
func (c *Config) GetMail() MailConfig {
	return MailConfig{
		Connector:    c.GetString("mail.connector"),
		FetchWindow:  c.durationOr("mail.fetch_window", 48*time.Hour),
		FetchTimeout: c.durationOr("mail.fetch_timeout", time.Minute),
		MaxResults:   c.GetInt("mail.max_results"),
	}
}

// GetGmail returns the Gmail configuration
func (c *Config) GetGmail() GmailConfig {
	return GmailConfig{
		ClientID:     c.GetString("gmail.client_id"),
		ClientSecret: c.GetString("gmail.client_secret"),
		RefreshToken: c.GetString("gmail.refresh_token"),
		User:         c.GetString("gmail.user"),
	}
}

// GetIMAP returns the IMAP configuration
func (c *Config) GetIMAP() IMAPConfig {
	return IMAPConfig{
		Host:     c.GetString("imap.host"),
		Port:     c.GetInt("imap.port"),
		Username: c.GetString("imap.username"),
		Password: c.GetString("imap.password"),
		Mailbox:  c.GetString("imap.mailbox"),
	}
}

// GetStorage returns the storage configuration
func (c *Config) GetStorage() StorageConfig {
	return StorageConfig{
		Type:       c.GetString("storage.type"),
		SQLitePath: c.GetString("storage.sqlite_path"),
		MySQLDSN:   c.GetString("storage.mysql_dsn"),
		Embeddings: c.GetString("storage.embeddings"),
	}
}

// GetRedis returns the Redis configuration
func (c *Config) GetRedis() RedisConfig {
	return RedisConfig{
		Addr:      c.GetString("redis.addr"),
		Password:  c.GetString("redis.password"),
		DB:        c.GetInt("redis.db"),
		KeyPrefix: c.GetString("redis.key_prefix"),
	}
}

// GetScoring returns the scoring configuration
func (c *Config) GetScoring() ScoringConfig {
	return ScoringConfig{
		Workers:         c.GetInt("scoring.workers"),
		RescoreFeedback: c.GetBool("feedback.rescore"),
	}
}

// GetBrief returns the brief configuration
func (c *Config) GetBrief() BriefConfig {
	return BriefConfig{
		TopN:               c.GetInt("brief.top_n"),
		CriticalScore:      c.GetFloat64("brief.critical_score"),
		Schedule:           c.GetString("brief.schedule"),
		WhitelistedSenders: c.GetStringSlice("brief.whitelisted_senders"),
	}
}

// GetDelivery returns the delivery configuration
func (c *Config) GetDelivery() DeliveryConfig {
	return DeliveryConfig{
		Method:    c.GetString("delivery.method"),
		Recipient: c.GetString("delivery.recipient"),
		FileDir:   c.GetString("delivery.file_dir"),
	}
}

// GetSMTP returns the SMTP configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Host:     c.GetString("smtp.host"),
		Port:     c.GetInt("smtp.port"),
		Username: c.GetString("smtp.username"),
		Password: c.GetString("smtp.password"),
		From:     c.GetString("smtp.from"),
		StartTLS: c.GetBool("smtp.starttls"),
	}
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		Enabled:       c.GetBool("server.enabled"),
		ListenAddress: c.GetString("server.listen_address"),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}

func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil {
		return fallback
	}
	return d
}
