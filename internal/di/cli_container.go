package di

import (
	"flag"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/logging"
)

// CLIFlags contains all command line flags for the CLI application
type CLIFlags struct {
	// LLM provider flags
	Provider          string
	EmbeddingProvider string
	SummaryProvider   string

	// Storage flags
	StorageType string
	SQLitePath  string

	// Mail flags
	Connector string
	MailDir   string

	// Brief flags
	TopN     int
	Delivery string

	Verbose    bool
	JSONLog    bool
	ConfigFile string
}

// RegisterFlags binds the CLI flags to fs
func RegisterFlags(fs *flag.FlagSet) *CLIFlags {
	flags := &CLIFlags{}

	// LLM provider flags
	fs.StringVar(&flags.Provider, "provider", "", "LLM provider (bedrock, gemini, openai)")
	fs.StringVar(&flags.EmbeddingProvider, "embedding-provider", "", "Provider used for embeddings (defaults to -provider)")
	fs.StringVar(&flags.SummaryProvider, "summary-provider", "", "Provider used for summaries (defaults to -provider)")

	// Storage flags
	fs.StringVar(&flags.StorageType, "storage", "", "Storage backend (memory, sqlite, mysql)")
	fs.StringVar(&flags.SQLitePath, "db", "", "SQLite database path")

	// Mail flags
	fs.StringVar(&flags.Connector, "connector", "", "Mail connector (gmail, imap, file, none)")
	fs.StringVar(&flags.MailDir, "mail-dir", "", "Directory of .eml files for the file connector")

	// Brief flags
	fs.IntVar(&flags.TopN, "top", 0, "Number of messages in the brief")
	fs.StringVar(&flags.Delivery, "delivery", "", "Delivery method (smtp, file, none)")

	fs.BoolVar(&flags.Verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	fs.StringVar(&flags.ConfigFile, "config", "", "Path to config file")

	return flags
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration, with flags taking precedence over the file
	if err := container.Provide(func(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
		cfg, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		if used := cfg.GetViper().ConfigFileUsed(); used != "" {
			logger.Info("Loaded configuration from file", zap.String("file", used))
		}
		applyFlags(cfg, flags)
		return cfg, nil
	}); err != nil {
		return nil, err
	}

	// Metrics are recorded on a private registry that nothing scrapes
	if err := container.Provide(prometheus.NewRegistry); err != nil {
		return nil, err
	}

	if err := provideServices(container); err != nil {
		return nil, err
	}

	return container, nil
}

// applyFlags overrides configuration with the flags that were set
func applyFlags(cfg *config.Config, flags *CLIFlags) {
	setIf := func(key, value string) {
		if value != "" {
			cfg.Set(key, value)
		}
	}

	setIf("llm.provider", flags.Provider)
	setIf("embedding.provider", flags.EmbeddingProvider)
	setIf("summary.provider", flags.SummaryProvider)
	setIf("storage.type", flags.StorageType)
	setIf("storage.sqlite_path", flags.SQLitePath)
	setIf("mail.connector", flags.Connector)
	setIf("file.dir", flags.MailDir)
	setIf("delivery.method", flags.Delivery)
	if flags.TopN > 0 {
		cfg.Set("brief.top_n", flags.TopN)
	}
}
