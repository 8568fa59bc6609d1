package di

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/factory"
	"github.com/mikey/llm-daily-brief/internal/logging"
	"github.com/mikey/llm-daily-brief/internal/metrics"
	"github.com/mikey/llm-daily-brief/internal/ports"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"github.com/mikey/llm-daily-brief/internal/whitelist"
)

// RunnerSet collects the long-running components registered in the "runners" group
type RunnerSet struct {
	dig.In

	Runners []ports.Runner `group:"runners"`
}

type runnerOut struct {
	dig.Out

	Runners []ports.Runner `group:"runners,flatten"`
}

// BuildContainer creates and configures the dependency injection container for the daemon
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register metrics registry
	if err := container.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		return reg
	}); err != nil {
		return nil, err
	}

	if err := provideServices(container); err != nil {
		return nil, err
	}

	// Register runners
	if err := container.Provide(factory.NewRunnerFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		f *factory.RunnerFactory,
		briefs *core.BriefService,
		feedback *core.FeedbackService,
		reg *prometheus.Registry,
	) runnerOut {
		var runners []ports.Runner
		if server := f.CreateAPIServer(briefs, feedback, reg); server != nil {
			runners = append(runners, server)
		}
		if sched := f.CreateScheduler(briefs); sched != nil {
			runners = append(runners, sched)
		}
		return runnerOut{Runners: runners}
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideServices registers everything below the configuration and logger.
// It expects *config.Config, *zap.Logger and *prometheus.Registry to be provided.
func provideServices(container *dig.Container) error {
	// Register metrics
	if err := container.Provide(func(reg *prometheus.Registry) *metrics.Metrics {
		return metrics.NewMetrics(reg)
	}); err != nil {
		return err
	}

	// Register factories
	if err := container.Provide(factory.NewTextProcessorFactory); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}
	if err := container.Provide(factory.NewLLMFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewStorageFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewMailFactory); err != nil {
		return err
	}
	if err := container.Provide(factory.NewDeliveryFactory); err != nil {
		return err
	}

	// Register storage
	if err := container.Provide(func(f *factory.StorageFactory) (core.Storage, error) {
		return f.CreateStorage()
	}); err != nil {
		return err
	}

	// Register the embedder; an unconfigured provider leaves similarity neutral
	if err := container.Provide(func(f *factory.LLMFactory, logger *zap.Logger) (core.Embedder, error) {
		embedder, err := f.CreateEmbedder()
		if errors.Is(err, core.ErrNotConfigured) {
			logger.Warn("Embedding provider not configured, similarity will be neutral", zap.Error(err))
			return nil, nil
		}
		return embedder, err
	}); err != nil {
		return err
	}

	// Register the summarizer; an unconfigured provider yields the fallback listing
	if err := container.Provide(func(f *factory.LLMFactory, logger *zap.Logger) (core.Summarizer, error) {
		summarizer, err := f.CreateSummarizer()
		if errors.Is(err, core.ErrNotConfigured) {
			logger.Warn("Summary provider not configured, briefs will use the fallback listing", zap.Error(err))
			return nil, nil
		}
		return summarizer, err
	}); err != nil {
		return err
	}

	// Register mail connector
	if err := container.Provide(func(f *factory.MailFactory, logger *zap.Logger) (core.MailConnector, error) {
		connector, err := f.CreateConnector()
		if errors.Is(err, core.ErrNotConfigured) {
			logger.Warn("Mail connector not configured, fetching is disabled", zap.Error(err))
			return nil, nil
		}
		return connector, err
	}); err != nil {
		return err
	}

	// Register brief delivery
	if err := container.Provide(func(f *factory.DeliveryFactory) (core.BriefDelivery, error) {
		return f.CreateDelivery()
	}); err != nil {
		return err
	}

	// Register sender whitelist
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) core.SenderMatcher {
		return whitelist.NewChecker(cfg.GetBrief().WhitelistedSenders, logger)
	}); err != nil {
		return err
	}

	// Register embedding cache and scorer
	if err := container.Provide(func(
		store core.Storage,
		embedder core.Embedder,
		cfg *config.Config,
		logger *zap.Logger,
		m *metrics.Metrics,
	) *core.EmbeddingCache {
		return core.NewEmbeddingCache(store, embedder, cfg.GetLLM().EmbeddingTimeout, logger, m)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(store core.Storage, cache *core.EmbeddingCache, logger *zap.Logger) *core.Scorer {
		return core.NewScorer(store, store, cache, logger)
	}); err != nil {
		return err
	}

	// Register services
	if err := container.Provide(func(
		store core.Storage,
		scorer *core.Scorer,
		cfg *config.Config,
		logger *zap.Logger,
		m *metrics.Metrics,
	) *core.FeedbackService {
		return core.NewFeedbackService(store, store, store, scorer, cfg.GetScoring().RescoreFeedback, logger, m)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(
		store core.Storage,
		connector core.MailConnector,
		scorer *core.Scorer,
		summarizer core.Summarizer,
		delivery core.BriefDelivery,
		matcher core.SenderMatcher,
		cfg *config.Config,
		logger *zap.Logger,
		m *metrics.Metrics,
	) *core.BriefService {
		return core.NewBriefService(store, connector, scorer, summarizer, delivery, matcher, BriefOptions(cfg), logger, m)
	}); err != nil {
		return err
	}

	return nil
}

// BriefOptions maps configuration onto the brief pipeline options
func BriefOptions(cfg *config.Config) core.BriefOptions {
	mailCfg := cfg.GetMail()
	briefCfg := cfg.GetBrief()
	return core.BriefOptions{
		FetchWindow:    mailCfg.FetchWindow,
		FetchTimeout:   mailCfg.FetchTimeout,
		SummaryTimeout: cfg.GetLLM().SummaryTimeout,
		TopN:           briefCfg.TopN,
		CriticalScore:  briefCfg.CriticalScore,
		Workers:        cfg.GetScoring().Workers,
		Recipient:      cfg.GetDelivery().Recipient,
	}
}
