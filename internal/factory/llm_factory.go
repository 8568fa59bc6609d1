package factory

import (
	"errors"
	"fmt"
	"io"

	"github.com/mikey/llm-daily-brief/internal/adapters/resilience"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"go.uber.org/zap"
)

// LLMClient is a provider client serving both LLM ports
type LLMClient interface {
	core.Embedder
	core.Summarizer
}

// LLMFactory creates the embedder and summarizer, sharing one client per provider
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	clients       map[string]LLMClient
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
		clients:       make(map[string]LLMClient),
	}
}

// CreateLLMClient returns the client for provider, creating it on first use
func (f *LLMFactory) CreateLLMClient(provider string) (LLMClient, error) {
	if client, ok := f.clients[provider]; ok {
		return client, nil
	}

	var client LLMClient
	var err error
	switch provider {
	case "bedrock":
		client, err = NewBedrockFactory(f.cfg, f.logger, f.textProcessor).CreateLLMClient()
	case "gemini":
		client, err = NewGeminiFactory(f.cfg, f.logger, f.textProcessor).CreateLLMClient()
	case "openai":
		client, err = NewOpenAIFactory(f.cfg, f.logger, f.textProcessor).CreateLLMClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
	if err != nil {
		return nil, err
	}

	f.clients[provider] = client
	return client, nil
}

// CreateEmbedder returns the configured embedder, behind a circuit breaker when enabled
func (f *LLMFactory) CreateEmbedder() (core.Embedder, error) {
	llmCfg := f.cfg.GetLLM()
	client, err := f.CreateLLMClient(llmCfg.EmbeddingProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	breaker := f.cfg.GetBreaker("embedding")
	if !breaker.Enabled {
		return client, nil
	}
	return resilience.NewBreakerEmbedder(client, breaker, f.logger), nil
}

// CreateSummarizer returns the configured summarizer, behind a circuit breaker when enabled
func (f *LLMFactory) CreateSummarizer() (core.Summarizer, error) {
	llmCfg := f.cfg.GetLLM()
	client, err := f.CreateLLMClient(llmCfg.SummaryProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create summarizer: %w", err)
	}

	breaker := f.cfg.GetBreaker("summary")
	if !breaker.Enabled {
		return client, nil
	}
	return resilience.NewBreakerSummarizer(client, breaker, f.logger), nil
}

// Close releases every client that holds resources
func (f *LLMFactory) Close() error {
	var errs []error
	for provider, client := range f.clients {
		if closer, ok := client.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close %s client: %w", provider, err))
			}
		}
	}
	return errors.Join(errs...)
}
