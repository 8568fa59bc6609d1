package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/mikey/llm-daily-brief/internal/adapters/prompt"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIClient embeds message text and writes briefs using OpenAI
type OpenAIClient struct {
	client         *openai.Client
	embeddingModel string
	summaryModel   string
	maxTokens      int
	temperature    float32
	topP           float32
	maxBodySize    int
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
}

// NewOpenAIClient creates a new OpenAI client
func NewOpenAIClient(cfg config.OpenAIConfig, logger *zap.Logger, textProcessor *utils.TextProcessor) *OpenAIClient {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIClient{
		client:         openai.NewClientWithConfig(clientConfig),
		embeddingModel: cfg.EmbeddingModel,
		summaryModel:   cfg.SummaryModel,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		topP:           cfg.TopP,
		maxBodySize:    cfg.MaxBodySize,
		logger:         logger,
		textProcessor:  textProcessor,
	}
}

// Embed returns the embedding of text, or an empty vector when OpenAI returns no data
func (c *OpenAIClient) Embed(ctx context.Context, text string) (core.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{c.textProcessor.SanitizeUTF8(text)},
		Model: openai.EmbeddingModel(c.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding with OpenAI: %w", err)
	}

	if len(resp.Data) == 0 {
		c.logger.Warn("Empty embedding response from OpenAI", zap.String("model", c.embeddingModel))
		return nil, nil
	}

	return core.Vector(resp.Data[0].Embedding), nil
}

// Summarize writes the HTML brief for the top ranked messages
func (c *OpenAIClient) Summarize(ctx context.Context, ranked []core.Message, topN int) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.summaryModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: prompt.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt.BuildBriefPrompt(ranked, topN, c.textProcessor, c.maxBodySize),
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty response from OpenAI")
	}

	c.logger.Debug("Brief summary generated",
		zap.String("model", c.summaryModel),
		zap.String("response_id", resp.ID),
		zap.Int("total_tokens", resp.Usage.TotalTokens))

	return prompt.CleanHTML(resp.Choices[0].Message.Content), nil
}

// Close releases the client; the HTTP client needs no cleanup
func (c *OpenAIClient) Close() error {
	return nil
}
