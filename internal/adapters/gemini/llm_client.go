package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/llm-daily-brief/internal/adapters/prompt"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiClient embeds message text and writes briefs using Google Gemini
type GeminiClient struct {
	client         *genai.Client
	model          *genai.GenerativeModel
	embedder       *genai.EmbeddingModel
	embeddingModel string
	summaryModel   string
	maxBodySize    int
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(
	ctx context.Context,
	cfg config.GeminiConfig,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.SummaryModel)
	model.SetTemperature(cfg.Temperature)
	model.SetTopP(cfg.TopP)
	model.SetMaxOutputTokens(int32(cfg.MaxTokens))
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(prompt.SystemPrompt)},
	}

	return &GeminiClient{
		client:         client,
		model:          model,
		embedder:       client.EmbeddingModel(cfg.EmbeddingModel),
		embeddingModel: cfg.EmbeddingModel,
		summaryModel:   cfg.SummaryModel,
		maxBodySize:    cfg.MaxBodySize,
		logger:         logger,
		textProcessor:  textProcessor,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Embed returns the embedding of text, or an empty vector when Gemini returns no data
func (c *GeminiClient) Embed(ctx context.Context, text string) (core.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	res, err := c.embedder.EmbedContent(ctx, genai.Text(c.textProcessor.SanitizeUTF8(text)))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content with Gemini: %w", err)
	}

	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		c.logger.Warn("Empty embedding response from Gemini", zap.String("model", c.embeddingModel))
		return nil, nil
	}

	return core.Vector(res.Embedding.Values), nil
}

// Summarize writes the HTML brief for the top ranked messages
func (c *GeminiClient) Summarize(ctx context.Context, ranked []core.Message, topN int) (string, error) {
	text := prompt.BuildBriefPrompt(ranked, topN, c.textProcessor, c.maxBodySize)

	resp, err := c.model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	c.logger.Debug("Brief summary generated", zap.String("model", c.summaryModel))

	return prompt.CleanHTML(sb.String()), nil
}
