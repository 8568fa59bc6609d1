package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/mikey/llm-daily-brief/internal/adapters/prompt"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"go.uber.org/zap"
)

// InvokeModelAPI is the part of the Bedrock runtime client used here
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient embeds message text and writes briefs using Amazon Bedrock
type BedrockClient struct {
	client         InvokeModelAPI
	embeddingModel string
	summaryModel   string
	maxTokens      int
	temperature    float32
	topP           float32
	maxBodySize    int
	logger         *zap.Logger
	textProcessor  *utils.TextProcessor
}

// NewBedrockClient creates a new Bedrock client
func NewBedrockClient(
	client InvokeModelAPI,
	cfg config.BedrockConfig,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *BedrockClient {
	return &BedrockClient{
		client:         client,
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

// Embed returns the Titan embedding of text
func (c *BedrockClient) Embed(ctx context.Context, text string) (core.Vector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"inputText": c.textProcessor.SanitizeUTF8(text),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding payload: %w", err)
	}

	body, err := c.invoke(ctx, c.embeddingModel, payload)
	if err != nil {
		return nil, err
	}

	var embedResp struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &embedResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal embedding response: %w", err)
	}

	if len(embedResp.Embedding) == 0 {
		c.logger.Warn("Empty embedding response from Bedrock", zap.String("model", c.embeddingModel))
		return nil, nil
	}

	return core.Vector(embedResp.Embedding), nil
}

// Summarize writes the HTML brief for the top ranked messages
func (c *BedrockClient) Summarize(ctx context.Context, ranked []core.Message, topN int) (string, error) {
	text := prompt.SystemPrompt + "\n\n" + prompt.BuildBriefPrompt(ranked, topN, c.textProcessor, c.maxBodySize)

	var payload []byte
	var err error

	if c.isAnthropicModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":               "\n\nHuman: " + text + "\n\nAssistant:",
			"max_tokens_to_sample": c.maxTokens,
			"temperature":          c.temperature,
			"top_p":                c.topP,
		})
	} else if c.isAmazonTitanModel() {
		payload, err = json.Marshal(map[string]interface{}{
			"inputText": text,
			"textGenerationConfig": map[string]interface{}{
				"maxTokenCount": c.maxTokens,
				"temperature":   c.temperature,
				"topP":          c.topP,
			},
		})
	} else {
		payload, err = json.Marshal(map[string]interface{}{
			"prompt":      text,
			"max_tokens":  c.maxTokens,
			"temperature": c.temperature,
			"top_p":       c.topP,
		})
	}
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	body, err := c.invoke(ctx, c.summaryModel, payload)
	if err != nil {
		return "", err
	}

	responseText, err := c.extractText(body)
	if err != nil {
		return "", err
	}

	return prompt.CleanHTML(responseText), nil
}

func (c *BedrockClient) invoke(ctx context.Context, modelID string, payload []byte) ([]byte, error) {
	resp, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        payload,
		Accept:      aws.String("application/json"),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke Bedrock model %s: %w", modelID, err)
	}
	return resp.Body, nil
}

// extractText reads the completion out of the model-specific response body
func (c *BedrockClient) extractText(body []byte) (string, error) {
	if c.isAnthropicModel() {
		var claudeResp struct {
			Completion string `json:"completion"`
		}
		if err := json.Unmarshal(body, &claudeResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Claude response: %w", err)
		}
		return claudeResp.Completion, nil
	}

	if c.isAmazonTitanModel() {
		var titanResp struct {
			Results []struct {
				OutputText string `json:"outputText"`
			} `json:"results"`
		}
		if err := json.Unmarshal(body, &titanResp); err != nil {
			return "", fmt.Errorf("failed to unmarshal Titan response: %w", err)
		}
		if len(titanResp.Results) == 0 {
			return "", fmt.Errorf("empty response from Titan model")
		}
		return titanResp.Results[0].OutputText, nil
	}

	var genericResp struct {
		Output   string `json:"output"`
		Text     string `json:"text"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(body, &genericResp); err != nil {
		return "", fmt.Errorf("failed to unmarshal generic response: %w", err)
	}

	switch {
	case genericResp.Output != "":
		return genericResp.Output, nil
	case genericResp.Text != "":
		return genericResp.Text, nil
	case genericResp.Response != "":
		return genericResp.Response, nil
	default:
		return string(body), nil
	}
}

// isAnthropicModel checks if the summary model is an Anthropic Claude model
func (c *BedrockClient) isAnthropicModel() bool {
	return strings.HasPrefix(c.summaryModel, "anthropic.claude")
}

// isAmazonTitanModel checks if the summary model is an Amazon Titan model
func (c *BedrockClient) isAmazonTitanModel() bool {
	return strings.HasPrefix(c.summaryModel, "amazon.titan")
}
