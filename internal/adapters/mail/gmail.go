package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConnector fetches messages through the Gmail API
type GmailConnector struct {
	service       *gmail.Service
	user          string
	maxResults    int64
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGmailConnector creates a connector authenticated with a stored refresh token
func NewGmailConnector(
	ctx context.Context,
	cfg config.GmailConfig,
	maxResults int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GmailConnector, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RefreshToken == "" {
		return nil, fmt.Errorf("%w: gmail credentials are not set", core.ErrNotConfigured)
	}

	oauth2Config := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Scopes:       []string{gmail.GmailReadonlyScope},
		Endpoint:     google.Endpoint,
	}
	tokenSource := oauth2Config.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})

	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return NewGmailConnectorWithService(service, cfg.User, maxResults, logger, textProcessor), nil
}

// NewGmailConnectorWithService wraps an existing Gmail service
func NewGmailConnectorWithService(
	service *gmail.Service,
	user string,
	maxResults int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *GmailConnector {
	if user == "" {
		user = "me"
	}
	if maxResults <= 0 {
		maxResults = 100
	}
	return &GmailConnector{
		service:       service,
		user:          user,
		maxResults:    int64(maxResults),
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// FetchRecent lists messages received within window and loads each in full
func (c *GmailConnector) FetchRecent(ctx context.Context, window time.Duration) ([]core.Message, error) {
	query := fmt.Sprintf("after:%d", time.Now().Add(-window).Unix())

	response, err := c.service.Users.Messages.List(c.user).Q(query).MaxResults(c.maxResults).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]core.Message, 0, len(response.Messages))
	for _, ref := range response.Messages {
		full, err := c.service.Users.Messages.Get(c.user, ref.Id).Format("full").Context(ctx).Do()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("failed to get message %s: %w", ref.Id, ctx.Err())
			}
			c.logger.Warn("Failed to get message", zap.String("message_id", ref.Id), zap.Error(err))
			continue
		}

		raw, err := parseGmailMessage(full)
		if err != nil {
			c.logger.Warn("Failed to parse message", zap.String("message_id", ref.Id), zap.Error(err))
			continue
		}
		messages = append(messages, raw.toMessage(c.textProcessor))
	}

	c.logger.Debug("Fetched messages from Gmail",
		zap.Int("listed", len(response.Messages)),
		zap.Int("parsed", len(messages)))

	return messages, nil
}

// Close is a no-op; the Gmail service holds no connection
func (c *GmailConnector) Close() error {
	return nil
}

// parseGmailMessage extracts headers and body parts from a full-format message
func parseGmailMessage(msg *gmail.Message) (rawMessage, error) {
	raw := rawMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}
	if msg.InternalDate > 0 {
		raw.ReceivedAt = time.UnixMilli(msg.InternalDate)
	}
	if msg.Payload == nil {
		return raw, fmt.Errorf("message %s has no payload", msg.Id)
	}

	for _, header := range msg.Payload.Headers {
		switch strings.ToLower(header.Name) {
		case "from":
			raw.From = header.Value
		case "subject":
			raw.Subject = header.Value
		}
	}

	if err := parseGmailBody(msg.Payload, &raw); err != nil {
		return raw, err
	}
	return raw, nil
}

// parseGmailBody walks the MIME tree keeping the first text/plain and text/html parts
func parseGmailBody(part *gmail.MessagePart, raw *rawMessage) error {
	if part.Body != nil && part.Body.Data != "" {
		data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(part.Body.Data, "="))
		if err != nil {
			return fmt.Errorf("failed to decode body data: %w", err)
		}

		switch part.MimeType {
		case "text/plain":
			if raw.Plain == "" {
				raw.Plain = string(data)
			}
		case "text/html":
			if raw.HTML == "" {
				raw.HTML = string(data)
			}
		}
	}

	for _, sub := range part.Parts {
		if err := parseGmailBody(sub, raw); err != nil {
			return err
		}
	}
	return nil
}
