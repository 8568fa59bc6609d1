package mail

import (
	"context"
	"fmt"
	netmail "net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"go.uber.org/zap"
)

// FileConnector reads .eml files from a directory, for offline use and testing
type FileConnector struct {
	dir           string
	maxResults    int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
	now           func() time.Time
}

// NewFileConnector creates a connector over dir
func NewFileConnector(dir string, maxResults int, logger *zap.Logger, textProcessor *utils.TextProcessor) *FileConnector {
	return &FileConnector{
		dir:           dir,
		maxResults:    maxResults,
		logger:        logger,
		textProcessor: textProcessor,
		now:           time.Now,
	}
}

// FetchRecent parses every .eml file received within window, newest first
func (c *FileConnector) FetchRecent(ctx context.Context, window time.Duration) ([]core.Message, error) {
	paths, err := filepath.Glob(filepath.Join(c.dir, "*.eml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", c.dir, err)
	}

	since := c.now().Add(-window)
	messages := make([]core.Message, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := c.readFile(path)
		if err != nil {
			c.logger.Warn("Failed to parse message file", zap.String("path", path), zap.Error(err))
			continue
		}
		if raw.ReceivedAt.Before(since) {
			continue
		}
		messages = append(messages, raw.toMessage(c.textProcessor))
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].ReceivedAt.After(messages[j].ReceivedAt)
	})
	if c.maxResults > 0 && len(messages) > c.maxResults {
		messages = messages[:c.maxResults]
	}

	return messages, nil
}

// Close is a no-op
func (c *FileConnector) Close() error {
	return nil
}

func (c *FileConnector) readFile(path string) (rawMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		return rawMessage{}, err
	}
	defer f.Close()

	env, err := enmime.ReadEnvelope(f)
	if err != nil {
		return rawMessage{}, fmt.Errorf("failed to read envelope: %w", err)
	}

	raw := rawMessage{
		ID:      messageIDKey(env.GetHeader("Message-Id")),
		From:    env.GetHeader("From"),
		Subject: env.GetHeader("Subject"),
		Plain:   env.Text,
		HTML:    env.HTML,
	}
	if raw.ID == "" {
		raw.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	if date, err := netmail.ParseDate(env.GetHeader("Date")); err == nil {
		raw.ReceivedAt = date
	} else if info, statErr := f.Stat(); statErr == nil {
		raw.ReceivedAt = info.ModTime()
	}

	return raw, nil
}
