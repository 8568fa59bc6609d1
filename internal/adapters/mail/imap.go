package mail

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
	"go.uber.org/zap"
)

// IMAPConnector fetches messages from an IMAP mailbox, one session per fetch
type IMAPConnector struct {
	cfg           config.IMAPConfig
	maxResults    int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewIMAPConnector creates a new IMAP connector
func NewIMAPConnector(cfg config.IMAPConfig, maxResults int, logger *zap.Logger, textProcessor *utils.TextProcessor) (*IMAPConnector, error) {
	if cfg.Host == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: imap credentials are not set", core.ErrNotConfigured)
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPConnector{
		cfg:           cfg,
		maxResults:    maxResults,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// FetchRecent searches the mailbox for messages since now-window
func (c *IMAPConnector) FetchRecent(ctx context.Context, window time.Duration) ([]core.Message, error) {
	cl, err := client.DialTLS(fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer func() {
		if err := cl.Logout(); err != nil {
			c.logger.Debug("IMAP logout failed", zap.Error(err))
		}
	}()

	if deadline, ok := ctx.Deadline(); ok {
		cl.Timeout = time.Until(deadline)
	}

	if err := cl.Login(c.cfg.Username, c.cfg.Password); err != nil {
		return nil, fmt.Errorf("failed to login to IMAP server: %w", err)
	}

	if _, err := cl.Select(c.cfg.Mailbox, true); err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", c.cfg.Mailbox, err)
	}

	since := time.Now().Add(-window)
	criteria := imap.NewSearchCriteria()
	criteria.Since = since

	uids, err := cl.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return []core.Message{}, nil
	}
	if c.maxResults > 0 && len(uids) > c.maxResults {
		uids = uids[len(uids)-c.maxResults:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	fetched := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- cl.UidFetch(seqset, items, fetched)
	}()

	messages := make([]core.Message, 0, len(uids))
	for msg := range fetched {
		raw, err := parseIMAPMessage(msg, section)
		if err != nil {
			c.logger.Warn("Failed to parse IMAP message", zap.Uint32("uid", msg.Uid), zap.Error(err))
			continue
		}
		// SINCE has day granularity
		if raw.ReceivedAt.Before(since) {
			continue
		}
		messages = append(messages, raw.toMessage(c.textProcessor))
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return messages, nil
}

// Close is a no-op; sessions are closed after each fetch
func (c *IMAPConnector) Close() error {
	return nil
}

func parseIMAPMessage(msg *imap.Message, section *imap.BodySectionName) (rawMessage, error) {
	raw := rawMessage{
		ID:         fmt.Sprintf("imap-%d", msg.Uid),
		ReceivedAt: msg.InternalDate,
	}

	if msg.Envelope != nil {
		raw.Subject = msg.Envelope.Subject
		if id := messageIDKey(msg.Envelope.MessageId); id != "" {
			raw.ID = id
		}
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			raw.From = from.Address()
			if from.PersonalName != "" {
				raw.From = fmt.Sprintf("%s <%s>", from.PersonalName, from.Address())
			}
		}
		if raw.ReceivedAt.IsZero() {
			raw.ReceivedAt = msg.Envelope.Date
		}
	}

	r := msg.GetBody(section)
	if r == nil {
		return raw, fmt.Errorf("server did not return the message body")
	}

	entity, err := message.Read(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return raw, fmt.Errorf("failed to read message: %w", err)
	}

	if err := readEntity(entity, &raw); err != nil {
		return raw, err
	}
	return raw, nil
}

// readEntity walks a MIME entity keeping the first text/plain and text/html parts
func readEntity(entity *message.Entity, raw *rawMessage) error {
	if mr := entity.MultipartReader(); mr != nil {
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) {
				return fmt.Errorf("failed to read part: %w", err)
			}
			if err := readEntity(part, raw); err != nil {
				return err
			}
		}
		return nil
	}

	contentType, _, _ := entity.Header.ContentType()
	if contentType == "" {
		contentType = "text/plain"
	}
	if !strings.HasPrefix(contentType, "text/") {
		return nil
	}

	content, err := io.ReadAll(entity.Body)
	if err != nil {
		return fmt.Errorf("failed to read message body: %w", err)
	}

	switch contentType {
	case "text/plain":
		if raw.Plain == "" {
			raw.Plain = string(content)
		}
	case "text/html":
		if raw.HTML == "" {
			raw.HTML = string(content)
		}
	}
	return nil
}
