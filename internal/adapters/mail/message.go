// Package mail holds the mailbox connectors feeding the brief pipeline.
package mail

import (
	"strings"
	"time"

	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/utils"
)

const (
	previewRunes = 200
	bodyRunes    = 1000
)

// rawMessage is what a connector extracted before normalization
type rawMessage struct {
	ID         string
	ThreadID   string
	From       string
	Subject    string
	ReceivedAt time.Time
	Plain      string
	HTML       string
}

// toMessage converts an extracted message into the stored form
func (r rawMessage) toMessage(tp *utils.TextProcessor) core.Message {
	text := r.Plain
	if strings.TrimSpace(text) == "" && r.HTML != "" {
		text = tp.HTMLToText(r.HTML)
	}

	return core.Message{
		ID:         strings.TrimSpace(r.ID),
		ThreadID:   r.ThreadID,
		Sender:     strings.TrimSpace(r.From),
		Subject:    tp.SanitizeUTF8(strings.TrimSpace(r.Subject)),
		ReceivedAt: r.ReceivedAt.UTC(),
		Preview:    tp.Excerpt(text, previewRunes),
		Body:       tp.Excerpt(text, bodyRunes),
	}
}

// messageIDKey strips the angle brackets of a Message-Id header
func messageIDKey(header string) string {
	return strings.Trim(strings.TrimSpace(header), "<>")
}
