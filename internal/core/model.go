package core

import (
	"fmt"
	"strings"
	"time"
)

// Message represents an email message fetched from the user's mailbox
type Message struct {
	ID         string    `json:"id"`
	ThreadID   string    `json:"thread_id,omitempty"`
	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	ReceivedAt time.Time `json:"received_at"`
	Preview    string    `json:"preview"`
	Body       string    `json:"body,omitempty"`
	Score      float64   `json:"score"`
}

// Validate checks the message at the ingestion boundary
func (m *Message) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidMessage)
	}
	if strings.TrimSpace(m.Sender) == "" {
		return fmt.Errorf("%w: message %s has no sender", ErrInvalidMessage, m.ID)
	}
	if m.Score < 0 || m.Score > 1 {
		return fmt.Errorf("%w: message %s score %f out of range", ErrInvalidMessage, m.ID, m.Score)
	}
	if m.ReceivedAt.IsZero() {
		return fmt.Errorf("%w: message %s has no timestamp", ErrInvalidMessage, m.ID)
	}
	return nil
}

// EmbeddingText returns the text the message embedding is computed from
func (m *Message) EmbeddingText() string {
	return strings.TrimSpace(m.Subject + " " + m.Preview)
}

// Vector is a fixed-length embedding
type Vector []float32

// Priority is the optional priority label on a feedback record
type Priority string

const (
	PriorityNone   Priority = ""
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priority labels
func (p Priority) Valid() bool {
	switch p {
	case PriorityNone, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// Feedback is an immutable user judgment about a message
type Feedback struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"message_id"`
	Positive  bool      `json:"positive"`
	Priority  Priority  `json:"priority,omitempty"`
	Category  string    `json:"category,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// FeedbackIndex maps message ids that carry feedback to their latest judgment
type FeedbackIndex map[string]bool

// Has reports whether any feedback exists for the message
func (f FeedbackIndex) Has(messageID string) bool {
	_, ok := f[messageID]
	return ok
}

// ReputationKind selects the reputation keyspace
type ReputationKind string

const (
	ReputationSender   ReputationKind = "sender"
	ReputationCategory ReputationKind = "category"
)

// NeutralRatio is the reputation ratio of a key with no feedback
const NeutralRatio = 0.5

// Reputation holds the feedback counters for one sender or category
type Reputation struct {
	Kind     ReputationKind `json:"kind"`
	Key      string         `json:"key"`
	Positive int64          `json:"positive"`
	Negative int64          `json:"negative"`
}

// Total returns the number of feedback events folded into the reputation
func (r Reputation) Total() int64 {
	return r.Positive + r.Negative
}

// Ratio returns positive/(positive+negative), or NeutralRatio when empty
func (r Reputation) Ratio() float64 {
	total := r.Total()
	if total == 0 {
		return NeutralRatio
	}
	return float64(r.Positive) / float64(total)
}

// ScoredMessage is a message id and its current score
type ScoredMessage struct {
	ID    string
	Score float64
}

// ScoreBreakdown holds the contribution of each scoring factor
type ScoreBreakdown struct {
	MessageID  string  `json:"message_id"`
	Sender     float64 `json:"sender"`
	Similarity float64 `json:"similarity"`
	Keyword    float64 `json:"keyword"`
	Total      float64 `json:"total"`
	Neutral    bool    `json:"neutral_similarity"`
}

// ScoreReport summarises a batch scoring run
type ScoreReport struct {
	RunID    string        `json:"run_id"`
	Scored   int           `json:"scored"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// CategoryStats is the per-category breakdown of a brief
type CategoryStats struct {
	Count      int      `json:"count"`
	InBrief    int      `json:"in_brief"`
	Senders    []string `json:"senders"`
	Reputation float64  `json:"reputation"`
}

// BriefStats summarises the population a brief was selected from
type BriefStats struct {
	TotalMessages int                      `json:"total_messages"`
	SelectedCount int                      `json:"selected_count"`
	FilteredCount int                      `json:"filtered_count"`
	CriticalCount int                      `json:"critical_count"`
	FeedbackCount int                      `json:"feedback_count"`
	AverageScore  float64                  `json:"average_score"`
	TopScore      float64                  `json:"top_score"`
	LowScore      float64                  `json:"low_score"`
	FallbackUsed  bool                     `json:"fallback_used"`
	Categories    map[string]CategoryStats `json:"categories"`
}

// Brief is a generated daily digest
type Brief struct {
	ID           string     `json:"id"`
	GeneratedAt  time.Time  `json:"generated_at"`
	Threshold    float64    `json:"threshold"`
	Selected     []Message  `json:"selected"`
	Text         string     `json:"text"`
	SummaryError string     `json:"summary_error,omitempty"`
	Stats        BriefStats `json:"stats"`
}

// DeliveryRecord is one attempt to deliver a brief
type DeliveryRecord struct {
	ID        int64     `json:"id"`
	BriefID   string    `json:"brief_id"`
	Method    string    `json:"method"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)
