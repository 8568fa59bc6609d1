package core

import (
	"context"
	"time"
)

// MessageRepository stores fetched messages and their scores
type MessageRepository interface {
	// SaveMessage stores a message if it is not already present
	SaveMessage(ctx context.Context, msg *Message) (bool, error)

	// GetMessage returns ErrNotFound for unknown ids
	GetMessage(ctx context.Context, id string) (*Message, error)

	// RecentMessages returns messages received at or after since, highest score first
	RecentMessages(ctx context.Context, since time.Time) ([]Message, error)

	// UpdateScore replaces the stored score of a message
	UpdateScore(ctx context.Context, id string, score float64) error
}

// EmbeddingRepository stores one vector per message id
type EmbeddingRepository interface {
	// GetEmbedding returns ErrNotFound when no vector is cached
	GetEmbedding(ctx context.Context, messageID string) (Vector, error)

	SaveEmbedding(ctx context.Context, messageID string, vec Vector) error

	DeleteEmbedding(ctx context.Context, messageID string) error
}

// FeedbackRepository is the append-only feedback log
type FeedbackRepository interface {
	AppendFeedback(ctx context.Context, fb *Feedback) error

	ListFeedback(ctx context.Context, messageID string) ([]Feedback, error)

	// FeedbackIndex returns every message id with feedback and its latest judgment
	FeedbackIndex(ctx context.Context) (FeedbackIndex, error)

	// PositiveMessageIDs returns ids with at least one positive feedback record
	PositiveMessageIDs(ctx context.Context) ([]string, error)
}

// ReputationReader looks up reputation ratios
type ReputationReader interface {
	ReputationRatio(ctx context.Context, kind ReputationKind, key string) (float64, error)
}

// ReputationStore holds the sender and category feedback aggregates
type ReputationStore interface {
	ReputationReader

	// RecordFeedback increments exactly one counter for the key
	RecordFeedback(ctx context.Context, kind ReputationKind, key string, positive bool) error

	// Reputation returns the zero aggregate for unknown keys
	Reputation(ctx context.Context, kind ReputationKind, key string) (Reputation, error)

	// Snapshot returns a read-consistent copy of all aggregates
	Snapshot(ctx context.Context) (*ReputationSnapshot, error)
}

// PreferenceRepository stores user preference key-values
type PreferenceRepository interface {
	// GetPreference returns ErrNotFound for unset keys
	GetPreference(ctx context.Context, key string) (string, error)

	SetPreference(ctx context.Context, key, value string) error

	ListPreferences(ctx context.Context) (map[string]string, error)
}

// DeliveryRepository records brief delivery attempts
type DeliveryRepository interface {
	RecordDelivery(ctx context.Context, rec *DeliveryRecord) error

	ListDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
}

// Storage is the full persistence surface used by the services
type Storage interface {
	MessageRepository
	EmbeddingRepository
	FeedbackRepository
	ReputationStore
	PreferenceRepository
	DeliveryRepository

	Close() error
}

// Embedder computes a text embedding
type Embedder interface {
	// Embed returns an empty vector when the provider produced no data
	Embed(ctx context.Context, text string) (Vector, error)
}

// Summarizer turns a ranked list of messages into brief text
type Summarizer interface {
	Summarize(ctx context.Context, ranked []Message, topN int) (string, error)
}

// MailConnector fetches recent messages from the user's mailbox
type MailConnector interface {
	// FetchRecent returns messages received within the window, never partial records
	FetchRecent(ctx context.Context, window time.Duration) ([]Message, error)

	Close() error
}

// BriefDelivery sends a generated brief to the user
type BriefDelivery interface {
	Deliver(ctx context.Context, brief *Brief, recipient string) error

	Method() string
}

// SenderMatcher reports senders whose messages always enter the brief
type SenderMatcher interface {
	IsWhitelisted(sender string) bool
}
