package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mikey/llm-daily-brief/internal/core"
	"go.uber.org/zap"
)

// MemoryStore is an in-memory implementation of core.Storage
type MemoryStore struct {
	mu          sync.RWMutex
	messages    map[string]core.Message
	embeddings  map[string]core.Vector
	feedback    []core.Feedback
	reputation  map[core.ReputationKind]map[string]core.Reputation
	preferences map[string]string
	deliveries  []core.DeliveryRecord
	logger      *zap.Logger
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		messages:    make(map[string]core.Message),
		embeddings:  make(map[string]core.Vector),
		reputation:  make(map[core.ReputationKind]map[string]core.Reputation),
		preferences: make(map[string]string),
		logger:      logger,
	}
}

// SaveMessage stores a message if it is not already present
func (s *MemoryStore) SaveMessage(_ context.Context, msg *core.Message) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.ID]; ok {
		return false, nil
	}
	s.messages[msg.ID] = *msg
	return true, nil
}

// GetMessage returns a stored message
func (s *MemoryStore) GetMessage(_ context.Context, id string) (*core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msg, ok := s.messages[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	return &msg, nil
}

// RecentMessages returns messages received at or after since, highest score first
func (s *MemoryStore) RecentMessages(_ context.Context, since time.Time) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]core.Message, 0, len(s.messages))
	for _, msg := range s.messages {
		if !msg.ReceivedAt.Before(since) {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Score != msgs[j].Score {
			return msgs[i].Score > msgs[j].Score
		}
		return msgs[i].ReceivedAt.After(msgs[j].ReceivedAt)
	})
	return msgs, nil
}

// UpdateScore replaces the stored score of a message
func (s *MemoryStore) UpdateScore(_ context.Context, id string, score float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg, ok := s.messages[id]
	if !ok {
		return core.ErrNotFound
	}
	msg.Score = score
	s.messages[id] = msg
	return nil
}

// GetEmbedding returns the cached vector for a message
func (s *MemoryStore) GetEmbedding(_ context.Context, messageID string) (core.Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vec, ok := s.embeddings[messageID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return append(core.Vector(nil), vec...), nil
}

// SaveEmbedding stores the vector for a message
func (s *MemoryStore) SaveEmbedding(_ context.Context, messageID string, vec core.Vector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.embeddings[messageID] = append(core.Vector(nil), vec...)
	return nil
}

// DeleteEmbedding removes the vector for a message
func (s *MemoryStore) DeleteEmbedding(_ context.Context, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.embeddings, messageID)
	return nil
}

// AppendFeedback appends a record to the feedback log and assigns its id
func (s *MemoryStore) AppendFeedback(_ context.Context, fb *core.Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fb.ID = int64(len(s.feedback) + 1)
	s.feedback = append(s.feedback, *fb)
	return nil
}

// ListFeedback returns the feedback records for a message in submission order
func (s *MemoryStore) ListFeedback(_ context.Context, messageID string) ([]core.Feedback, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []core.Feedback
	for _, fb := range s.feedback {
		if fb.MessageID == messageID {
			out = append(out, fb)
		}
	}
	return out, nil
}

// FeedbackIndex returns every message id with feedback and its latest judgment
func (s *MemoryStore) FeedbackIndex(_ context.Context) (core.FeedbackIndex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	index := make(core.FeedbackIndex)
	for _, fb := range s.feedback {
		index[fb.MessageID] = fb.Positive
	}
	return index, nil
}

// PositiveMessageIDs returns ids with at least one positive feedback record
func (s *MemoryStore) PositiveMessageIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var ids []string
	for _, fb := range s.feedback {
		if fb.Positive && !seen[fb.MessageID] {
			seen[fb.MessageID] = true
			ids = append(ids, fb.MessageID)
		}
	}
	return ids, nil
}

// RecordFeedback increments one reputation counter under the store lock
func (s *MemoryStore) RecordFeedback(_ context.Context, kind core.ReputationKind, key string, positive bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey, ok := s.reputation[kind]
	if !ok {
		byKey = make(map[string]core.Reputation)
		s.reputation[kind] = byKey
	}
	rep := byKey[key]
	rep.Kind, rep.Key = kind, key
	if positive {
		rep.Positive++
	} else {
		rep.Negative++
	}
	byKey[key] = rep
	return nil
}

// Reputation returns the aggregate for a key
func (s *MemoryStore) Reputation(_ context.Context, kind core.ReputationKind, key string) (core.Reputation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rep, ok := s.reputation[kind][key]; ok {
		return rep, nil
	}
	return core.Reputation{Kind: kind, Key: key}, nil
}

// ReputationRatio returns the positive ratio for a key
func (s *MemoryStore) ReputationRatio(ctx context.Context, kind core.ReputationKind, key string) (float64, error) {
	rep, err := s.Reputation(ctx, kind, key)
	if err != nil {
		return 0, err
	}
	return rep.Ratio(), nil
}

// Snapshot copies all reputation aggregates
func (s *MemoryStore) Snapshot(_ context.Context) (*core.ReputationSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reps []core.Reputation
	for _, byKey := range s.reputation {
		for _, rep := range byKey {
			reps = append(reps, rep)
		}
	}
	return core.NewReputationSnapshot(reps), nil
}

// GetPreference returns a stored preference
func (s *MemoryStore) GetPreference(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.preferences[key]
	if !ok {
		return "", core.ErrNotFound
	}
	return value, nil
}

// SetPreference stores a preference
func (s *MemoryStore) SetPreference(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preferences[key] = value
	return nil
}

// ListPreferences returns a copy of all preferences
func (s *MemoryStore) ListPreferences(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.preferences))
	for k, v := range s.preferences {
		out[k] = v
	}
	return out, nil
}

// RecordDelivery appends a delivery record and assigns its id
func (s *MemoryStore) RecordDelivery(_ context.Context, rec *core.DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec.ID = int64(len(s.deliveries) + 1)
	s.deliveries = append(s.deliveries, *rec)
	return nil
}

// ListDeliveries returns the most recent delivery records, newest first
func (s *MemoryStore) ListDeliveries(_ context.Context, limit int) ([]core.DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]core.DeliveryRecord, 0, len(s.deliveries))
	for i := len(s.deliveries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, s.deliveries[i])
	}
	return out, nil
}

// Close is a no-op for the in-memory store
func (s *MemoryStore) Close() error {
	s.logger.Debug("Closed in-memory store")
	return nil
}
