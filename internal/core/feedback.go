package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mikey/llm-daily-brief/internal/metrics"
	"go.uber.org/zap"
)

const maxNotesLength = 2000

// FeedbackInput is a user judgment as submitted by a surface
type FeedbackInput struct {
	MessageID string   `json:"message_id"`
	Positive  *bool    `json:"important"`
	Priority  Priority `json:"priority,omitempty"`
	Category  string   `json:"category,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Validate checks the submission before anything is recorded
func (in *FeedbackInput) Validate() error {
	if strings.TrimSpace(in.MessageID) == "" {
		return fmt.Errorf("%w: message id is required", ErrInvalidFeedback)
	}
	if in.Positive == nil {
		return fmt.Errorf("%w: important must be true or false", ErrInvalidFeedback)
	}
	if !in.Priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidFeedback, in.Priority)
	}
	if len(in.Notes) > maxNotesLength {
		return fmt.Errorf("%w: notes exceed %d bytes", ErrInvalidFeedback, maxNotesLength)
	}
	return nil
}

// FeedbackResult describes what a submission changed
type FeedbackResult struct {
	Feedback Feedback `json:"feedback"`
	Orphaned bool     `json:"orphaned"`
	Sender   string   `json:"sender,omitempty"`
	Category string   `json:"category,omitempty"`
	// CategoryRecorded is false when the sender counter moved but the category counter did not
	CategoryRecorded bool    `json:"category_recorded"`
	Rescored         bool    `json:"rescored"`
	PreviousScore    float64 `json:"previous_score"`
	Score            float64 `json:"score"`
}

// FeedbackService records user judgments and folds them into reputation
type FeedbackService struct {
	messages   MessageRepository
	feedback   FeedbackRepository
	reputation ReputationStore
	scorer     *Scorer
	rescore    bool
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewFeedbackService creates a new feedback service
func NewFeedbackService(
	messages MessageRepository,
	feedback FeedbackRepository,
	reputation ReputationStore,
	scorer *Scorer,
	rescore bool,
	logger *zap.Logger,
	m *metrics.Metrics,
) *FeedbackService {
	if m == nil {
		m = metrics.NewNop()
	}
	return &FeedbackService{
		messages:   messages,
		feedback:   feedback,
		reputation: reputation,
		scorer:     scorer,
		rescore:    rescore,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Submit appends the feedback record, updates sender then category reputation
// and, when enabled, rescores the message. Feedback for an unknown message is
// kept but does not touch reputation.
func (s *FeedbackService) Submit(ctx context.Context, in FeedbackInput) (*FeedbackResult, error) {
	in.MessageID = strings.TrimSpace(in.MessageID)
	in.Category = strings.TrimSpace(in.Category)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := in.Validate(); err != nil {
		return nil, err
	}

	positive := *in.Positive
	fb := Feedback{
		MessageID: in.MessageID,
		Positive:  positive,
		Priority:  in.Priority,
		Category:  in.Category,
		Notes:     in.Notes,
		CreatedAt: s.now(),
	}
	if err := s.feedback.AppendFeedback(ctx, &fb); err != nil {
		return nil, fmt.Errorf("failed to record feedback: %w", err)
	}
	s.metrics.FeedbackSubmitted.WithLabelValues(judgment(positive)).Inc()

	result := &FeedbackResult{Feedback: fb}

	msg, err := s.messages.GetMessage(ctx, in.MessageID)
	if errors.Is(err, ErrNotFound) {
		s.logger.Warn("Feedback references unknown message",
			zap.String("message_id", in.MessageID),
			zap.Int64("feedback_id", fb.ID))
		s.metrics.FeedbackOrphaned.Inc()
		result.Orphaned = true
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load message: %w", err)
	}

	result.Sender = SenderIdentity(msg.Sender)
	result.PreviousScore = msg.Score
	result.Score = msg.Score

	if err := s.reputation.RecordFeedback(ctx, ReputationSender, result.Sender, positive); err != nil {
		return nil, fmt.Errorf("failed to update sender reputation: %w", err)
	}

	// the feedback record and sender counter stay committed; a category
	// failure only clears CategoryRecorded
	category := Categorize(msg.Sender, msg.Subject)
	result.Category = category
	if err := s.reputation.RecordFeedback(ctx, ReputationCategory, category, positive); err != nil {
		s.logger.Error("Failed to update category reputation",
			zap.String("message_id", msg.ID),
			zap.String("category", category),
			zap.Error(err))
	} else {
		result.CategoryRecorded = true
	}

	s.logger.Info("Recorded feedback",
		zap.String("message_id", msg.ID),
		zap.String("sender", result.Sender),
		zap.String("category", category),
		zap.Bool("important", positive))

	if !s.rescore || s.scorer == nil {
		return result, nil
	}

	score, err := s.scorer.Score(ctx, msg)
	if err != nil {
		s.logger.Warn("Failed to rescore message after feedback, keeping previous score",
			zap.String("message_id", msg.ID),
			zap.Error(err))
		return result, nil
	}
	if err := s.messages.UpdateScore(ctx, msg.ID, score); err != nil {
		s.logger.Error("Failed to store rescored message", zap.String("message_id", msg.ID), zap.Error(err))
		return result, nil
	}

	result.Rescored = true
	result.Score = score
	return result, nil
}

// History returns every feedback record for a message
func (s *FeedbackService) History(ctx context.Context, messageID string) ([]Feedback, error) {
	return s.feedback.ListFeedback(ctx, messageID)
}

func judgment(positive bool) string {
	if positive {
		return "important"
	}
	return "not_important"
}
