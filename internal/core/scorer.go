package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"go.uber.org/zap"
)

const (
	senderWeight     = 0.4
	similarityWeight = 0.4
	// neutralSimilarity is used when there is nothing to compare against
	neutralSimilarity = similarityWeight / 2

	keywordBaseline = 0.1
	keywordDelta    = 0.1
	keywordMax      = 0.2
)

var (
	positiveKeywords = []string{"urgent", "important", "action required", "deadline", "meeting"}
	negativeKeywords = []string{"unsubscribe", "newsletter", "promotion", "spam"}
)

// Scorer computes the importance score of a message
type Scorer struct {
	reputation ReputationStore
	feedback   FeedbackRepository
	embeddings *EmbeddingCache
	logger     *zap.Logger
}

// NewScorer creates a new scorer
func NewScorer(
	reputation ReputationStore,
	feedback FeedbackRepository,
	embeddings *EmbeddingCache,
	logger *zap.Logger,
) *Scorer {
	return &Scorer{
		reputation: reputation,
		feedback:   feedback,
		embeddings: embeddings,
		logger:     logger,
	}
}

// Score computes the score of msg against the current reputation and feedback state
func (s *Scorer) Score(ctx context.Context, msg *Message) (float64, error) {
	b, err := s.Explain(ctx, msg)
	if err != nil {
		return 0, err
	}
	return b.Total, nil
}

// Explain computes the score of msg and returns each factor's contribution
func (s *Scorer) Explain(ctx context.Context, msg *Message) (*ScoreBreakdown, error) {
	positives, err := s.positiveEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	return s.score(ctx, msg, s.reputation, positives)
}

// Batch scores many messages against one reputation snapshot and one positive set
type Batch struct {
	scorer    *Scorer
	snapshot  *ReputationSnapshot
	positives []Vector
}

// NewBatch snapshots the state shared by every message scored in the batch
func (s *Scorer) NewBatch(ctx context.Context) (*Batch, error) {
	snapshot, err := s.reputation.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot reputation: %w", err)
	}
	positives, err := s.positiveEmbeddings(ctx)
	if err != nil {
		return nil, err
	}
	return &Batch{scorer: s, snapshot: snapshot, positives: positives}, nil
}

// Score computes the score of msg. It is safe for concurrent use.
func (b *Batch) Score(ctx context.Context, msg *Message) (*ScoreBreakdown, error) {
	return b.scorer.score(ctx, msg, b.snapshot, b.positives)
}

// PositiveCount returns the size of the positive-feedback set used by the batch
func (b *Batch) PositiveCount() int {
	return len(b.positives)
}

func (s *Scorer) score(ctx context.Context, msg *Message, reputation ReputationReader, positives []Vector) (*ScoreBreakdown, error) {
	ratio, err := reputation.ReputationRatio(ctx, ReputationSender, SenderIdentity(msg.Sender))
	if err != nil {
		return nil, fmt.Errorf("failed to read sender reputation: %w", err)
	}

	b := &ScoreBreakdown{
		MessageID: msg.ID,
		Sender:    ratio * senderWeight,
		Keyword:   KeywordFactor(msg.Subject),
	}

	b.Similarity, b.Neutral, err = s.similarity(ctx, msg, positives)
	if err != nil {
		return nil, err
	}

	b.Total = clamp(b.Sender+b.Similarity+b.Keyword, 0, 1)
	return b, nil
}

// similarity returns the similarity contribution and whether the neutral value was used
func (s *Scorer) similarity(ctx context.Context, msg *Message, positives []Vector) (float64, bool, error) {
	vec, err := s.embeddings.GetOrCompute(ctx, msg.ID, msg.EmbeddingText())
	if err != nil {
		if errors.Is(err, ErrEmbeddingUnavailable) {
			s.logger.Debug("No embedding available, using neutral similarity", zap.String("message_id", msg.ID))
			return neutralSimilarity, true, nil
		}
		return 0, false, fmt.Errorf("failed to embed message %s: %w", msg.ID, err)
	}

	if len(positives) == 0 {
		return neutralSimilarity, true, nil
	}

	best := 0.0
	compared := 0
	for _, pos := range positives {
		sim, err := CosineSimilarity(vec, pos)
		if err != nil {
			s.logger.Debug("Skipping degenerate comparison",
				zap.String("message_id", msg.ID),
				zap.Error(err))
			continue
		}
		compared++
		best = math.Max(best, sim)
	}
	if compared == 0 {
		return neutralSimilarity, true, nil
	}
	return best * similarityWeight, false, nil
}

func (s *Scorer) positiveEmbeddings(ctx context.Context) ([]Vector, error) {
	ids, err := s.feedback.PositiveMessageIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list positive feedback: %w", err)
	}

	vecs := make([]Vector, 0, len(ids))
	for _, id := range ids {
		vec, err := s.embeddings.Lookup(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to load embedding for %s: %w", id, err)
		}
		vecs = append(vecs, vec)
	}
	return vecs, nil
}

// KeywordFactor returns the keyword contribution of a subject, in [0, 0.2].
// No keyword yields 0.1, a positive keyword 0.2, a negative keyword 0 and both 0.1.
func KeywordFactor(subject string) float64 {
	subject = strings.ToLower(subject)

	delta := 0.0
	if containsAny(subject, positiveKeywords) {
		delta += keywordDelta
	}
	if containsAny(subject, negativeKeywords) {
		delta -= keywordDelta
	}
	return clamp(delta+keywordBaseline, 0, keywordMax)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
