package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/mikey/llm-daily-brief/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// EmbeddingCache returns the embedding of a message, computing it at most once per id
type EmbeddingCache struct {
	repo     EmbeddingRepository
	embedder Embedder
	timeout  time.Duration
	group    singleflight.Group
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

// NewEmbeddingCache creates a new embedding cache
func NewEmbeddingCache(
	repo EmbeddingRepository,
	embedder Embedder,
	timeout time.Duration,
	logger *zap.Logger,
	m *metrics.Metrics,
) *EmbeddingCache {
	if m == nil {
		m = metrics.NewNop()
	}
	return &EmbeddingCache{
		repo:     repo,
		embedder: embedder,
		timeout:  timeout,
		logger:   logger,
		metrics:  m,
	}
}

// GetOrCompute returns the cached vector for messageID, or embeds text and caches the result.
// The text is only used on a miss; a cached id is never recomputed.
func (c *EmbeddingCache) GetOrCompute(ctx context.Context, messageID, text string) (Vector, error) {
	vec, err := c.repo.GetEmbedding(ctx, messageID)
	if err == nil {
		c.metrics.EmbeddingRequests.WithLabelValues("hit").Inc()
		return vec, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to read cached embedding: %w", err)
	}

	// the flight outlives any single caller; only the cache timeout bounds it
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(messageID, func() (interface{}, error) {
		// a flight that finished between our lookup and DoChan has already stored the vector
		if cached, err := c.repo.GetEmbedding(flightCtx, messageID); err == nil {
			return cached, nil
		}
		return c.compute(flightCtx, messageID, text)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("Joined in-flight embedding computation", zap.String("message_id", messageID))
		}
		return res.Val.(Vector), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, ctx.Err())
	}
}

func (c *EmbeddingCache) compute(ctx context.Context, messageID, text string) (Vector, error) {
	if c.embedder == nil {
		c.metrics.EmbeddingRequests.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: no embedding provider configured", ErrEmbeddingUnavailable)
	}

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	vec, err := c.embedder.Embed(callCtx, text)
	if err != nil {
		c.metrics.EmbeddingRequests.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	if magnitude(vec) == 0 {
		c.metrics.EmbeddingRequests.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: provider returned no data for message %s", ErrEmbeddingUnavailable, messageID)
	}

	if err := c.repo.SaveEmbedding(ctx, messageID, vec); err != nil {
		return nil, fmt.Errorf("failed to store embedding: %w", err)
	}
	c.metrics.EmbeddingRequests.WithLabelValues("computed").Inc()
	c.logger.Debug("Computed embedding",
		zap.String("message_id", messageID),
		zap.Int("dimensions", len(vec)))
	return vec, nil
}

// Lookup returns the cached vector without computing one
func (c *EmbeddingCache) Lookup(ctx context.Context, messageID string) (Vector, error) {
	return c.repo.GetEmbedding(ctx, messageID)
}

// Invalidate drops the cached vector so the next GetOrCompute recomputes it
func (c *EmbeddingCache) Invalidate(ctx context.Context, messageID string) error {
	if err := c.repo.DeleteEmbedding(ctx, messageID); err != nil {
		return fmt.Errorf("failed to invalidate embedding: %w", err)
	}
	c.group.Forget(messageID)
	return nil
}

// CosineSimilarity returns the normalized dot product of a and b, in [-1, 1]
func CosineSimilarity(a, b Vector) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, ErrZeroMagnitude
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push identical vectors just past 1
	return math.Max(-1, math.Min(1, sim)), nil
}

func magnitude(v Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
