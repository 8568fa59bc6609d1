// Package resilience wraps the LLM ports in circuit breakers.
package resilience

import (
	"context"
	"errors"
	"time"

	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func newBreaker(name string, cfg config.BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    5 * time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// caller cancellations say nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

// IsOpen reports whether err was returned because a breaker rejected the call
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// BreakerEmbedder guards an Embedder with a circuit breaker
type BreakerEmbedder struct {
	next core.Embedder
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerEmbedder wraps next
func NewBreakerEmbedder(next core.Embedder, cfg config.BreakerConfig, logger *zap.Logger) *BreakerEmbedder {
	return &BreakerEmbedder{next: next, cb: newBreaker("embedding", cfg, logger)}
}

// Embed implements core.Embedder
func (b *BreakerEmbedder) Embed(ctx context.Context, text string) (core.Vector, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Embed(ctx, text)
	})
	if err != nil {
		return nil, err
	}
	vec, _ := res.(core.Vector)
	return vec, nil
}

// State returns the breaker state
func (b *BreakerEmbedder) State() gobreaker.State {
	return b.cb.State()
}

// BreakerSummarizer guards a Summarizer with a circuit breaker
type BreakerSummarizer struct {
	next core.Summarizer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSummarizer wraps next
func NewBreakerSummarizer(next core.Summarizer, cfg config.BreakerConfig, logger *zap.Logger) *BreakerSummarizer {
	return &BreakerSummarizer{next: next, cb: newBreaker("summary", cfg, logger)}
}

// Summarize implements core.Summarizer
func (b *BreakerSummarizer) Summarize(ctx context.Context, ranked []core.Message, topN int) (string, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Summarize(ctx, ranked, topN)
	})
	if err != nil {
		return "", err
	}
	text, _ := res.(string)
	return text, nil
}

// State returns the breaker state
func (b *BreakerSummarizer) State() gobreaker.State {
	return b.cb.State()
}
