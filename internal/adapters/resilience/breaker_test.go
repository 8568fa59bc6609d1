package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mikey/llm-daily-brief/internal/config"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyEmbedder struct {
	calls int
	err   error
}

func (f *flakyEmbedder) Embed(ctx context.Context, text string) (core.Vector, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return core.Vector{1, 2}, nil
}

type staticSummarizer struct {
	calls int
	err   error
}

func (s *staticSummarizer) Summarize(ctx context.Context, ranked []core.Message, topN int) (string, error) {
	s.calls++
	return "<p>ok</p>", s.err
}

func TestBreakerEmbedderPassesThrough(t *testing.T) {
	inner := &flakyEmbedder{}
	b := NewBreakerEmbedder(inner, config.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, zap.NewNop())

	vec, err := b.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, core.Vector{1, 2}, vec)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}

func TestBreakerEmbedderOpensAfterFailures(t *testing.T) {
	inner := &flakyEmbedder{err: errors.New("provider down")}
	b := NewBreakerEmbedder(inner, config.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}, zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := b.Embed(context.Background(), "hello")
		assert.ErrorContains(t, err, "provider down")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Embed(context.Background(), "hello")
	assert.True(t, IsOpen(err))
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	inner := &flakyEmbedder{err: context.Canceled}
	b := NewBreakerEmbedder(inner, config.BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute}, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := b.Embed(context.Background(), "hello")
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerEmbedderEmptyVector(t *testing.T) {
	b := NewBreakerEmbedder(emptyEmbedder{}, config.BreakerConfig{}, zap.NewNop())
	vec, err := b.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Empty(t, vec)
}

type emptyEmbedder struct{}

func (emptyEmbedder) Embed(ctx context.Context, text string) (core.Vector, error) {
	return nil, nil
}

func TestBreakerSummarizer(t *testing.T) {
	inner := &staticSummarizer{}
	b := NewBreakerSummarizer(inner, config.BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute}, zap.NewNop())

	text, err := b.Summarize(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Equal(t, "<p>ok</p>", text)

	inner.err = errors.New("quota")
	_, err = b.Summarize(context.Background(), nil, 10)
	assert.Error(t, err)

	_, err = b.Summarize(context.Background(), nil, 10)
	assert.True(t, IsOpen(err))
	assert.Equal(t, 2, inner.calls)
}
