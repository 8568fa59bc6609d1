package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type blockingRunner struct {
	calls   atomic.Int32
	release chan struct{}
	started chan struct{}
	err     error
}

func (r *blockingRunner) Run(ctx context.Context) (*core.Brief, error) {
	r.calls.Add(1)
	if r.started != nil {
		r.started <- struct{}{}
	}
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &core.Brief{ID: "b"}, nil
}

func TestTriggerRecordsStatus(t *testing.T) {
	runner := &blockingRunner{}
	s := NewScheduler("0 0 7 * * *", runner, zap.NewNop())

	assert.True(t, s.Trigger())
	last, count, err := s.Status()
	assert.False(t, last.IsZero())
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTriggerRecordsError(t *testing.T) {
	runner := &blockingRunner{err: errors.New("storage down")}
	s := NewScheduler("0 0 7 * * *", runner, zap.NewNop())

	assert.True(t, s.Trigger())
	_, _, err := s.Status()
	assert.EqualError(t, err, "storage down")
}

func TestOverlappingTriggerIsSkipped(t *testing.T) {
	runner := &blockingRunner{release: make(chan struct{}), started: make(chan struct{}, 1)}
	s := NewScheduler("0 0 7 * * *", runner, zap.NewNop())

	done := make(chan bool)
	go func() { done <- s.Trigger() }()
	<-runner.started

	assert.False(t, s.Trigger())

	close(runner.release)
	assert.True(t, <-done)
	assert.Equal(t, int32(1), runner.calls.Load())
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := NewScheduler("not a schedule", &blockingRunner{}, zap.NewNop())
	assert.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler("0 0 7 * * *", &blockingRunner{}, zap.NewNop())
	assert.True(t, s.NextRun().IsZero())

	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	next := s.NextRun()
	assert.Equal(t, 7, next.Hour())
	assert.True(t, next.After(time.Now()))

	assert.NoError(t, s.Stop())
	assert.NoError(t, s.Stop())
}

func TestCronFiresJob(t *testing.T) {
	runner := &blockingRunner{started: make(chan struct{}, 10)}
	s := NewScheduler("* * * * * *", runner, zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop()

	select {
	case <-runner.started:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}
}
