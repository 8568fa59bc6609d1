package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

// StoreSuite runs the same behaviour checks against every core.Storage backend
type StoreSuite struct {
	suite.Suite
	newStore func() (core.Storage, error)
	store    core.Storage
	ctx      context.Context
}

func (s *StoreSuite) SetupTest() {
	store, err := s.newStore()
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
}

func (s *StoreSuite) TearDownTest() {
	s.NoError(s.store.Close())
}

func (s *StoreSuite) message(id string, score float64, received time.Time) *core.Message {
	return &core.Message{
		ID:         id,
		Sender:     "Boss <boss@co.com>",
		Subject:    "Subject " + id,
		ReceivedAt: received,
		Preview:    "preview",
		Body:       "body",
		Score:      score,
	}
}

func (s *StoreSuite) TestSaveMessageIsInsertIfAbsent() {
	now := time.Now().Truncate(time.Millisecond)
	inserted, err := s.store.SaveMessage(s.ctx, s.message("m1", 0, now))
	s.Require().NoError(err)
	s.True(inserted)

	s.Require().NoError(s.store.UpdateScore(s.ctx, "m1", 0.8))

	// a refetch must not reset the score
	inserted, err = s.store.SaveMessage(s.ctx, s.message("m1", 0, now))
	s.Require().NoError(err)
	s.False(inserted)

	msg, err := s.store.GetMessage(s.ctx, "m1")
	s.Require().NoError(err)
	s.Equal(0.8, msg.Score)
	s.Equal("Boss <boss@co.com>", msg.Sender)
	s.True(now.Equal(msg.ReceivedAt))
}

func (s *StoreSuite) TestGetMessageNotFound() {
	_, err := s.store.GetMessage(s.ctx, "missing")
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.store.UpdateScore(s.ctx, "missing", 0.5), core.ErrNotFound)
}

func (s *StoreSuite) TestRecentMessagesOrderedByScore() {
	now := time.Now()
	for _, m := range []*core.Message{
		s.message("old", 0.99, now.Add(-72*time.Hour)),
		s.message("low", 0.1, now.Add(-time.Hour)),
		s.message("high", 0.9, now.Add(-2*time.Hour)),
		s.message("mid", 0.5, now.Add(-3*time.Hour)),
	} {
		_, err := s.store.SaveMessage(s.ctx, m)
		s.Require().NoError(err)
	}

	msgs, err := s.store.RecentMessages(s.ctx, now.Add(-48*time.Hour))
	s.Require().NoError(err)
	s.Require().Len(msgs, 3)
	s.Equal("high", msgs[0].ID)
	s.Equal("mid", msgs[1].ID)
	s.Equal("low", msgs[2].ID)
}

func (s *StoreSuite) TestEmbeddingsRoundTrip() {
	_, err := s.store.GetEmbedding(s.ctx, "m1")
	s.ErrorIs(err, core.ErrNotFound)

	vec := core.Vector{0.25, -1.5, 3}
	s.Require().NoError(s.store.SaveEmbedding(s.ctx, "m1", vec))

	got, err := s.store.GetEmbedding(s.ctx, "m1")
	s.Require().NoError(err)
	s.Equal(vec, got)

	s.Require().NoError(s.store.DeleteEmbedding(s.ctx, "m1"))
	_, err = s.store.GetEmbedding(s.ctx, "m1")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *StoreSuite) TestFeedbackLog() {
	now := time.Now().Truncate(time.Millisecond)
	records := []core.Feedback{
		{MessageID: "a", Positive: true, Priority: core.PriorityHigh, CreatedAt: now},
		{MessageID: "b", Positive: false, Notes: "noise", CreatedAt: now},
		{MessageID: "a", Positive: false, CreatedAt: now},
		{MessageID: "c", Positive: true, Category: "work", CreatedAt: now},
	}
	for i := range records {
		s.Require().NoError(s.store.AppendFeedback(s.ctx, &records[i]))
		s.NotZero(records[i].ID)
	}

	history, err := s.store.ListFeedback(s.ctx, "a")
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.True(history[0].Positive)
	s.Equal(core.PriorityHigh, history[0].Priority)
	s.False(history[1].Positive)

	index, err := s.store.FeedbackIndex(s.ctx)
	s.Require().NoError(err)
	s.Len(index, 3)
	s.False(index["a"])
	s.True(index.Has("b"))

	ids, err := s.store.PositiveMessageIDs(s.ctx)
	s.Require().NoError(err)
	s.ElementsMatch([]string{"a", "c"}, ids)
}

func (s *StoreSuite) TestReputationCounters() {
	ratio, err := s.store.ReputationRatio(s.ctx, core.ReputationSender, "boss@co.com")
	s.Require().NoError(err)
	s.Equal(0.5, ratio)

	for _, positive := range []bool{true, true, true, false} {
		s.Require().NoError(s.store.RecordFeedback(s.ctx, core.ReputationSender, "boss@co.com", positive))
	}
	s.Require().NoError(s.store.RecordFeedback(s.ctx, core.ReputationCategory, "boss@co.com", false))

	rep, err := s.store.Reputation(s.ctx, core.ReputationSender, "boss@co.com")
	s.Require().NoError(err)
	s.Equal(int64(3), rep.Positive)
	s.Equal(int64(1), rep.Negative)

	ratio, err = s.store.ReputationRatio(s.ctx, core.ReputationSender, "boss@co.com")
	s.Require().NoError(err)
	s.Equal(0.75, ratio)

	// category keyspace is independent
	ratio, err = s.store.ReputationRatio(s.ctx, core.ReputationCategory, "boss@co.com")
	s.Require().NoError(err)
	s.Equal(0.0, ratio)

	snap, err := s.store.Snapshot(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), snap.Reputation(core.ReputationSender, "boss@co.com").Positive)

	// later updates do not leak into an existing snapshot
	s.Require().NoError(s.store.RecordFeedback(s.ctx, core.ReputationSender, "boss@co.com", true))
	s.Equal(int64(3), snap.Reputation(core.ReputationSender, "boss@co.com").Positive)
}

func (s *StoreSuite) TestConcurrentRecordFeedback() {
	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.RecordFeedback(s.ctx, core.ReputationSender, "busy@example.com", true))
		}()
	}
	wg.Wait()

	rep, err := s.store.Reputation(s.ctx, core.ReputationSender, "busy@example.com")
	s.Require().NoError(err)
	s.Equal(int64(n), rep.Positive)
}

func (s *StoreSuite) TestPreferences() {
	_, err := s.store.GetPreference(s.ctx, core.PrefBriefTopN)
	s.ErrorIs(err, core.ErrNotFound)

	s.Require().NoError(s.store.SetPreference(s.ctx, core.PrefBriefTopN, "5"))
	s.Require().NoError(s.store.SetPreference(s.ctx, core.PrefBriefTopN, "7"))

	value, err := s.store.GetPreference(s.ctx, core.PrefBriefTopN)
	s.Require().NoError(err)
	s.Equal("7", value)

	prefs, err := s.store.ListPreferences(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]string{core.PrefBriefTopN: "7"}, prefs)
}

func (s *StoreSuite) TestDeliveries() {
	now := time.Now()
	for _, status := range []string{core.DeliveryStatusFailed, core.DeliveryStatusSent} {
		rec := &core.DeliveryRecord{BriefID: "b-" + status, Method: "smtp", Status: status, CreatedAt: now}
		s.Require().NoError(s.store.RecordDelivery(s.ctx, rec))
		s.NotZero(rec.ID)
	}

	recs, err := s.store.ListDeliveries(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(core.DeliveryStatusSent, recs[0].Status)
}

func TestMemoryStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() (core.Storage, error) {
		return NewMemoryStore(zap.NewNop()), nil
	}})
}

func TestSQLiteStore(t *testing.T) {
	suite.Run(t, &StoreSuite{newStore: func() (core.Storage, error) {
		return NewSQLiteStore(":memory:", zap.NewNop())
	}})
}
