package core_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mikey/llm-daily-brief/internal/adapters/storage"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/whitelist"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, ranked []core.Message, topN int) (string, error) {
	args := m.Called(ctx, ranked, topN)
	return args.String(0), args.Error(1)
}

type MockDelivery struct {
	mock.Mock
}

func (m *MockDelivery) Deliver(ctx context.Context, brief *core.Brief, recipient string) error {
	return m.Called(ctx, brief, recipient).Error(0)
}

func (m *MockDelivery) Method() string {
	return "mock"
}

type staticConnector struct {
	msgs []core.Message
	err  error
}

func (c *staticConnector) FetchRecent(_ context.Context, _ time.Duration) ([]core.Message, error) {
	return c.msgs, c.err
}

func (c *staticConnector) Close() error { return nil }

type BriefServiceSuite struct {
	suite.Suite
	ctx        context.Context
	store      *storage.MemoryStore
	summarizer *MockSummarizer
	delivery   *MockDelivery
	connector  *staticConnector
	service    *core.BriefService
}

func (s *BriefServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = storage.NewMemoryStore(zap.NewNop())
	s.summarizer = new(MockSummarizer)
	s.delivery = new(MockDelivery)
	s.connector = &staticConnector{}

	s.service = core.NewBriefService(
		s.store,
		s.connector,
		newScorer(s.store, nil),
		s.summarizer,
		s.delivery,
		whitelist.NewChecker([]string{"partner.org"}, zap.NewNop()),
		core.BriefOptions{
			FetchWindow:   48 * time.Hour,
			TopN:          2,
			CriticalScore: 0.7,
			Workers:       3,
			Recipient:     "me@example.com",
		},
		zap.NewNop(),
		nil,
	)
}

func (s *BriefServiceSuite) save(msgs ...*core.Message) {
	for _, msg := range msgs {
		_, err := s.store.SaveMessage(s.ctx, msg)
		s.Require().NoError(err)
	}
}

func (s *BriefServiceSuite) TestGenerateSelectsAboveThreshold() {
	scores := []float64{0.9, 0.8, 0.5, 0.4, 0.3, 0.2, 0.1}
	for i, score := range scores {
		s.save(message(fmt.Sprintf("m%d", i), fmt.Sprintf("user%d@example.com", i), "Subject", score))
	}
	s.save(message("vip", "Partner <ceo@partner.org>", "Catch up", 0.05))
	s.summarizer.On("Summarize", mock.Anything, mock.Anything, 2).Return("<p>summary</p>", nil)

	brief, err := s.service.Generate(s.ctx)
	s.Require().NoError(err)

	// 8 messages: rank 8/7 = 1, the second highest score
	s.InDelta(0.8, brief.Threshold, 1e-9)
	s.Require().Len(brief.Selected, 2)
	s.Equal("m0", brief.Selected[0].ID)
	s.Equal("vip", brief.Selected[1].ID)
	s.Equal("<p>summary</p>", brief.Text)
	s.Empty(brief.SummaryError)
	s.NotEmpty(brief.ID)

	s.Equal(8, brief.Stats.TotalMessages)
	s.Equal(2, brief.Stats.SelectedCount)
	s.Equal(6, brief.Stats.FilteredCount)
	s.Equal(2, brief.Stats.CriticalCount)
	s.False(brief.Stats.FallbackUsed)
	s.InDelta(0.9, brief.Stats.TopScore, 1e-9)
	s.InDelta(0.05, brief.Stats.LowScore, 1e-9)
	s.InDelta(core.NeutralRatio, brief.Stats.Categories[core.CategoryOther].Reputation, 1e-9)
	s.summarizer.AssertExpectations(s.T())
}

func (s *BriefServiceSuite) TestGenerateFallsBackToTopN() {
	s.save(
		message("a", "a@example.com", "A", 0.3),
		message("b", "b@example.com", "B", 0.2),
		message("c", "c@example.com", "C", 0.1),
	)
	s.summarizer.On("Summarize", mock.Anything, mock.Anything, 2).Return("summary", nil)

	brief, err := s.service.Generate(s.ctx)
	s.Require().NoError(err)

	s.Equal(core.ThresholdFloor, brief.Threshold)
	s.True(brief.Stats.FallbackUsed)
	s.Require().Len(brief.Selected, 2)
	s.Equal("a", brief.Selected[0].ID)
	s.Equal("b", brief.Selected[1].ID)
}

func (s *BriefServiceSuite) TestTopNPreference() {
	s.save(
		message("a", "a@example.com", "A", 0.3),
		message("b", "b@example.com", "B", 0.2),
	)
	s.Require().NoError(s.service.SetPreference(s.ctx, core.PrefBriefTopN, "1"))
	s.summarizer.On("Summarize", mock.Anything, mock.Anything, 1).Return("summary", nil)

	brief, err := s.service.Generate(s.ctx)
	s.Require().NoError(err)
	s.Len(brief.Selected, 1)
}

func (s *BriefServiceSuite) TestSummarizerFailureUsesFallbackText() {
	s.save(message("a", "a@example.com", "Budget review", 0.3))
	s.summarizer.On("Summarize", mock.Anything, mock.Anything, 2).Return("", errors.New("model overloaded"))

	brief, err := s.service.Generate(s.ctx)
	s.Require().NoError(err)

	s.Equal(core.FallbackText(brief.Selected), brief.Text)
	s.Contains(brief.Text, "Budget review")
	s.Equal("model overloaded", brief.SummaryError)
}

func (s *BriefServiceSuite) TestGenerateEmpty() {
	brief, err := s.service.Generate(s.ctx)
	s.Require().NoError(err)

	s.Empty(brief.Selected)
	s.Equal(core.FallbackText(nil), brief.Text)
	s.summarizer.AssertNotCalled(s.T(), "Summarize", mock.Anything, mock.Anything, mock.Anything)
}

func (s *BriefServiceSuite) TestDeliverRecordsAttempt() {
	brief := &core.Brief{ID: "b1", GeneratedAt: time.Now()}
	s.delivery.On("Deliver", mock.Anything, brief, "me@example.com").Return(nil).Once()

	s.Require().NoError(s.service.Deliver(s.ctx, brief))

	records, err := s.store.ListDeliveries(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal("b1", records[0].BriefID)
	s.Equal("mock", records[0].Method)
	s.Equal(core.DeliveryStatusSent, records[0].Status)
}

func (s *BriefServiceSuite) TestDeliverFailureIsRecorded() {
	brief := &core.Brief{ID: "b2", GeneratedAt: time.Now()}
	s.Require().NoError(s.service.SetPreference(s.ctx, core.PrefDeliveryEmail, "other@example.com"))
	s.delivery.On("Deliver", mock.Anything, brief, "other@example.com").Return(errors.New("connection refused"))

	err := s.service.Deliver(s.ctx, brief)
	s.Error(err)

	records, err := s.store.ListDeliveries(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(core.DeliveryStatusFailed, records[0].Status)
	s.Equal("connection refused", records[0].Error)
}

func (s *BriefServiceSuite) TestFetchStoresValidMessages() {
	s.connector.msgs = []core.Message{
		*message("a", "a@example.com", "A", 0),
		*message("b", "b@example.com", "B", 0),
		{ID: "bad", Sender: "", ReceivedAt: time.Now()},
	}

	n, err := s.service.Fetch(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	n, err = s.service.Fetch(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, n)

	_, err = s.store.GetMessage(s.ctx, "bad")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *BriefServiceSuite) TestFetchError() {
	s.connector.err = errors.New("imap down")
	_, err := s.service.Fetch(s.ctx)
	s.Error(err)
}

func (s *BriefServiceSuite) TestScoreRecent() {
	s.save(
		message("a", "a@example.com", "Urgent: contract", 0),
		message("b", "b@example.com", "Weekly newsletter", 0),
	)

	report, err := s.service.ScoreRecent(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, report.Scored)
	s.Equal(0, report.Failed)
	s.NotEmpty(report.RunID)

	a, err := s.store.GetMessage(s.ctx, "a")
	s.Require().NoError(err)
	s.InDelta(0.6, a.Score, 1e-9)

	b, err := s.store.GetMessage(s.ctx, "b")
	s.Require().NoError(err)
	s.InDelta(0.4, b.Score, 1e-9)
}

func (s *BriefServiceSuite) TestScoreRecentTimeoutKeepsPreviousScore() {
	s.save(message("slow", "a@example.com", "Urgent: contract", 0.77))

	hanging := &countingEmbedder{vec: core.Vector{1, 0}, release: make(chan struct{})}
	defer close(hanging.release)
	cache := core.NewEmbeddingCache(s.store, hanging, 50*time.Millisecond, zap.NewNop(), nil)
	service := core.NewBriefService(
		s.store, nil, core.NewScorer(s.store, s.store, cache, zap.NewNop()), nil, nil, nil,
		core.BriefOptions{FetchWindow: 48 * time.Hour, TopN: 2, Workers: 1},
		zap.NewNop(), nil,
	)

	report, err := service.ScoreRecent(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, report.Scored)
	s.Equal(1, report.Failed)

	msg, err := s.store.GetMessage(s.ctx, "slow")
	s.Require().NoError(err)
	s.InDelta(0.77, msg.Score, 1e-9)
}

func (s *BriefServiceSuite) TestRunContinuesAfterFetchFailure() {
	s.connector.err = errors.New("imap down")
	s.save(message("a", "a@example.com", "A", 0))
	s.summarizer.On("Summarize", mock.Anything, mock.Anything, 2).Return("summary", nil)
	s.delivery.On("Deliver", mock.Anything, mock.Anything, "me@example.com").Return(nil)

	brief, err := s.service.Run(s.ctx)
	s.Require().NoError(err)
	s.Len(brief.Selected, 1)
	s.delivery.AssertExpectations(s.T())
}

func (s *BriefServiceSuite) TestSetPreferenceValidation() {
	s.Error(s.service.SetPreference(s.ctx, core.PrefBriefTopN, "zero"))
	s.Error(s.service.SetPreference(s.ctx, core.PrefBriefTopN, "0"))
	s.Error(s.service.SetPreference(s.ctx, core.PrefDeliveryEmail, "not-an-address"))
	s.Error(s.service.SetPreference(s.ctx, " ", "x"))
	s.NoError(s.service.SetPreference(s.ctx, "theme", "dark"))

	prefs, err := s.service.Preferences(s.ctx)
	s.Require().NoError(err)
	s.Equal(map[string]string{"theme": "dark"}, prefs)
}

func TestBriefServiceSuite(t *testing.T) {
	suite.Run(t, new(BriefServiceSuite))
}

func TestFallbackText(t *testing.T) {
	assert.Equal(t, "No important messages in this period.", core.FallbackText(nil))

	msgs := make([]core.Message, 7)
	for i := range msgs {
		msgs[i] = *message(fmt.Sprintf("m%d", i), "a@example.com", fmt.Sprintf("Subject %d", i), 0)
	}

	text := core.FallbackText(msgs)
	assert.True(t, strings.HasPrefix(text, "7 important messages. Top subjects:\n"))
	assert.Contains(t, text, "5. Subject 4 (a@example.com)")
	assert.NotContains(t, text, "Subject 5")
}
