package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mikey/llm-daily-brief/internal/adapters/storage"
	"github.com/mikey/llm-daily-brief/internal/core"
	"github.com/mikey/llm-daily-brief/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type unitEmbedder struct{}

func (unitEmbedder) Embed(ctx context.Context, text string) (core.Vector, error) {
	return core.Vector{1, 1}, nil
}

type ServerSuite struct {
	suite.Suite
	store   *storage.MemoryStore
	handler http.Handler
}

func (s *ServerSuite) SetupTest() {
	logger := zap.NewNop()
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)

	s.store = storage.NewMemoryStore(logger)
	cache := core.NewEmbeddingCache(s.store, unitEmbedder{}, time.Second, logger, m)
	scorer := core.NewScorer(s.store, s.store, cache, logger)
	briefs := core.NewBriefService(s.store, nil, scorer, nil, nil, nil, core.BriefOptions{
		FetchWindow: 48 * time.Hour,
		TopN:        5,
		Workers:     2,
	}, logger, m)
	feedback := core.NewFeedbackService(s.store, s.store, s.store, scorer, true, logger, m)

	s.handler = NewServer("127.0.0.1:0", briefs, feedback, reg, logger).Handler()

	ctx := context.Background()
	for _, msg := range []core.Message{
		{ID: "m1", Sender: "Jane Boss <boss@company.com>", Subject: "Urgent: budget", ReceivedAt: time.Now().Add(-time.Hour), Preview: "sign-off", Score: 0.5},
		{ID: "m2", Sender: "news@digest.example.com", Subject: "Weekly newsletter", ReceivedAt: time.Now().Add(-2 * time.Hour), Preview: "stories", Score: 0.2},
	} {
		msg := msg
		_, err := s.store.SaveMessage(ctx, &msg)
		s.Require().NoError(err)
	}
}

func (s *ServerSuite) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *ServerSuite) TestHealth() {
	w := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"ok"`)
}

func (s *ServerSuite) TestMetrics() {
	w := s.do(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, w.Code)
}

func (s *ServerSuite) TestListMessages() {
	w := s.do(http.MethodGet, "/api/messages?hours=24", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp struct {
		Messages []core.Message `json:"messages"`
		Count    int            `json:"count"`
	}
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(2, resp.Count)
	s.Equal("m1", resp.Messages[0].ID)

	w = s.do(http.MethodGet, "/api/messages?hours=abc", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerSuite) TestGetMessage() {
	w := s.do(http.MethodGet, "/api/messages/m2", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var detail MessageDetail
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &detail))
	s.Equal("m2", detail.ID)
	s.Equal("Newsletters", detail.Category)
	s.Empty(detail.Feedback)

	w = s.do(http.MethodGet, "/api/messages/missing", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ServerSuite) TestSubmitFeedback() {
	w := s.do(http.MethodPost, "/api/messages/m1/feedback", map[string]interface{}{
		"important": true,
		"priority":  "high",
	})
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())

	var res core.FeedbackResult
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res))
	s.False(res.Orphaned)
	s.Equal("boss@company.com", res.Sender)
	s.True(res.Rescored)

	rep, err := s.store.Reputation(context.Background(), core.ReputationSender, "boss@company.com")
	s.Require().NoError(err)
	s.Equal(int64(1), rep.Positive)

	w = s.do(http.MethodGet, "/api/messages/m1", nil)
	var detail MessageDetail
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &detail))
	s.Len(detail.Feedback, 1)
}

func (s *ServerSuite) TestSubmitFeedbackInvalidPriority() {
	w := s.do(http.MethodPost, "/api/messages/m1/feedback", map[string]interface{}{
		"important": true,
		"priority":  "whenever",
	})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *ServerSuite) TestSubmitFeedbackRequiresJudgment() {
	w := s.do(http.MethodPost, "/api/messages/m1/feedback", map[string]interface{}{})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Contains(w.Body.String(), "validation_error")

	ctx := context.Background()
	rep, err := s.store.Reputation(ctx, core.ReputationSender, "boss@company.com")
	s.Require().NoError(err)
	s.Equal(int64(0), rep.Positive+rep.Negative)

	history, err := s.store.ListFeedback(ctx, "m1")
	s.Require().NoError(err)
	s.Empty(history)

	msg, err := s.store.GetMessage(ctx, "m1")
	s.Require().NoError(err)
	s.InDelta(0.5, msg.Score, 1e-9)
}

func (s *ServerSuite) TestSubmitFeedbackOrphan() {
	w := s.do(http.MethodPost, "/api/messages/ghost/feedback", map[string]interface{}{"important": false})
	s.Require().Equal(http.StatusOK, w.Code)

	var res core.FeedbackResult
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &res))
	s.True(res.Orphaned)
}

func (s *ServerSuite) TestScoreMessage() {
	w := s.do(http.MethodPost, "/api/messages/m1/score", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var b core.ScoreBreakdown
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &b))
	// neutral sender 0.2, neutral similarity 0.2, "urgent" keyword 0.2
	s.InDelta(0.6, b.Total, 1e-9)
	s.True(b.Neutral)

	w = s.do(http.MethodPost, "/api/messages/missing/score", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *ServerSuite) TestScoreRecent() {
	w := s.do(http.MethodPost, "/api/score", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var report core.ScoreReport
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &report))
	s.Equal(2, report.Scored)
	s.NotEmpty(report.RunID)
}

func (s *ServerSuite) TestFetchWithoutConnector() {
	w := s.do(http.MethodPost, "/api/fetch", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
}

func (s *ServerSuite) TestThreshold() {
	w := s.do(http.MethodGet, "/api/threshold", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp map[string]float64
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.InDelta(core.ThresholdFloor, resp["threshold"], 1e-9)
}

func (s *ServerSuite) TestBrief() {
	w := s.do(http.MethodGet, "/api/brief", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var brief core.Brief
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &brief))
	s.True(brief.Stats.FallbackUsed)
	s.Len(brief.Selected, 2)
	s.Contains(brief.Text, "Urgent: budget")
}

func (s *ServerSuite) TestCategorize() {
	w := s.do(http.MethodGet, "/api/categorize?sender=news@digest.example.com&subject=big+sale", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var resp map[string]string
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal("Newsletters", resp["category"])
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func TestStartStop(t *testing.T) {
	logger := zap.NewNop()
	store := storage.NewMemoryStore(logger)
	cache := core.NewEmbeddingCache(store, unitEmbedder{}, time.Second, logger, nil)
	scorer := core.NewScorer(store, store, cache, logger)
	briefs := core.NewBriefService(store, nil, scorer, nil, nil, nil, core.BriefOptions{}, logger, nil)
	feedback := core.NewFeedbackService(store, store, store, scorer, false, logger, nil)

	srv := NewServer("127.0.0.1:0", briefs, feedback, prometheus.NewRegistry(), logger)
	require.NoError(t, srv.Start())
	assert.NoError(t, srv.Stop())
}
