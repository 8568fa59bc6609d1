package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mikey/llm-daily-brief/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Preference keys understood by the brief service
const (
	PrefBriefTopN     = "brief_top_n"
	PrefDeliveryEmail = "delivery_email"
)

const (
	fallbackSubjects  = 5
	maxCategorySender = 5
)

// BriefOptions configures the brief pipeline
type BriefOptions struct {
	FetchWindow    time.Duration
	FetchTimeout   time.Duration
	SummaryTimeout time.Duration
	TopN           int
	CriticalScore  float64
	Workers        int
	Recipient      string
}

// BriefService fetches, scores and summarises the user's recent mail
type BriefService struct {
	store      Storage
	connector  MailConnector
	scorer     *Scorer
	summarizer Summarizer
	delivery   BriefDelivery
	whitelist  SenderMatcher
	opts       BriefOptions
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewBriefService creates a new brief service. connector, summarizer,
// delivery and whitelist may be nil.
func NewBriefService(
	store Storage,
	connector MailConnector,
	scorer *Scorer,
	summarizer Summarizer,
	delivery BriefDelivery,
	whitelist SenderMatcher,
	opts BriefOptions,
	logger *zap.Logger,
	m *metrics.Metrics,
) *BriefService {
	if m == nil {
		m = metrics.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.TopN < 1 {
		opts.TopN = 10
	}
	return &BriefService{
		store:      store,
		connector:  connector,
		scorer:     scorer,
		summarizer: summarizer,
		delivery:   delivery,
		whitelist:  whitelist,
		opts:       opts,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// Fetch pulls recent mail from the connector and stores new messages.
// It returns the number of messages that were not already stored.
func (s *BriefService) Fetch(ctx context.Context) (int, error) {
	if s.connector == nil {
		return 0, fmt.Errorf("mail connector: %w", ErrNotConfigured)
	}

	fetchCtx, cancel := withTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	msgs, err := s.connector.FetchRecent(fetchCtx, s.opts.FetchWindow)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch messages: %w", err)
	}

	stored := 0
	for i := range msgs {
		msg := &msgs[i]
		if err := msg.Validate(); err != nil {
			s.logger.Warn("Dropping invalid message", zap.Error(err))
			s.metrics.MessagesRejected.Inc()
			continue
		}

		inserted, err := s.store.SaveMessage(ctx, msg)
		if err != nil {
			return stored, fmt.Errorf("failed to store message %s: %w", msg.ID, err)
		}
		if inserted {
			stored++
		}
	}

	s.metrics.MessagesFetched.Add(float64(stored))
	s.logger.Info("Fetched messages",
		zap.Int("fetched", len(msgs)),
		zap.Int("new", stored),
		zap.Duration("window", s.opts.FetchWindow))
	return stored, nil
}

// ScoreRecent rescores every message in the fetch window with a bounded worker pool.
// A message whose score cannot be computed keeps its previous score.
func (s *BriefService) ScoreRecent(ctx context.Context) (*ScoreReport, error) {
	start := s.now()
	report := &ScoreReport{RunID: uuid.NewString()}
	logger := s.logger.With(zap.String("run_id", report.RunID))

	msgs, err := s.store.RecentMessages(ctx, start.Add(-s.opts.FetchWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}

	batch, err := s.scorer.NewBatch(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Scoring messages",
		zap.Int("messages", len(msgs)),
		zap.Int("positive_examples", batch.PositiveCount()),
		zap.Int("workers", s.opts.Workers))

	var scored, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.opts.Workers)

	for i := range msgs {
		msg := &msgs[i]
		g.Go(func() error {
			if ctx.Err() != nil {
				failed.Add(1)
				return nil
			}

			b, err := batch.Score(ctx, msg)
			if err != nil {
				logger.Warn("Failed to score message, keeping previous score",
					zap.String("message_id", msg.ID),
					zap.Float64("previous_score", msg.Score),
					zap.Error(err))
				s.metrics.ScoreFailures.Inc()
				failed.Add(1)
				return nil
			}

			if err := s.store.UpdateScore(ctx, msg.ID, b.Total); err != nil {
				logger.Error("Failed to store score", zap.String("message_id", msg.ID), zap.Error(err))
				s.metrics.ScoreFailures.Inc()
				failed.Add(1)
				return nil
			}

			s.metrics.MessagesScored.Inc()
			s.metrics.ScoreValue.Observe(b.Total)
			scored.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Scored = int(scored.Load())
	report.Failed = int(failed.Load())
	report.Duration = s.now().Sub(start)
	s.metrics.ScoringDuration.Observe(report.Duration.Seconds())

	logger.Info("Scoring complete",
		zap.Int("scored", report.Scored),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration))

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// ScoreMessage rescores a single stored message and persists the result
func (s *BriefService) ScoreMessage(ctx context.Context, id string) (*ScoreBreakdown, error) {
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	b, err := s.scorer.Explain(ctx, msg)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateScore(ctx, msg.ID, b.Total); err != nil {
		return nil, fmt.Errorf("failed to store score: %w", err)
	}
	return b, nil
}

// Threshold computes the current brief threshold over the fetch window
func (s *BriefService) Threshold(ctx context.Context) (float64, error) {
	msgs, err := s.Recent(ctx, s.opts.FetchWindow)
	if err != nil {
		return 0, err
	}
	index, err := s.store.FeedbackIndex(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load feedback index: %w", err)
	}
	return SelectThreshold(population(msgs), index), nil
}

// Recent returns stored messages received within window, highest score first
func (s *BriefService) Recent(ctx context.Context, window time.Duration) ([]Message, error) {
	msgs, err := s.store.RecentMessages(ctx, s.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	return msgs, nil
}

// Message returns a stored message
func (s *BriefService) Message(ctx context.Context, id string) (*Message, error) {
	return s.store.GetMessage(ctx, id)
}

// Generate selects the messages above the adaptive threshold and summarises them.
// Summarizer failures produce a plain fallback text instead of an error.
func (s *BriefService) Generate(ctx context.Context) (*Brief, error) {
	now := s.now()

	msgs, err := s.store.RecentMessages(ctx, now.Add(-s.opts.FetchWindow))
	if err != nil {
		return nil, fmt.Errorf("failed to load recent messages: %w", err)
	}
	sortByScore(msgs)

	index, err := s.store.FeedbackIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback index: %w", err)
	}

	threshold := SelectThreshold(population(msgs), index)
	topN := s.topN(ctx)

	selected := make([]Message, 0)
	for _, msg := range msgs {
		if msg.Score > threshold || (s.whitelist != nil && s.whitelist.IsWhitelisted(msg.Sender)) {
			selected = append(selected, msg)
		}
	}

	fallback := false
	if len(selected) == 0 && len(msgs) > 0 {
		selected = append(selected, msgs[:min(topN, len(msgs))]...)
		fallback = true
	}

	brief := &Brief{
		ID:          uuid.NewString(),
		GeneratedAt: now,
		Threshold:   threshold,
		Selected:    selected,
	}
	brief.Stats, err = s.stats(ctx, msgs, selected, index, fallback)
	if err != nil {
		return nil, err
	}

	brief.Text, err = s.summarize(ctx, selected, topN)
	if err != nil {
		s.logger.Warn("Summarizer failed, using fallback brief", zap.Error(err))
		s.metrics.SummaryFailures.Inc()
		brief.SummaryError = err.Error()
		brief.Text = FallbackText(selected)
	}

	s.metrics.Threshold.Set(threshold)
	s.metrics.BriefSize.Set(float64(len(selected)))
	s.logger.Info("Generated brief",
		zap.String("brief_id", brief.ID),
		zap.Float64("threshold", threshold),
		zap.Int("total", len(msgs)),
		zap.Int("selected", len(selected)),
		zap.Bool("fallback", fallback))
	return brief, nil
}

// Deliver sends the brief through the configured delivery and records the attempt.
// It is a no-op without a delivery or recipient.
func (s *BriefService) Deliver(ctx context.Context, brief *Brief) error {
	if s.delivery == nil {
		return nil
	}
	recipient := s.recipient(ctx)
	if recipient == "" {
		s.logger.Warn("No delivery recipient configured, skipping delivery", zap.String("brief_id", brief.ID))
		return nil
	}

	rec := &DeliveryRecord{
		BriefID:   brief.ID,
		Method:    s.delivery.Method(),
		Status:    DeliveryStatusSent,
		CreatedAt: s.now(),
	}
	deliverErr := s.delivery.Deliver(ctx, brief, recipient)
	if deliverErr != nil {
		rec.Status = DeliveryStatusFailed
		rec.Error = deliverErr.Error()
	}
	s.metrics.DeliveryAttempts.WithLabelValues(rec.Method, rec.Status).Inc()

	if err := s.store.RecordDelivery(ctx, rec); err != nil {
		s.logger.Error("Failed to record delivery", zap.String("brief_id", brief.ID), zap.Error(err))
	}
	if deliverErr != nil {
		return fmt.Errorf("failed to deliver brief: %w", deliverErr)
	}

	s.logger.Info("Delivered brief",
		zap.String("brief_id", brief.ID),
		zap.String("method", rec.Method),
		zap.String("recipient", recipient))
	return nil
}

// Run is the daily job: fetch, score, generate and deliver.
// Fetch, scoring and delivery failures are logged and the run continues with stored data.
func (s *BriefService) Run(ctx context.Context) (*Brief, error) {
	if s.connector != nil {
		if _, err := s.Fetch(ctx); err != nil {
			s.logger.Error("Fetch failed, continuing with stored messages", zap.Error(err))
		}
	}

	if _, err := s.ScoreRecent(ctx); err != nil {
		s.logger.Error("Scoring failed, continuing with stored scores", zap.Error(err))
	}

	brief, err := s.Generate(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.Deliver(ctx, brief); err != nil {
		s.logger.Error("Delivery failed", zap.String("brief_id", brief.ID), zap.Error(err))
	}

	s.metrics.BriefRunsCompleted.Inc()
	return brief, nil
}

// Preferences returns all stored user preferences
func (s *BriefService) Preferences(ctx context.Context) (map[string]string, error) {
	return s.store.ListPreferences(ctx)
}

// SetPreference validates and stores a user preference
func (s *BriefService) SetPreference(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	switch key {
	case PrefBriefTopN:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
	case PrefDeliveryEmail:
		if value != "" && !strings.Contains(value, "@") {
			return fmt.Errorf("%s must be an email address, got %q", key, value)
		}
	case "":
		return errors.New("preference key is required")
	}
	return s.store.SetPreference(ctx, key, value)
}

func (s *BriefService) summarize(ctx context.Context, selected []Message, topN int) (string, error) {
	if s.summarizer == nil || len(selected) == 0 {
		return FallbackText(selected), nil
	}

	sumCtx, cancel := withTimeout(ctx, s.opts.SummaryTimeout)
	defer cancel()
	return s.summarizer.Summarize(sumCtx, selected, topN)
}

func (s *BriefService) stats(ctx context.Context, all, selected []Message, index FeedbackIndex, fallback bool) (BriefStats, error) {
	stats := BriefStats{
		TotalMessages: len(all),
		SelectedCount: len(selected),
		FilteredCount: len(all) - len(selected),
		FeedbackCount: len(index),
		FallbackUsed:  fallback,
		Categories:    make(map[string]CategoryStats),
	}
	if len(all) == 0 {
		return stats, nil
	}

	inBrief := make(map[string]bool, len(selected))
	for _, msg := range selected {
		inBrief[msg.ID] = true
	}

	sum := 0.0
	stats.LowScore = all[0].Score
	for _, msg := range all {
		sum += msg.Score
		stats.TopScore = max(stats.TopScore, msg.Score)
		stats.LowScore = min(stats.LowScore, msg.Score)
		if msg.Score > s.opts.CriticalScore {
			stats.CriticalCount++
		}

		label := Categorize(msg.Sender, msg.Subject)
		cat := stats.Categories[label]
		cat.Count++
		if inBrief[msg.ID] {
			cat.InBrief++
		}
		sender := SenderIdentity(msg.Sender)
		if len(cat.Senders) < maxCategorySender && !contains(cat.Senders, sender) {
			cat.Senders = append(cat.Senders, sender)
		}
		stats.Categories[label] = cat
	}
	stats.AverageScore = sum / float64(len(all))

	for label, cat := range stats.Categories {
		ratio, err := s.store.ReputationRatio(ctx, ReputationCategory, label)
		if err != nil {
			return stats, fmt.Errorf("failed to read category reputation: %w", err)
		}
		cat.Reputation = ratio
		stats.Categories[label] = cat
	}
	return stats, nil
}

func (s *BriefService) topN(ctx context.Context) int {
	value, err := s.store.GetPreference(ctx, PrefBriefTopN)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to read brief size preference", zap.Error(err))
		}
		return s.opts.TopN
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return s.opts.TopN
	}
	return n
}

func (s *BriefService) recipient(ctx context.Context) string {
	if value, err := s.store.GetPreference(ctx, PrefDeliveryEmail); err == nil && value != "" {
		return value
	}
	return s.opts.Recipient
}

// FallbackText lists the top subjects when no summary is available
func FallbackText(selected []Message) string {
	if len(selected) == 0 {
		return "No important messages in this period."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d important messages. Top subjects:\n", len(selected))
	for i, msg := range selected {
		if i == fallbackSubjects {
			break
		}
		fmt.Fprintf(&sb, "%d. %s (%s)\n", i+1, msg.Subject, msg.Sender)
	}
	return sb.String()
}

func population(msgs []Message) []ScoredMessage {
	pop := make([]ScoredMessage, len(msgs))
	for i, msg := range msgs {
		pop[i] = ScoredMessage{ID: msg.ID, Score: msg.Score}
	}
	return pop
}

func sortByScore(msgs []Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Score != msgs[j].Score {
			return msgs[i].Score > msgs[j].Score
		}
		return msgs[i].ReceivedAt.After(msgs[j].ReceivedAt)
	})
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
