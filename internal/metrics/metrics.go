package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	MessagesFetched    prometheus.Counter
	MessagesRejected   prometheus.Counter
	MessagesScored     prometheus.Counter
	ScoreFailures      prometheus.Counter
	ScoreValue         prometheus.Histogram
	ScoringDuration    prometheus.Histogram
	EmbeddingRequests  *prometheus.CounterVec
	FeedbackSubmitted  *prometheus.CounterVec
	FeedbackOrphaned   prometheus.Counter
	Threshold          prometheus.Gauge
	BriefSize          prometheus.Gauge
	SummaryFailures    prometheus.Counter
	DeliveryAttempts   *prometheus.CounterVec
	BriefRunsCompleted prometheus.Counter
}

// NewMetrics registers the metrics on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		MessagesFetched: factory.NewCounter(prometheus.CounterOpts{
			Name: "daily_brief_messages_fetched_total",
			Help: "Total number of messages stored from the mail connector",
		}),
		MessagesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "daily_brief_messages_rejected_total",
			Help: "Total number of fetched messages dropped by validation",
		}),
		MessagesScored: factory.NewCounter(prometheus.CounterOpts{
			Name: "daily_brief_messages_scored_total",
			Help: "Total number of successful score computations",
		}),
		ScoreFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "daily_brief_score_failures_total",
			Help: "Total number of score computations that kept the previous score",
		}),
		ScoreValue: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "daily_brief_score_value",
			Help:    "Distribution of computed importance scores",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		ScoringDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "daily_brief_batch_scoring_duration_seconds",
			Help:    "Time spent scoring a batch of messages",
			Buckets: prometheus.DefBuckets,
		}),
		EmbeddingRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "daily_brief_embedding_requests_total",
			Help: "Embedding lookups by result (hit, computed, failed, unavailable)",
		}, []string{"result"}),
		FeedbackSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "daily_brief_feedback_submitted_total",
			Help: "Feedback records by judgment",
		}, []string{"judgment"}),
		FeedbackOrphaned: factory.NewCounter(prometheus.CounterOpts{
			Name: "daily_brief_feedback_orphaned_total",
			Help: "Feedback records referencing an unknown message",
		}),
		Threshold: factory.NewGauge(prometheus.GaugeOpts{
			Name: "daily_brief_threshold",
			Help: "Most recently selected brief threshold",
		}),
		BriefSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "daily_brief_selected_messages",
			Help: "Number of messages in the most recent brief",
		}),
		SummaryFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "daily_brief_summary_failures_total",
			Help: "Summaries replaced by the fallback listing",
		}),
		DeliveryAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "daily_brief_delivery_attempts_total",
			Help: "Brief delivery attempts by method and status",
		}, []string{"method", "status"}),
		BriefRunsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "daily_brief_runs_completed_total",
			Help: "Completed scheduled brief runs",
		}),
	}
}

// NewNop returns metrics registered on a private registry, for tools and tests
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
