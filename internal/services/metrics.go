package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Interview flow metrics
	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	AnswersSubmitted prometheus.Counter

	// Ledger metrics
	CreditsConsumed *prometheus.CounterVec
	CreditsGranted  prometheus.Counter

	// Feedback generator metrics
	FeedbackLatency  *prometheus.HistogramVec
	FeedbackDegraded *prometheus.CounterVec

	// Audit sink metrics
	AuditDropped prometheus.Counter
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics.
// sessions may be nil; when set, the active session gauge reads from it.
func InitMetrics(sessions *SessionStore) *Metrics {
	metrics := &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mock_interview_sessions_started_total",
			Help: "Total number of interview sessions started",
		}),

		// outcome: "completed" or "abandoned"
		SessionsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mock_interview_sessions_finished_total",
			Help: "Total number of interview sessions that reached a terminal state",
		}, []string{"outcome"}),

		AnswersSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mock_interview_answers_submitted_total",
			Help: "Total number of accepted answers",
		}),

		// source: "trial" or "paid"
		CreditsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mock_interview_credits_consumed_total",
			Help: "Total number of question credits consumed by source",
		}, []string{"source"}),

		CreditsGranted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mock_interview_credits_granted_total",
			Help: "Total number of paid question credits granted",
		}),

		// stage: "answer" or "report"
		FeedbackLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mock_interview_feedback_duration_seconds",
			Help:    "Feedback generator latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 90}, // LLM calls run long
		}, []string{"stage"}),

		FeedbackDegraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mock_interview_feedback_degraded_total",
			Help: "Total number of feedback results replaced by the fallback",
		}, []string{"stage"}),

		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mock_interview_audit_dropped_total",
			Help: "Audit records dropped because the queue was full or closed",
		}),
	}

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "mock_interview_sessions_in_memory",
			Help: "Current number of sessions held by the session store",
		},
		func() float64 {
			if sessions != nil {
				return float64(sessions.Count())
			}
			return 0
		},
	))

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance (nil until InitMetrics runs)
func GetMetrics() *Metrics {
	return globalMetrics
}

// The recorders below are nil-safe so services work without metrics in tests.

func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) RecordSessionFinished(outcome string) {
	if m == nil {
		return
	}
	m.SessionsFinished.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordAnswer() {
	if m == nil {
		return
	}
	m.AnswersSubmitted.Inc()
}

func (m *Metrics) RecordCreditConsumed(source string) {
	if m == nil {
		return
	}
	m.CreditsConsumed.WithLabelValues(source).Inc()
}

func (m *Metrics) RecordCreditsGranted(count int) {
	if m == nil {
		return
	}
	m.CreditsGranted.Add(float64(count))
}

func (m *Metrics) RecordFeedbackLatency(stage string, seconds float64) {
	if m == nil {
		return
	}
	m.FeedbackLatency.WithLabelValues(stage).Observe(seconds)
}

func (m *Metrics) RecordFeedbackDegraded(stage string) {
	if m == nil {
		return
	}
	m.FeedbackDegraded.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordAuditDropped() {
	if m == nil {
		return
	}
	m.AuditDropped.Inc()
}
