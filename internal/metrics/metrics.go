package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ClassifierCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mangaguard_classifier_calls_total",
	Help: "Classifier calls by provider and outcome",
}, []string{"provider", "outcome"})

var ClassifierDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "mangaguard_classifier_duration_seconds",
	Help:    "A histogram of classifier call latencies",
	Buckets: prometheus.ExponentialBuckets(0.01, 2, 13),
}, []string{"provider"})

var ClassifierBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "mangaguard_classifier_breaker_state",
	Help: "Circuit breaker state of the external classifier (0 closed, 1 half-open, 2 open)",
}, []string{"name"})

var Decisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mangaguard_decisions_total",
	Help: "Moderation decisions by action and resulting status",
}, []string{"action", "status"})

var Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mangaguard_post_transitions_total",
	Help: "Post status transitions committed or refused by the store",
}, []string{"from", "to", "result"})

var ReportCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "mangaguard_report_cache_lookups_total",
	Help: "Report cache lookups by report and result",
}, []string{"report", "result"})

var HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "mangaguard_http_request_duration_seconds",
	Help:    "A histogram of API request latencies",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route", "code"})
