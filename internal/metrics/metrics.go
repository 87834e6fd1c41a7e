// Package metrics holds the Prometheus collectors for the article pipeline.
package metrics

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

const (
	namespace = "goarticle"
)

var (
	// Extraction
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "total",
			Help:      "Total number of content extractions by source and outcome",
		},
		[]string{"source", "outcome"},
	)

	PaywallDetectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "paywall_detections_total",
			Help:      "Pages flagged as requiring a subscription, by signal",
		},
		[]string{"signal"},
	)

	// Quota
	QuotaChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "checks_total",
			Help:      "Total number of quota checks by tier and decision",
		},
		[]string{"tier", "allowed"},
	)

	QuotaMigrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "limit_migrations_total",
			Help:      "Accounts whose stored limit was reconciled to the tier default",
		},
	)

	TokensConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "tokens_consumed_total",
			Help:      "Tokens charged to accounts by tier",
		},
		[]string{"tier"},
	)

	// Generation
	GenerationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "total",
			Help:      "Generation calls by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generate",
			Name:      "duration_seconds",
			Help:      "Generation duration in seconds by stage",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// Pipeline
	PipelineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "requests_total",
			Help:      "Pipeline requests by result code",
		},
		[]string{"code"},
	)
)

// Outcome labels shared across collectors.
const (
	OutcomeOK           = "ok"
	OutcomeError        = "error"
	OutcomePaywalled    = "paywalled"
	OutcomeCached       = "cached"
	OutcomeUnavailable  = "unavailable"
	OutcomeEmptyContent = "empty"
)

// RecordExtraction counts one extraction.
func RecordExtraction(source, outcome string) {
	ExtractionsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordPaywall counts one paywall verdict by its signal.
func RecordPaywall(signal string) {
	if signal == "" {
		signal = "unknown"
	}
	PaywallDetectionsTotal.WithLabelValues(signal).Inc()
}

// RecordQuotaCheck counts one quota decision.
func RecordQuotaCheck(tier string, allowed bool) {
	a := "false"
	if allowed {
		a = "true"
	}
	QuotaChecksTotal.WithLabelValues(tierLabel(tier), a).Inc()
}

// RecordConsumption adds tokens charged to an account of tier.
func RecordConsumption(tier string, tokens uint64) {
	TokensConsumedTotal.WithLabelValues(tierLabel(tier)).Add(float64(tokens))
}

// RecordGeneration records the outcome and duration of one generation stage.
func RecordGeneration(stage, outcome string, seconds float64) {
	GenerationTotal.WithLabelValues(stage, outcome).Inc()
	if seconds > 0 {
		GenerationDuration.WithLabelValues(stage).Observe(seconds)
	}
}

// RecordRequest counts one pipeline request by its result code.
func RecordRequest(code string) {
	PipelineRequestsTotal.WithLabelValues(code).Inc()
}

func tierLabel(tier string) string {
	switch tier {
	case "trial", "paid":
		return tier
	default:
		return "unknown"
	}
}

// Push sends everything registered with the default registry to a
// Pushgateway. An empty url is a no-op.
func Push(ctx context.Context, url, job string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	if job == "" {
		job = "goarticle"
	}
	if err := push.New(url, job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
