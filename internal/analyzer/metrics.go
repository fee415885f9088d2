package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("logshield/analyzer")

var (
	batchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logshield_batches_total",
		Help: "Analysis batches by outcome",
	}, []string{"outcome"})

	batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logshield_batch_duration_seconds",
		Help:    "Wall time of one analysis batch",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})

	resultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logshield_results_total",
		Help: "Results produced by status and severity",
	}, []string{"status", "severity"})

	pairErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logshield_pair_errors_total",
		Help: "Entry/rule pairs dropped because evaluation failed",
	}, []string{"reason"})

	historyErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logshield_history_errors_total",
		Help: "Historical cache failures by operation",
	}, []string{"op"})

	riskScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "logshield_risk_score",
		Help:    "Distribution of per-result risk scores",
		Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
	})
)
