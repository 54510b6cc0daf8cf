package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	recomputeTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_recompute_total",
		Help: "Aggregate recomputes by outcome",
	}, []string{"outcome"})

	recomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "receipts_recompute_duration_seconds",
		Help:    "Aggregate recompute duration in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	documentsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receipts_documents_processed_total",
		Help: "Documents run through the extraction pipeline",
	})

	classifierRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_classifier_requests_total",
		Help: "Classifier calls by purpose and outcome",
	}, []string{"purpose", "outcome"})

	classifierDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "receipts_classifier_duration_seconds",
		Help:    "Classifier call duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"purpose"})

	cacheWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_cache_writes_total",
		Help: "Cache writes by outcome",
	}, []string{"outcome"})

	taxSelfCorrections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "receipts_tax_self_corrections_total",
		Help: "Extracted tax values discarded for not being below the total",
	})

	handlerPanics = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "receipts_http_panics_total",
		Help: "Recovered handler panics by route",
	}, []string{"route"})
)

func init() {
	registry.MustRegister(
		recomputeTotal,
		recomputeDuration,
		documentsProcessed,
		classifierRequests,
		classifierDuration,
		cacheWrites,
		taxSelfCorrections,
		handlerPanics,
	)
}

// ObserveRecompute records one finished recompute.
func ObserveRecompute(outcome string, d time.Duration) {
	recomputeTotal.WithLabelValues(outcome).Inc()
	recomputeDuration.Observe(d.Seconds())
}

// IncDocumentsProcessed counts documents run through the pipeline.
func IncDocumentsProcessed(n int) {
	if n > 0 {
		documentsProcessed.Add(float64(n))
	}
}

// ObserveClassifierRequest records one classifier call.
func ObserveClassifierRequest(purpose, outcome string, d time.Duration) {
	classifierRequests.WithLabelValues(purpose, outcome).Inc()
	classifierDuration.WithLabelValues(purpose).Observe(d.Seconds())
}

// IncCacheWrite counts a cache write by outcome ("ok" or "not_durable").
func IncCacheWrite(outcome string) {
	cacheWrites.WithLabelValues(outcome).Inc()
}

// IncTaxSelfCorrection counts a discarded tax value.
func IncTaxSelfCorrection() {
	taxSelfCorrections.Inc()
}

// IncHandlerPanic counts one recovered panic. Unmatched routes are grouped as "unmatched".
func IncHandlerPanic(route string) {
	if route == "" {
		route = "unmatched"
	}
	handlerPanics.WithLabelValues(route).Inc()
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
