package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce            sync.Once
	httpDurationHistogram   *prometheus.HistogramVec
	orderSettlementCounter  *prometheus.CounterVec
	signatureFailureCounter prometheus.Counter
	ledgerDriftCounter      prometheus.Counter
	orderExpiryCounter      prometheus.Counter
	idempotencyCounter      *prometheus.CounterVec
	workerRunCounter        *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		orderSettlementCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "payment_order_settlements_total",
			Help: "Payment order confirmation outcomes",
		}, []string{"outcome"})

		signatureFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gateway_signature_failures_total",
			Help: "Rejected gateway signatures (security events)",
		})

		ledgerDriftCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_drift_total",
			Help: "Number of times a cached wallet balance diverged from its replayed ledger",
		})

		orderExpiryCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payment_order_expiries_total",
			Help: "Orders expired by the reconciliation sweep",
		})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			orderSettlementCounter,
			signatureFailureCounter,
			ledgerDriftCounter,
			orderExpiryCounter,
			idempotencyCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementOrderSettlement(outcome string) {
	if orderSettlementCounter == nil {
		return
	}
	orderSettlementCounter.WithLabelValues(outcome).Inc()
}

func IncrementSignatureFailure() {
	if signatureFailureCounter == nil {
		return
	}
	signatureFailureCounter.Inc()
}

func IncrementLedgerDrift() {
	if ledgerDriftCounter == nil {
		return
	}
	ledgerDriftCounter.Inc()
}

func IncrementOrderExpiry() {
	if orderExpiryCounter == nil {
		return
	}
	orderExpiryCounter.Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
