package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	httpDurationHistogram     *prometheus.HistogramVec
	invariantViolationCounter *prometheus.CounterVec
	idempotencyCounter        *prometheus.CounterVec
	transitionCounter         *prometheus.CounterVec
	notificationCounter       *prometheus.CounterVec
	oracleCounter             *prometheus.CounterVec
	eventPublishCounter       *prometheus.CounterVec
	workerRunCounter          *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		invariantViolationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_invariant_violations_total",
			Help: "Accounts whose balances disagree with their transaction records",
		}, []string{"check"})

		idempotencyCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "idempotency_events_total",
			Help: "Idempotency middleware outcomes",
		}, []string{"outcome"})

		transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transitions_total",
			Help: "Transaction record creations and status changes",
		}, []string{"kind", "from", "to"})

		notificationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Notification delivery outcomes",
		}, []string{"kind", "result"})

		oracleCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "price_oracle_requests_total",
			Help: "Price oracle lookups by outcome",
		}, []string{"symbol", "result"})

		eventPublishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "status_events_published_total",
			Help: "Status change event publish outcomes",
		}, []string{"result"})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			invariantViolationCounter,
			idempotencyCounter,
			transitionCounter,
			notificationCounter,
			oracleCounter,
			eventPublishCounter,
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

func IncrementLedgerInvariantViolation(check string) {
	if invariantViolationCounter == nil {
		return
	}
	invariantViolationCounter.WithLabelValues(check).Inc()
}

func IncrementIdempotencyEvent(outcome string) {
	if idempotencyCounter == nil {
		return
	}
	idempotencyCounter.WithLabelValues(outcome).Inc()
}

func IncrementTransition(kind, from, to string) {
	if transitionCounter == nil {
		return
	}
	transitionCounter.WithLabelValues(kind, from, to).Inc()
}

func IncrementNotification(kind, result string) {
	if notificationCounter == nil {
		return
	}
	notificationCounter.WithLabelValues(kind, result).Inc()
}

func IncrementOracleRequest(symbol, result string) {
	if oracleCounter == nil {
		return
	}
	oracleCounter.WithLabelValues(symbol, result).Inc()
}

func IncrementEventPublish(result string) {
	if eventPublishCounter == nil {
		return
	}
	eventPublishCounter.WithLabelValues(result).Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
