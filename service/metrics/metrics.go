package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal    *prometheus.CounterVec
	solanaRPCCallDuration  *prometheus.HistogramVec
	solanaRPCRateLimitHits *prometheus.CounterVec
	lookupTablesResolved   *prometheus.HistogramVec

	// Quote Provider Metrics
	quoteCallsTotal   *prometheus.CounterVec
	quoteCallDuration *prometheus.HistogramVec

	// Transaction Building Metrics
	transactionsBuiltTotal   *prometheus.CounterVec
	transactionBuildDuration *prometheus.HistogramVec
	transactionInstructions  *prometheus.HistogramVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		solanaRPCRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		lookupTablesResolved: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_lookup_tables_per_resolve",
				Help:    "Number of address lookup tables fetched per resolve call",
				Buckets: []float64{0, 1, 2, 3, 4, 8},
			},
			[]string{"endpoint"},
		),

		// Quote Provider Metrics
		quoteCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quote_provider_calls_total",
				Help: "Total number of quote and trade provider calls",
			},
			[]string{"provider", "operation", "status"},
		),
		quoteCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quote_provider_call_duration_seconds",
				Help:    "Duration of quote and trade provider calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"provider", "operation"},
		),

		// Transaction Building Metrics
		transactionsBuiltTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_built_total",
				Help: "Total number of unsigned transactions built, by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		transactionBuildDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_build_duration_seconds",
				Help:    "End to end duration of building an unsigned transaction",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"action"},
		),
		transactionInstructions: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "transaction_instructions_per_build",
				Help:    "Number of instructions in each built transaction",
				Buckets: []float64{1, 2, 4, 8, 16, 32},
			},
			[]string{"action"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.solanaRPCRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordLookupTablesResolved records how many lookup tables one resolve call fetched.
func (m *Metrics) RecordLookupTablesResolved(endpoint string, count int) {
	m.lookupTablesResolved.WithLabelValues(endpoint).Observe(float64(count))
}

// Quote provider metric helpers

// RecordQuoteCall records a call to an external quote or trade provider.
func (m *Metrics) RecordQuoteCall(provider, operation, status string, duration float64) {
	m.quoteCallsTotal.WithLabelValues(provider, operation, status).Inc()
	m.quoteCallDuration.WithLabelValues(provider, operation).Observe(duration)
}

// Transaction building metric helpers

// RecordTransactionBuilt records the outcome of one build request. outcome is an
// error kind such as "ok" or "invalid_amount".
func (m *Metrics) RecordTransactionBuilt(action, outcome string, instructions int, duration float64) {
	m.transactionsBuiltTotal.WithLabelValues(action, outcome).Inc()
	m.transactionBuildDuration.WithLabelValues(action).Observe(duration)
	if instructions > 0 {
		m.transactionInstructions.WithLabelValues(action).Observe(float64(instructions))
	}
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
