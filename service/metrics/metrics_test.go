package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTransactionBuilt(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordTransactionBuilt("donate", "ok", 1, 0.2)
	m.RecordTransactionBuilt("donate", "ok", 1, 0.1)
	m.RecordTransactionBuilt("donate", "invalid_amount", 0, 0.001)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transactionsBuiltTotal.WithLabelValues("donate", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactionsBuiltTotal.WithLabelValues("donate", "invalid_amount")))
}

func TestRecordQuoteCall(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordQuoteCall("jupiter", "quote", "success", 0.3)
	m.RecordQuoteCall("jupiter", "quote", "error", 0.3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.quoteCallsTotal.WithLabelValues("jupiter", "quote", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.quoteCallsTotal.WithLabelValues("jupiter", "quote", "error")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	handler := HTTPMetricsMiddleware(m, "/api/donate")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/donate", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/donate", http.MethodPost, "4xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("/api/donate", http.MethodPost, "2xx")))
}

func TestHTTPMetricsMiddleware_NilMetrics(t *testing.T) {
	handler := HTTPMetricsMiddleware(nil, "/health")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusCodeToString(t *testing.T) {
	assert.Equal(t, "2xx", statusCodeToString(204))
	assert.Equal(t, "3xx", statusCodeToString(302))
	assert.Equal(t, "4xx", statusCodeToString(404))
	assert.Equal(t, "5xx", statusCodeToString(502))
	assert.Equal(t, "unknown", statusCodeToString(99))
}
