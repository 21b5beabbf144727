package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danmuck/bondx/internal/logs"
	"github.com/danmuck/bondx/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("bondx-a", "GET", "/health", 200, 12*time.Millisecond)
	RecordPublished(1001)
	RecordOfferRetry(1001, "BACK_PRESSURED")
	RecordReceived(1001)
	RecordDecodeError(1001)

	logs.Logf("observability/metrics: registration idempotent and recording paths executed")
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAdminServerEndpoints(t *testing.T) {
	testlog.Start(t)
	ready := false
	srv := NewAdminServer(AdminConfig{
		ID:     "bondx-test",
		Logger: zerolog.Nop(),
		Status: func() any { return map[string]any{"sent": 3, "received": 2} },
		Ready:  func() bool { return ready },
	})
	h := srv.Handler()

	rec := get(t, h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "bondx-test", health["service"])

	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/ready").Code)
	ready = true
	assert.Equal(t, http.StatusOK, get(t, h, "/ready").Code)

	rec = get(t, h, "/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var status map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 3.0, status["sent"])

	RecordPublished(7)
	rec = get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "bondx_producer_published_total"), "metrics body missing producer counter")
	assert.True(t, strings.Contains(body, "bondx_http_requests_total"), "metrics body missing http counter")
}
