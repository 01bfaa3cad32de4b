package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCounters(t *testing.T) {
	m := New()

	m.Scan("full")
	m.Scan("full")
	m.Reconciled("checkin", "server-confirmed")
	m.Failed("redeem_products", "REDEMPTION_REJECTED")
	m.JournalWrite("attendee.checked_in", "inserted")

	out := scrape(t, m)
	assert.Contains(t, out, `ticketera_scans_total{result="full"} 2`)
	assert.Contains(t, out, `ticketera_reconciliations_total{applied="server-confirmed",operation="checkin"} 1`)
	assert.Contains(t, out, `ticketera_operation_failures_total{code="REDEMPTION_REJECTED",operation="redeem_products"} 1`)
	assert.Contains(t, out, `ticketera_journal_writes_total{operation="attendee.checked_in",result="inserted"} 1`)
}

func TestHandlerExposesHTTPMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP(http.MethodPost, "/api/validation/scan", http.StatusOK, 15*time.Millisecond)

	out := scrape(t, m)
	assert.Contains(t, out, `ticketera_http_requests_total{method="POST",route="/api/validation/scan",status="200"} 1`)
	assert.Contains(t, out, `ticketera_http_request_duration_seconds_count{method="POST",route="/api/validation/scan"} 1`)
}
