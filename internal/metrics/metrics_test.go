package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerExposesGatewayMetrics(t *testing.T) {
	RecordSubmission("start_game", "accepted")
	RecordNonceResync()
	RecordEventWait(WaitTimeout, 10*time.Millisecond)
	RecordMessage("", true)
	SessionOpened()
	SessionClosed()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `casino_gateway_submissions_total{kind="start_game",outcome="accepted"}`)
	assert.Contains(t, body, "casino_gateway_nonce_resyncs_total")
	assert.Contains(t, body, `casino_gateway_event_waits_total{outcome="timeout"}`)
	assert.Contains(t, body, `casino_gateway_messages_total{success="true",type="unknown"}`)
	assert.Contains(t, body, "casino_gateway_active_sessions 0")
}
