package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureRegistered_Idempotent(t *testing.T) {
	EnsureRegistered()
	EnsureRegistered()

	assert.NotNil(t, getMetrics())
}

func TestRecordCounters(t *testing.T) {
	m := getMetrics()

	before := testutil.ToFloat64(m.messagesTotal.WithLabelValues("handled"))
	RecordMessage("handled", 25*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(m.messagesTotal.WithLabelValues("handled")))

	before = testutil.ToFloat64(m.escalationTotal.WithLabelValues("human_request"))
	RecordEscalation("human_request")
	assert.Equal(t, before+1, testutil.ToFloat64(m.escalationTotal.WithLabelValues("human_request")))

	before = testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("lookup_order", "success"))
	RecordToolExecution("lookup_order", 10*time.Millisecond, true)
	assert.Equal(t, before+1, testutil.ToFloat64(m.toolExecutionTotal.WithLabelValues("lookup_order", "success")))
}

func TestGauges(t *testing.T) {
	m := getMetrics()

	SetActiveSessions(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.activeSessions))

	SetBreakerOpen("tool:lookup_order", true)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.breakerOpen.WithLabelValues("tool:lookup_order")))
	SetBreakerOpen("tool:lookup_order", false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.breakerOpen.WithLabelValues("tool:lookup_order")))
}

func TestMetricsHandler(t *testing.T) {
	srv := httptest.NewServer(MetricsHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
