package metrics_test

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/portal-guard/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestDecisionsCounter(t *testing.T) {
	before := testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("render"))
	metrics.DecisionsTotal.WithLabelValues("render").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("render")))
}

func TestHandlerExposesPortalMetrics(t *testing.T) {
	metrics.IdleExpiriesTotal.Inc()

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "portalguard_idle_expiries_total")
}
