package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder_Gather(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStageDuration("ai", "AI Processing", 150*time.Millisecond)
	pr.IncItemResult("ai", "AI Processing", true)
	pr.IncItemResult("ai", "AI Processing", false)
	pr.IncStageError("ai", "Finalizing Stories")
	pr.IncRunOutcome("ai", OutcomeComplete)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	assert.True(t, names["elicit_stage_duration_seconds"])
	assert.True(t, names["elicit_item_results_total"])
	assert.True(t, names["elicit_stage_errors_total"])
	assert.True(t, names["elicit_run_outcomes_total"])
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncItemResult("ai", "s", true)
		pr.IncRunOutcome("ai", OutcomeCancelled)
	})
}

func TestHTTPHandler_ServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncRunOutcome("requirements", OutcomeResumed)

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `elicit_run_outcomes_total{outcome="resumed",pipeline="requirements"} 1`)
}

func TestNoopRecorder_SatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncStageError("p", "s")
}
