package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Recorder = (*PrometheusRecorder)(nil)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration *prom.HistogramVec
	itemResults   *prom.CounterVec
	stageErrors   *prom.CounterVec
	runOutcomes   *prom.CounterVec
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil reg gets a fresh registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "elicit",
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual generation stages",
			Buckets:   prom.ExponentialBuckets(0.05, 4, 8),
		}, []string{"pipeline", "stage"}),
		itemResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "elicit",
			Name:      "item_results_total",
			Help:      "Per-item extraction results by outcome",
		}, []string{"pipeline", "stage", "result"}),
		stageErrors: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "elicit",
			Name:      "stage_errors_total",
			Help:      "Stages that recorded an error",
		}, []string{"pipeline", "stage"}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "elicit",
			Name:      "run_outcomes_total",
			Help:      "Runs by final outcome",
		}, []string{"pipeline", "outcome"}),
	}
	reg.MustRegister(pr.stageDuration, pr.itemResults, pr.stageErrors, pr.runOutcomes)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(pipeline, stage string, d time.Duration) {
	if p == nil {
		return
	}
	p.stageDuration.WithLabelValues(pipeline, stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncItemResult(pipeline, stage string, ok bool) {
	if p == nil {
		return
	}
	res := "failed"
	if ok {
		res = "ok"
	}
	p.itemResults.WithLabelValues(pipeline, stage, res).Inc()
}

func (p *PrometheusRecorder) IncStageError(pipeline, stage string) {
	if p == nil {
		return
	}
	p.stageErrors.WithLabelValues(pipeline, stage).Inc()
}

func (p *PrometheusRecorder) IncRunOutcome(pipeline string, outcome Outcome) {
	if p == nil {
		return
	}
	p.runOutcomes.WithLabelValues(pipeline, string(outcome)).Inc()
}

// HTTPHandler returns an http.Handler that serves the metrics in reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
