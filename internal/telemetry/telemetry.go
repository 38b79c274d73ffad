// Package telemetry exposes prometheus instrumentation for the workflow. The
// dashboard serves the default registry on /metrics.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Telemetry aggregates the workflow's metrics.
type Telemetry struct {
	StageInvocations *prometheus.CounterVec
	CrawlFetches     *prometheus.CounterVec
	TurnDuration     prometheus.Histogram
	WorkspaceLinks   prometheus.Gauge
	KnowledgeAppends prometheus.Counter
}

// New registers all collectors with reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Telemetry {
	t := &Telemetry{
		StageInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footprint_stage_invocations_total",
			Help: "Reasoning stage invocations by stage and outcome.",
		}, []string{"stage", "status"}),
		CrawlFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footprint_crawl_fetches_total",
			Help: "Crawl executor fetches by tool and outcome.",
		}, []string{"tool", "status"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "footprint_turn_duration_seconds",
			Help:    "Wall time of one orchestrator turn.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		WorkspaceLinks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "footprint_workspace_links",
			Help: "Distinct URLs currently tracked in the workspace.",
		}),
		KnowledgeAppends: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footprint_knowledge_appends_total",
			Help: "Records appended to the knowledge base.",
		}),
	}
	reg.MustRegister(t.StageInvocations, t.CrawlFetches, t.TurnDuration, t.WorkspaceLinks, t.KnowledgeAppends)
	return t
}

// StageOK records a successful stage invocation.
func (t *Telemetry) StageOK(stage string) {
	if t == nil {
		return
	}
	t.StageInvocations.WithLabelValues(stage, "ok").Inc()
}

// StageErr records a failed stage invocation.
func (t *Telemetry) StageErr(stage string) {
	if t == nil {
		return
	}
	t.StageInvocations.WithLabelValues(stage, "error").Inc()
}

// Fetch records one crawl fetch outcome.
func (t *Telemetry) Fetch(tool, status string) {
	if t == nil {
		return
	}
	t.CrawlFetches.WithLabelValues(tool, status).Inc()
}

// ObserveTurn records the duration of a turn in seconds.
func (t *Telemetry) ObserveTurn(seconds float64) {
	if t == nil {
		return
	}
	t.TurnDuration.Observe(seconds)
}

// SetWorkspaceSize tracks the workspace gauge.
func (t *Telemetry) SetWorkspaceSize(n int) {
	if t == nil {
		return
	}
	t.WorkspaceLinks.Set(float64(n))
}

// AddKnowledge counts appended knowledge records.
func (t *Telemetry) AddKnowledge(n int) {
	if t == nil {
		return
	}
	t.KnowledgeAppends.Add(float64(n))
}
