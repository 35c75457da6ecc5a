// Package metrics records per-run Prometheus metrics and writes them in the
// node exporter textfile format next to the run's artifacts.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mrz1836/scribe/internal/constants"
	"github.com/mrz1836/scribe/internal/domain"
)

const namespace = "scribe"

// Recorder holds the metrics of a single pipeline run. Each run uses its own
// registry so textfile output never mixes runs.
type Recorder struct {
	registry *prometheus.Registry

	StageDuration  *prometheus.GaugeVec
	StageOutcomes  *prometheus.CounterVec
	BuildAttempts  *prometheus.CounterVec
	BuildDuration  *prometheus.HistogramVec
	FallbackState  *prometheus.GaugeVec
	RecordEntries  prometheus.Gauge
	IndexEntries   *prometheus.GaugeVec
	IndexCacheHits prometheus.Counter
	QueryOutcomes  *prometheus.CounterVec
	QueryDuration  *prometheus.HistogramVec
	RunSucceeded   prometheus.Gauge
}

// NewRecorder creates a recorder with a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		StageDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Wall time spent in each pipeline stage",
		}, []string{"stage"}),
		StageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_outcomes_total",
			Help:      "Stage completions by stage and outcome",
		}, []string{"stage", "outcome"}),
		BuildAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "attempts_total",
			Help:      "Build attempts by mode, strategy and result",
		}, []string{"mode", "strategy", "result"}),
		BuildDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "build",
			Name:      "duration_seconds",
			Help:      "Build attempt duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"mode"}),
		FallbackState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fallback",
			Name:      "state",
			Help:      "Final fallback state of the run (1 for the active state)",
		}, []string{"state"}),
		RecordEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "record",
			Name:      "entries",
			Help:      "Entries in the compilation record",
		}),
		IndexEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "entries",
			Help:      "Record entries considered by the index builder",
		}, []string{"status"}),
		IndexCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "index",
			Name:      "cache_hits_total",
			Help:      "Index builds served from the memo",
		}),
		QueryOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "outcomes_total",
			Help:      "Analysis query outcomes by kind and result",
		}, []string{"kind", "result"}),
		QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "query",
			Name:      "duration_seconds",
			Help:      "Analysis query duration",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"kind"}),
		RunSucceeded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_succeeded",
			Help:      "1 when the build and index stages succeeded",
		}),
	}

	r.registry.MustRegister(
		r.StageDuration, r.StageOutcomes,
		r.BuildAttempts, r.BuildDuration,
		r.FallbackState, r.RecordEntries,
		r.IndexEntries, r.IndexCacheHits,
		r.QueryOutcomes, r.QueryDuration,
		r.RunSucceeded,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveStage records a finished stage.
func (r *Recorder) ObserveStage(ev domain.StageEvent) {
	r.StageDuration.WithLabelValues(ev.Stage.String()).Set((time.Duration(ev.DurationMs) * time.Millisecond).Seconds())
	r.StageOutcomes.WithLabelValues(ev.Stage.String(), string(ev.Outcome)).Inc()
}

// ObserveAttempt records a build attempt.
func (r *Recorder) ObserveAttempt(a domain.BuildAttempt) {
	result := "failure"
	if a.Success {
		result = "success"
	}
	if a.TimedOut {
		result = "timeout"
	}
	r.BuildAttempts.WithLabelValues(a.Mode.String(), a.Strategy.String(), result).Inc()
	r.BuildDuration.WithLabelValues(a.Mode.String()).Observe(float64(a.DurationMs) / 1000)
}

// ObserveFallback marks the final fallback state.
func (r *Recorder) ObserveFallback(state constants.FallbackState) {
	for _, s := range []constants.FallbackState{
		constants.FallbackStatePrimary,
		constants.FallbackStateRetrying,
		constants.FallbackStateRecovered,
		constants.FallbackStateExhausted,
	} {
		v := 0.0
		if s == state {
			v = 1
		}
		r.FallbackState.WithLabelValues(s.String()).Set(v)
	}
}

// ObserveRecord records the size of the produced record.
func (r *Recorder) ObserveRecord(entries int) {
	r.RecordEntries.Set(float64(entries))
}

// ObserveIndex records an index build.
func (r *Recorder) ObserveIndex(idx *domain.IndexDatabase) {
	if idx == nil {
		return
	}
	r.IndexEntries.WithLabelValues("valid").Set(float64(idx.ValidEntries))
	r.IndexEntries.WithLabelValues("skipped").Set(float64(idx.SkippedEntries))
	if idx.Cached {
		r.IndexCacheHits.Inc()
	}
}

// ObserveQuery records a query outcome.
func (r *Recorder) ObserveQuery(o domain.QueryOutcome) {
	result := "success"
	if !o.Success {
		result = "failure"
	}
	r.QueryOutcomes.WithLabelValues(o.Kind.String(), result).Inc()
	r.QueryDuration.WithLabelValues(o.Kind.String()).Observe(float64(o.DurationMs) / 1000)
}

// ObserveRun records the overall verdict.
func (r *Recorder) ObserveRun(succeeded bool) {
	if succeeded {
		r.RunSucceeded.Set(1)
		return
	}
	r.RunSucceeded.Set(0)
}

// WriteTextfile writes all metrics to path in the Prometheus text format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
