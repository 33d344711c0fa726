package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"
)

// MetricsRegistry holds all Prometheus metrics for MacroCorr.
type MetricsRegistry struct {
	// Provider fetch metrics
	FetchDuration *prometheus.HistogramVec
	FetchErrors   *prometheus.CounterVec

	// Pipeline step metrics
	StepDuration   *prometheus.HistogramVec
	PipelineErrors *prometheus.CounterVec

	// Run output metrics
	SeriesLoaded  prometheus.Gauge
	PanelRows     prometheus.Gauge
	RollingFrames prometheus.Gauge
	LastRunUnix   prometheus.Gauge

	registry *prometheus.Registry
}

var (
	metricsOnce     sync.Once
	metricsRegistry *MetricsRegistry
)

// InitializeMetrics sets up the global metrics registry.
func InitializeMetrics() {
	metricsOnce.Do(func() {
		metricsRegistry = newMetricsRegistry()
		log.Debug().Msg("Metrics registry initialized")
	})
}

// GetMetrics returns the global metrics registry, initializing on demand.
func GetMetrics() *MetricsRegistry {
	InitializeMetrics()
	return metricsRegistry
}

func newMetricsRegistry() *MetricsRegistry {
	m := &MetricsRegistry{
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macrocorr_fetch_duration_seconds",
				Help:    "Duration of provider fetches in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 20.0},
			},
			[]string{"provider", "result"},
		),
		FetchErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macrocorr_fetch_errors_total",
				Help: "Total failed provider fetches",
			},
			[]string{"provider"},
		),
		StepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macrocorr_step_duration_seconds",
				Help:    "Duration of each pipeline step in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"step", "result"},
		),
		PipelineErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macrocorr_pipeline_errors_total",
				Help: "Total pipeline errors by step",
			},
			[]string{"step"},
		),
		SeriesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "macrocorr_series_loaded",
			Help: "Series with data in the last merged panel",
		}),
		PanelRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "macrocorr_panel_rows",
			Help: "Monthly rows in the last merged panel",
		}),
		RollingFrames: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "macrocorr_rolling_frames",
			Help: "Rolling correlation frames produced by the last run",
		}),
		LastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "macrocorr_last_run_timestamp_seconds",
			Help: "Unix time of the last completed run",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FetchDuration, m.FetchErrors,
		m.StepDuration, m.PipelineErrors,
		m.SeriesLoaded, m.PanelRows, m.RollingFrames, m.LastRunUnix,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *MetricsRegistry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordFetch observes one provider fetch.
func (m *MetricsRegistry) RecordFetch(provider string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
		m.FetchErrors.WithLabelValues(provider).Inc()
	}
	m.FetchDuration.WithLabelValues(provider, result).Observe(duration.Seconds())
}

// RecordStep observes one pipeline step.
func (m *MetricsRegistry) RecordStep(step string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
		m.PipelineErrors.WithLabelValues(step).Inc()
	}
	m.StepDuration.WithLabelValues(step, result).Observe(duration.Seconds())
}

// RecordRun updates the run output gauges.
func (m *MetricsRegistry) RecordRun(seriesLoaded, panelRows, rollingFrames int, at time.Time) {
	m.SeriesLoaded.Set(float64(seriesLoaded))
	m.PanelRows.Set(float64(panelRows))
	m.RollingFrames.Set(float64(rollingFrames))
	m.LastRunUnix.Set(float64(at.Unix()))
}

// Snapshot reads the current gauge values for the /status endpoint.
func (m *MetricsRegistry) Snapshot() map[string]float64 {
	snapshot := make(map[string]float64, 4)
	gauges := map[string]prometheus.Gauge{
		"series_loaded":  m.SeriesLoaded,
		"panel_rows":     m.PanelRows,
		"rolling_frames": m.RollingFrames,
		"last_run_unix":  m.LastRunUnix,
	}
	for name, g := range gauges {
		var metric dto.Metric
		if err := g.Write(&metric); err != nil {
			continue
		}
		snapshot[name] = metric.GetGauge().GetValue()
	}
	return snapshot
}
