// Package metrics defines quill's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors, registered on a private registry so tests
// can create as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	Trainings        *prometheus.CounterVec
	SamplesAnalyzed  prometheus.Counter
	TrainingDuration prometheus.Histogram
	Confidence       prometheus.Gauge
	Generations      *prometheus.CounterVec
	GenerationTime   prometheus.Histogram
	SamplesAdded     *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Trainings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_trainings_total",
			Help: "Training passes by result (ok, skipped, error)",
		}, []string{"result"}),

		SamplesAnalyzed: f.NewCounter(prometheus.CounterOpts{
			Name: "quill_samples_analyzed_total",
			Help: "Writing samples folded into the style profile",
		}),

		TrainingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_training_duration_seconds",
			Help:    "Duration of a training pass",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),

		Confidence: f.NewGauge(prometheus.GaugeOpts{
			Name: "quill_profile_confidence",
			Help: "Confidence of the style profile after the last training pass",
		}),

		Generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_generations_total",
			Help: "Generation requests by outcome (upstream, fallback)",
		}, []string{"outcome"}),

		GenerationTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "quill_generation_duration_seconds",
			Help:    "Generation latency in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),

		SamplesAdded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "quill_samples_added_total",
			Help: "Writing samples added by source (manual, note)",
		}, []string{"source"}),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// TrainingFinished records one training pass.
func (m *Metrics) TrainingFinished(result string, samples int, elapsed time.Duration, confidence float64) {
	m.Trainings.WithLabelValues(result).Inc()
	m.TrainingDuration.Observe(elapsed.Seconds())
	if result != "ok" {
		return
	}
	m.SamplesAnalyzed.Add(float64(samples))
	m.Confidence.Set(confidence)
}

// GenerationFinished records one generation request.
func (m *Metrics) GenerationFinished(fallback bool, elapsed time.Duration) {
	outcome := "upstream"
	if fallback {
		outcome = "fallback"
	}
	m.Generations.WithLabelValues(outcome).Inc()
	m.GenerationTime.Observe(elapsed.Seconds())
}

// SampleAdded counts a new writing sample.
func (m *Metrics) SampleAdded(source string) {
	m.SamplesAdded.WithLabelValues(source).Inc()
}
