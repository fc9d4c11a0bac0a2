package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tsp"

// metrics holds the service's prometheus collectors. Each server owns its
// registry so several servers can coexist in one process.
type metrics struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	generations prometheus.Counter
	tourLength  *prometheus.HistogramVec
	duration    *prometheus.HistogramVec
	activeJobs  prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &metrics{
		registry: reg,
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Solver runs by algorithm and final status.",
		}, []string{"algorithm", "status"}),
		generations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "genetic_generations_total",
			Help:      "Generations completed by the genetic solver.",
		}),
		tourLength: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tour_length",
			Help:      "Length of returned tours in the metric's unit.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"algorithm"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of solver runs.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"algorithm"}),
		activeJobs: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_jobs",
			Help:      "Optimization jobs not yet in a terminal state.",
		}),
	}
}

// MetricsHandler serves the server's registry in the prometheus text format.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})
}
