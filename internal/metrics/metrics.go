package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API.
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status.
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds.
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OptimizeRuns counts optimization runs by outcome: converged,
	// budget_exhausted, cached, error.
	OptimizeRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimize_runs_total", Help: "Optimization runs by outcome."},
		[]string{"outcome"},
	)
	// OptimizeDuration records wall-clock solver time in seconds.
	OptimizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "optimize_duration_seconds", Help: "Solver wall-clock time in seconds.", Buckets: []float64{.005, .025, .1, .5, 1, 5, 15, 30, 60, 120}},
	)
	// TourCostUnits records the final tour cost of each run.
	TourCostUnits = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "tour_cost_units", Help: "Final tour cost in solver cost units.", Buckets: prometheus.ExponentialBuckets(100, 4, 10)},
	)
	// DirectionsRequests counts calls to the directions service by result.
	DirectionsRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "directions_requests_total", Help: "Directions service requests by result."},
		[]string{"result"},
	)
)

// RegisterDefault registers collectors on the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OptimizeRuns)
		Registry.MustRegister(OptimizeDuration)
		Registry.MustRegister(TourCostUnits)
		Registry.MustRegister(DirectionsRequests)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
