// Package metrics exposes Prometheus instrumentation for the refresh pipeline
// and the HTTP surface.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "etfmomentum"

// Registry holds every collector the service records to. Each Registry owns
// its own prometheus.Registry so tests can build as many as they like.
type Registry struct {
	reg *prometheus.Registry

	RefreshRuns      *prometheus.CounterVec
	RefreshDuration  prometheus.Histogram
	InstrumentResult *prometheus.CounterVec
	FetchDuration    *prometheus.HistogramVec
	PricesWritten    prometheus.Counter
	RiskOn           prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RefreshRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_runs_total",
				Help:      "Refresh runs by result (completed, none_due, failed, rejected)",
			},
			[]string{"result"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "refresh_duration_seconds",
				Help:      "Wall time of a refresh run",
				Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
		),
		InstrumentResult: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instrument_refresh_total",
				Help:      "Per-instrument refresh outcomes by final state and error kind",
			},
			[]string{"state", "kind"},
		),
		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_fetch_duration_seconds",
				Help:      "Market data fetch latency by provider and result",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"provider", "result"},
		),
		PricesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "prices_written_total",
				Help:      "Monthly price rows upserted",
			},
		),
		RiskOn: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "risk_on",
				Help:      "1 when the latest derived risk status is on, 0 when off",
			},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	r.reg.MustRegister(
		r.RefreshRuns,
		r.RefreshDuration,
		r.InstrumentResult,
		r.FetchDuration,
		r.PricesWritten,
		r.RiskOn,
		r.HTTPRequests,
		r.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler returns the /metrics handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveFetch records one provider call.
func (r *Registry) ObserveFetch(provider string, start time.Time, err error) {
	if r == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	r.FetchDuration.WithLabelValues(provider, result).Observe(time.Since(start).Seconds())
}

// ObserveOutcome records the terminal state of one instrument.
func (r *Registry) ObserveOutcome(state, kind string) {
	if r == nil {
		return
	}
	if kind == "" {
		kind = "none"
	}
	r.InstrumentResult.WithLabelValues(state, kind).Inc()
}

// ObserveRun records a finished refresh run.
func (r *Registry) ObserveRun(result string, start time.Time) {
	if r == nil {
		return
	}
	r.RefreshRuns.WithLabelValues(result).Inc()
	r.RefreshDuration.Observe(time.Since(start).Seconds())
}

// AddPrices counts upserted price rows.
func (r *Registry) AddPrices(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.PricesWritten.Add(float64(n))
}

// SetRiskOn updates the risk gauge.
func (r *Registry) SetRiskOn(on bool) {
	if r == nil {
		return
	}
	if on {
		r.RiskOn.Set(1)
		return
	}
	r.RiskOn.Set(0)
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(route, method, status string, d time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(route, method, status).Inc()
	r.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
