// Package metrics exposes Prometheus counters for HTTP traffic and play.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "darts"

// Recorder owns a private registry so tests can build as many as they like.
// A nil *Recorder records nothing.
type Recorder struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	visits       *prometheus.CounterVec
	legs         prometheus.Counter
	matches      *prometheus.CounterVec
	wsConns      prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		visits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "visits_recorded_total",
			Help:      "Accepted visits by outcome.",
		}, []string{"outcome"}),
		legs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "legs_completed_total",
			Help:      "Legs won by a checkout.",
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_finished_total",
			Help:      "Matches that reached a terminal status.",
		}, []string{"status"}),
		wsConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_connections",
			Help:      "Open WebSocket subscriptions.",
		}),
	}
	r.registry.MustRegister(
		r.httpRequests, r.httpDuration, r.visits, r.legs, r.matches, r.wsConns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// RecordHTTPRequest counts a served request. route is the chi route
// pattern, not the raw path, to keep label cardinality bounded.
func (r *Recorder) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (r *Recorder) RecordVisit(outcome string) {
	if r == nil {
		return
	}
	r.visits.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordLegCompleted() {
	if r == nil {
		return
	}
	r.legs.Inc()
}

func (r *Recorder) RecordMatchFinished(status string) {
	if r == nil {
		return
	}
	r.matches.WithLabelValues(status).Inc()
}

func (r *Recorder) ConnectionOpened() {
	if r == nil {
		return
	}
	r.wsConns.Inc()
}

func (r *Recorder) ConnectionClosed() {
	if r == nil {
		return
	}
	r.wsConns.Dec()
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
