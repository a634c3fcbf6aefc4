package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type serverMetrics struct {
	activeSessions prometheus.Gauge
	sessionTotal   prometheus.Counter
	handshakes     *prometheus.CounterVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	evictions      *prometheus.CounterVec
	storeErrors    prometheus.Counter
	sweeps         prometheus.Counter
}

func newServerMetrics(reg prometheus.Registerer) *serverMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &serverMetrics{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "voip_sessions_active",
			Help: "Current number of authenticated sessions.",
		}),
		sessionTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voip_sessions_total",
			Help: "Total number of sessions authenticated since start.",
		}),
		handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voip_handshakes_total",
			Help: "Handshake outcomes.",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voip_requests_total",
			Help: "Requests handled, by request code and response code.",
		}, []string{"code", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voip_request_latency_seconds",
			Help:    "Latency for handling one request frame.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"code"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voip_session_evictions_total",
			Help: "Sessions removed from the registry, by reason.",
		}, []string{"reason"}),
		storeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voip_store_errors_total",
			Help: "Message store append or query failures.",
		}),
		sweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voip_sweeps_total",
			Help: "Liveness sweep cycles run.",
		}),
	}

	reg.MustRegister(
		m.activeSessions,
		m.sessionTotal,
		m.handshakes,
		m.requests,
		m.requestLatency,
		m.evictions,
		m.storeErrors,
		m.sweeps,
	)
	return m
}

func (m *serverMetrics) incSession() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
	m.sessionTotal.Inc()
}

func (m *serverMetrics) decSession(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.activeSessions.Dec()
	m.evictions.WithLabelValues(reason).Inc()
}

func (m *serverMetrics) recordHandshake(result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(result).Inc()
}

func (m *serverMetrics) observeRequest(code, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(code, status).Inc()
	m.requestLatency.WithLabelValues(code).Observe(dur.Seconds())
}

func (m *serverMetrics) recordStoreError() {
	if m == nil {
		return
	}
	m.storeErrors.Inc()
}

func (m *serverMetrics) recordSweep() {
	if m == nil {
		return
	}
	m.sweeps.Inc()
}
