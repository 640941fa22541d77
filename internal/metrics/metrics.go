package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes counters, histograms and gauges for the API, the
// appointment workflow and the live channel. All methods are nil-safe.
type Metrics struct {
	requestsTotal     *prometheus.CounterVec
	requestLatency    *prometheus.HistogramVec
	transitionsTotal  *prometheus.CounterVec
	liveConnections   prometheus.Gauge
	liveFramesTotal   *prometheus.CounterVec
	lapsedAppointment prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meditime",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "meditime",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meditime",
			Subsystem: "appointments",
			Name:      "status_transitions_total",
			Help:      "Appointment status changes by target status and outcome",
		}, []string{"to", "outcome"}),
		liveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "meditime",
			Subsystem: "live",
			Name:      "connections",
			Help:      "Open complaint chat connections on this instance",
		}),
		liveFramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "meditime",
			Subsystem: "live",
			Name:      "frames_total",
			Help:      "Live channel frames by event and direction",
		}, []string{"event", "direction"}),
		lapsedAppointment: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "meditime",
			Subsystem: "appointments",
			Name:      "lapsed_total",
			Help:      "Pending appointments cancelled by the lapse worker",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.requestsTotal,
		m.requestLatency,
		m.transitionsTotal,
		m.liveConnections,
		m.liveFramesTotal,
		m.lapsedAppointment,
	)
	return m
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, route, status).Inc()
	m.requestLatency.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) ObserveTransition(to, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(to, outcome).Inc()
}

func (m *Metrics) LiveConnected() {
	if m == nil {
		return
	}
	m.liveConnections.Inc()
}

func (m *Metrics) LiveDisconnected() {
	if m == nil {
		return
	}
	m.liveConnections.Dec()
}

func (m *Metrics) ObserveFrame(event, direction string) {
	if m == nil {
		return
	}
	m.liveFramesTotal.WithLabelValues(event, direction).Inc()
}

func (m *Metrics) ObserveLapsed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.lapsedAppointment.Add(float64(n))
}
