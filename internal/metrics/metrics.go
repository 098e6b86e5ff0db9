package metrics

import (
	"net/http"
	"strconv"

	"cloudpico-sensorsim/internal/types"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensorsim"

type Metrics struct {
	reg *prometheus.Registry

	deliveries    *prometheus.CounterVec
	readings      *prometheus.GaugeVec
	mqttConnected prometheus.Gauge
	ticks         prometheus.Counter
	httpRequests  *prometheus.CounterVec
}

// New builds the metric set on its own registry, so several instances can
// coexist in one process (tests).
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_total",
			Help:      "Delivery attempts by channel and result.",
		}, []string{"channel", "result"}),
		readings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reading",
			Help:      "Latest generated value per quantity.",
		}, []string{"quantity"}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 when the MQTT transport was connected at the last tick.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed sampling ticks.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Status API requests by route and status.",
		}, []string{"route", "status"}),
	}

	m.reg.MustRegister(
		m.deliveries,
		m.readings,
		m.mqttConnected,
		m.ticks,
		m.httpRequests,
	)

	// Pre-create every channel/result pair so the series exist at zero.
	for _, ch := range types.Channels {
		m.deliveries.WithLabelValues(string(ch), "ok")
		m.deliveries.WithLabelValues(string(ch), "fail")
	}

	return m
}

// ObserveTick records one finished tick.
func (m *Metrics) ObserveTick(readings types.ReadingSet, outcomes []types.Outcome) {
	if m == nil {
		return
	}
	m.ticks.Inc()
	for name, v := range readings {
		m.readings.WithLabelValues(name).Set(v)
	}
	for _, o := range outcomes {
		result := "ok"
		if !o.OK {
			result = "fail"
		}
		m.deliveries.WithLabelValues(string(o.Channel), result).Inc()
	}
}

func (m *Metrics) SetMQTTConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.mqttConnected.Set(1)
		return
	}
	m.mqttConnected.Set(0)
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.reg
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests served by next under the given route label.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		}
	})
}
