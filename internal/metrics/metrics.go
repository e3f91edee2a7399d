// Package metrics exposes Prometheus collectors for both services.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	predictionsTotal  *prometheus.CounterVec
	detectionDuration *prometheus.HistogramVec
	consumptionTotal  *prometheus.CounterVec
	signupsTotal      *prometheus.CounterVec
	loginsTotal       *prometheus.CounterVec
}

// New creates a registry with process and Go collectors plus the service
// collectors.
func New() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}
	return NewWithRegistry(registry)
}

// NewWithRegistry registers the service collectors on registry.
func NewWithRegistry(registry *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{registry: registry}

	m.predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meterease_predictions_total",
			Help: "Total number of predict requests by outcome",
		},
		[]string{"outcome"}, // outcome: success, invalid_image, detection_unavailable, validation, error
	)
	m.detectionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meterease_detection_duration_seconds",
			Help:    "Latency of hosted detection calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"status"},
	)
	m.consumptionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meterease_consumption_results_total",
			Help: "Consumption calculations by status",
		},
		[]string{"status", "anomalous"},
	)
	m.signupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meterease_signups_total",
			Help: "Signup attempts by result",
		},
		[]string{"result"},
	)
	m.loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meterease_logins_total",
			Help: "Login attempts by result",
		},
		[]string{"result"},
	)

	for _, c := range []prometheus.Collector{m.predictionsTotal, m.detectionDuration, m.consumptionTotal, m.signupsTotal, m.loginsTotal} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordPrediction(outcome string) {
	m.predictionsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveDetection(d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.detectionDuration.WithLabelValues(status).Observe(d.Seconds())
}

func (m *Metrics) RecordConsumption(status string, anomalous bool) {
	a := "false"
	if anomalous {
		a = "true"
	}
	m.consumptionTotal.WithLabelValues(status, a).Inc()
}

func (m *Metrics) RecordSignup(result string) {
	m.signupsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordLogin(result string) {
	m.loginsTotal.WithLabelValues(result).Inc()
}
