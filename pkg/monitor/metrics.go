package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Probe metrics
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curedeploy_health_checks_total",
			Help: "Total number of health checks by probe and result",
		},
		[]string{"probe", "result"},
	)

	CheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curedeploy_health_check_duration_seconds",
			Help:    "Health check duration in seconds by probe",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"probe"},
	)

	ConsecutiveFailures = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curedeploy_consecutive_failures",
			Help: "Current number of consecutive liveness failures",
		},
	)

	ServiceHealthy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curedeploy_service_healthy",
			Help: "Whether the managed service is considered healthy (1 = healthy)",
		},
	)

	RestartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curedeploy_service_restarts_total",
			Help: "Total number of service restarts triggered by the monitor",
		},
	)

	LastCheckTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "curedeploy_last_check_timestamp_seconds",
			Help: "Unix timestamp of the last completed health check",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ChecksTotal,
		CheckDuration,
		ConsecutiveFailures,
		ServiceHealthy,
		RestartsTotal,
		LastCheckTimestamp,
	)
}

// MetricsHandler returns the Prometheus scrape handler.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
