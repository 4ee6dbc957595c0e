// Package metrics exposes Prometheus instrumentation for alert executions,
// notification deliveries, and scheduler state. All collectors live on an
// explicit registry owned by the application, never the package default.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the application's Prometheus collectors.
type Collector struct {
	registry *prometheus.Registry

	executions        *prometheus.CounterVec
	executionDuration *prometheus.HistogramVec
	notifications     *prometheus.CounterVec
	scheduledJobs     prometheus.Gauge
	startTime         prometheus.Gauge
}

// NewCollector creates a Collector with a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	c := &Collector{
		registry: registry,
		executions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlsentinel",
			Name:      "executions_total",
			Help:      "Alert executions by alert name and outcome.",
		}, []string{"alert_name", "status"}),
		executionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sqlsentinel",
			Name:      "execution_duration_seconds",
			Help:      "Duration of alert executions.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"alert_name"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sqlsentinel",
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by channel and outcome.",
		}, []string{"channel", "status"}),
		scheduledJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sqlsentinel",
			Name:      "scheduled_jobs",
			Help:      "Number of alerts currently registered with the scheduler.",
		}),
		startTime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sqlsentinel",
			Name:      "start_time_seconds",
			Help:      "Unix time the process started.",
		}),
	}
	c.startTime.Set(float64(time.Now().Unix()))
	return c
}

// RecordExecution counts one execution outcome and its duration.
func (c *Collector) RecordExecution(alertName, status string, duration time.Duration) {
	c.executions.WithLabelValues(alertName, status).Inc()
	c.executionDuration.WithLabelValues(alertName).Observe(duration.Seconds())
}

// RecordNotification counts one notification delivery outcome.
func (c *Collector) RecordNotification(channel string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.notifications.WithLabelValues(channel, status).Inc()
}

// SetScheduledJobs records the current scheduler job count.
func (c *Collector) SetScheduledJobs(n int) {
	c.scheduledJobs.Set(float64(n))
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
