// Package metrics holds the Prometheus collectors of the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups every collector exported on the metrics endpoint.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
	CacheErrors prometheus.Counter

	StatusChanges     *prometheus.CounterVec
	Transfers         *prometheus.CounterVec
	CleanupDeleted    prometheus.Counter
	NotificationsSent *prometheus.CounterVec
	WebsocketClients  prometheus.Gauge
	TaskRuns          *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bdt_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bdt_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdt_cache_hits_total",
			Help: "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdt_cache_misses_total",
			Help: "Total number of cache misses",
		}),
		CacheErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdt_cache_errors_total",
			Help: "Total number of cache errors",
		}),
		StatusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bdt_ticket_status_changes_total",
			Help: "Ticket status transitions by target status",
		}, []string{"status"}),
		Transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bdt_ticket_transfers_total",
			Help: "Ticket transfers by mode",
		}, []string{"mode"}),
		CleanupDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bdt_cleanup_deleted_tickets_total",
			Help: "Tickets removed by bulk cleanup",
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bdt_notifications_total",
			Help: "Notification deliveries by result",
		}, []string{"result"}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bdt_websocket_clients",
			Help: "Connected ticket chat subscribers",
		}),
		TaskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bdt_task_runs_total",
			Help: "Background task runs by task and result",
		}, []string{"task", "result"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration,
		m.CacheHits, m.CacheMisses, m.CacheErrors,
		m.StatusChanges, m.Transfers, m.CleanupDeleted,
		m.NotificationsSent, m.WebsocketClients, m.TaskRuns,
	)
	return m
}
