package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "service_buddy"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "code"},
	)

	grpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_requests_total",
			Help:      "gRPC requests by method and status code.",
		},
		[]string{"method", "code"},
	)

	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Time spent serving API requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"transport", "operation"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_transitions_total",
			Help:      "Booking lifecycle transitions by target status.",
		},
		[]string{"status"},
	)

	claims = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_claims_total",
			Help:      "Technician job claim attempts by outcome.",
		},
		[]string{"outcome"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	syncTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_tasks_total",
			Help:      "Ledger sync tasks by outcome.",
		},
		[]string{"outcome"},
	)

	backups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backups_total",
			Help:      "SQLite snapshots by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, grpcRequests, requestDuration, transitions, claims, notifications, syncTasks, backups)
	})
}

func IncHTTP(endpoint, code string) {
	httpRequests.WithLabelValues(endpoint, code).Inc()
}

func IncGRPC(method, code string) {
	grpcRequests.WithLabelValues(method, code).Inc()
}

func ObserveRequest(transport, operation string, started time.Time) {
	requestDuration.WithLabelValues(transport, operation).Observe(time.Since(started).Seconds())
}

func IncTransition(status string) {
	transitions.WithLabelValues(status).Inc()
}

// IncClaim counts a claim attempt; outcome is "won", "already_assigned",
// "rejected" or "error".
func IncClaim(outcome string) {
	claims.WithLabelValues(outcome).Inc()
}

func IncNotification(channel, outcome string) {
	notifications.WithLabelValues(channel, outcome).Inc()
}

func IncSyncTask(outcome string) {
	syncTasks.WithLabelValues(outcome).Inc()
}

func IncBackup(outcome string) {
	backups.WithLabelValues(outcome).Inc()
}
