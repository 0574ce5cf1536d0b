package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics contains all Prometheus metrics for the donation relay
type PrometheusMetrics struct {
	// Donation metrics
	DonationsReceivedTotal *prometheus.CounterVec
	DonationAmountTotal    prometheus.Counter
	LeaderboardSize        prometheus.Gauge

	// Notification metrics
	NotificationsSentTotal    *prometheus.CounterVec
	NotificationFailuresTotal *prometheus.CounterVec
	NotificationDuration      *prometheus.HistogramVec

	// Feed metrics
	FeedPollsTotal         *prometheus.CounterVec
	FeedAnnouncementsTotal *prometheus.CounterVec
	KeepAlivePingsTotal    *prometheus.CounterVec

	// Storage metrics
	StorageOperationsTotal   *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Application health metrics
	ApplicationUptime prometheus.Gauge
	ComponentHealth   *prometheus.GaugeVec
	MemoryUsage       prometheus.Gauge
	GoroutineCount    prometheus.Gauge
}

// NewPrometheusMetrics creates all metrics and registers them on reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		DonationsReceivedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_donations_received_total",
				Help: "Total number of donation webhooks received",
			},
			[]string{"tier"},
		),

		DonationAmountTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "relay_donation_amount_total",
				Help: "Sum of all donated amounts",
			},
		),

		LeaderboardSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_leaderboard_entries",
				Help: "Number of donors on the most recently computed leaderboard",
			},
		),

		NotificationsSentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_notifications_sent_total",
				Help: "Total number of notifications delivered to chat webhooks",
			},
			[]string{"kind"},
		),

		NotificationFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_notification_failures_total",
				Help: "Total number of failed notification deliveries",
			},
			[]string{"kind", "reason"},
		),

		NotificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_notification_duration_seconds",
				Help:    "Time spent delivering notifications",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),

		FeedPollsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_feed_polls_total",
				Help: "Total number of feed polls by outcome",
			},
			[]string{"result"},
		),

		FeedAnnouncementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_feed_announcements_total",
				Help: "Total number of feed items announced by category",
			},
			[]string{"category"},
		),

		KeepAlivePingsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_keepalive_pings_total",
				Help: "Total number of keep-alive pings by outcome",
			},
			[]string{"status"},
		),

		StorageOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_storage_operations_total",
				Help: "Total number of donation log operations",
			},
			[]string{"operation", "backend", "status"},
		),

		StorageOperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_storage_operation_duration_seconds",
				Help:    "Duration of donation log operations",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation", "backend"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "relay_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "relay_http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		ApplicationUptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_uptime_seconds",
				Help: "Application uptime in seconds",
			},
		),

		ComponentHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "relay_component_health",
				Help: "Health status of application components (1 = healthy, 0 = unhealthy)",
			},
			[]string{"component"},
		),

		MemoryUsage: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		GoroutineCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "relay_goroutines",
				Help: "Current number of goroutines",
			},
		),
	}
}

// RecordDonation records an inbound donation
func (pm *PrometheusMetrics) RecordDonation(tier string, amount float64) {
	pm.DonationsReceivedTotal.WithLabelValues(tier).Inc()
	if amount > 0 {
		pm.DonationAmountTotal.Add(amount)
	}
}

// UpdateLeaderboardSize records the size of the latest leaderboard
func (pm *PrometheusMetrics) UpdateLeaderboardSize(entries int) {
	pm.LeaderboardSize.Set(float64(entries))
}

// RecordNotificationSent records a successful notification
func (pm *PrometheusMetrics) RecordNotificationSent(kind string, duration time.Duration) {
	pm.NotificationsSentTotal.WithLabelValues(kind).Inc()
	pm.NotificationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordNotificationFailure records a failed notification
func (pm *PrometheusMetrics) RecordNotificationFailure(kind, reason string, duration time.Duration) {
	pm.NotificationFailuresTotal.WithLabelValues(kind, reason).Inc()
	pm.NotificationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordFeedPoll records the outcome of a feed poll
func (pm *PrometheusMetrics) RecordFeedPoll(result string) {
	pm.FeedPollsTotal.WithLabelValues(result).Inc()
}

// RecordFeedAnnouncement records an announced feed item
func (pm *PrometheusMetrics) RecordFeedAnnouncement(category string) {
	pm.FeedAnnouncementsTotal.WithLabelValues(category).Inc()
}

// RecordKeepAlivePing records a keep-alive ping
func (pm *PrometheusMetrics) RecordKeepAlivePing(status string) {
	pm.KeepAlivePingsTotal.WithLabelValues(status).Inc()
}

// RecordStorageOperation records a donation log operation
func (pm *PrometheusMetrics) RecordStorageOperation(operation, backend, status string, duration time.Duration) {
	pm.StorageOperationsTotal.WithLabelValues(operation, backend, status).Inc()
	pm.StorageOperationDuration.WithLabelValues(operation, backend).Observe(duration.Seconds())
}

// RecordHTTPRequest records HTTP request metrics
func (pm *PrometheusMetrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	pm.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	pm.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// UpdateComponentHealth updates component health status
func (pm *PrometheusMetrics) UpdateComponentHealth(component string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	pm.ComponentHealth.WithLabelValues(component).Set(value)
}

// UpdateMemoryUsage updates memory usage metrics
func (pm *PrometheusMetrics) UpdateMemoryUsage(bytes uint64) {
	pm.MemoryUsage.Set(float64(bytes))
}

// UpdateGoroutineCount updates goroutine count
func (pm *PrometheusMetrics) UpdateGoroutineCount(count int) {
	pm.GoroutineCount.Set(float64(count))
}

// UpdateApplicationUptime updates application uptime
func (pm *PrometheusMetrics) UpdateApplicationUptime(startTime time.Time) {
	pm.ApplicationUptime.Set(time.Since(startTime).Seconds())
}
