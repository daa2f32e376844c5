// Package metrics holds the Prometheus instruments exposed on /metrics.
// Collectors are registered with the default registry at init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SpinSubmissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spin_submissions_total",
			Help: "Spin submissions by decision reason (granted, invalid_input, already_claimed, storage_error).",
		}, []string{"reason"})

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Coupon notifications by outcome (sent, failed, not_configured, dropped).",
		}, []string{"result"})

	NotificationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Coupon notifications waiting for a worker.",
		})
)

func init() {
	prometheus.MustRegister(
		SpinSubmissions,
		Notifications,
		NotificationQueueDepth,
	)
}
