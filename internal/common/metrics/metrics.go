// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_sent_total",
			Help: "Total number of notifications delivered, by channel",
		},
		[]string{"channel", "entity_type", "event"},
	)

	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_skipped_total",
			Help: "Total number of deliveries skipped because the claim was already held",
		},
		[]string{"channel"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_deliveries_failed_total",
			Help: "Total number of deliveries that failed, by channel and error code",
		},
		[]string{"channel", "error_code"},
	)

	ClaimsGranted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_claims_granted_total",
			Help: "Total number of delivery-log claims granted",
		},
	)

	ClaimsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notifier_claims_duplicate_total",
			Help: "Total number of delivery-log claims rejected as duplicates",
		},
	)

	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "notifier_sweep_duration_seconds",
			Help: "Duration of a full reminder sweep in seconds",
		},
	)

	SweepEntitiesScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_sweep_entities_scanned_total",
			Help: "Total number of entities scanned during reminder sweeps",
		},
		[]string{"entity_type"},
	)
)
