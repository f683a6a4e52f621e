// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics defines the Prometheus instrumentation for the reconciler.
// Everything registers on the default registry; the admin API serves it at
// /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OutcomesTotal counts reconciliation outcomes by status
	// (success, skipped, validation_failed, fatal).
	OutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconciler_outcomes_total",
			Help: "Reconciliation outcomes by status",
		},
		[]string{"status"},
	)

	// CycleDuration observes the wall time of a full poll cycle.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconciler_cycle_duration_seconds",
			Help:    "Duration of a full reconcile poll cycle",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		},
	)

	// NotificationsFetched counts payment notifications fetched from the mailbox.
	NotificationsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_notifications_fetched_total",
			Help: "Payment notifications fetched from the mailbox",
		},
	)

	// ReceiptsIssued counts receipt invoices created and emailed.
	ReceiptsIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_receipts_issued_total",
			Help: "Receipt invoices created and emailed to tenants",
		},
	)

	// AlertsPublished counts operator alerts pushed to the alert queue.
	AlertsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reconciler_alerts_published_total",
			Help: "Operator alerts published to the alert queue",
		},
	)
)

// RecordOutcome increments the outcome counter for a status.
func RecordOutcome(status string) {
	OutcomesTotal.WithLabelValues(status).Inc()
}

// RecordCycleDuration records the wall time of one poll cycle.
func RecordCycleDuration(duration time.Duration) {
	CycleDuration.Observe(duration.Seconds())
}

// IncrementNotificationsFetched adds fetched notifications to the counter.
func IncrementNotificationsFetched(n int) {
	NotificationsFetched.Add(float64(n))
}

// IncrementReceiptsIssued increments the issued-receipt counter.
func IncrementReceiptsIssued() {
	ReceiptsIssued.Inc()
}

// IncrementAlertsPublished increments the published-alert counter.
func IncrementAlertsPublished() {
	AlertsPublished.Inc()
}
