// Package metrics defines the custom Prometheus metrics of the e-commerce
// API. It is the single source of truth for metric names, labels, and help
// strings. All metrics register with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ecommerce"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// AuthOperationsTotal counts auth operations by outcome.
// Labels:
//   - operation: "login", "refresh", "revoke", "logout"
//   - result: "success", "rejected" (expected failure), "error" (storage failure)
var AuthOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "operations_total",
		Help:      "Total number of auth operations, by operation and result.",
	},
	[]string{"operation", "result"},
)

// AuthOperationDuration measures auth operations end-to-end, including
// password hashing and storage round trips.
var AuthOperationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "operation_duration_seconds",
		Help:      "Duration of auth operations.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

// RefreshReuseTotal counts refresh attempts that presented a token already
// superseded by rotation.
var RefreshReuseTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "refresh_reuse_total",
		Help:      "Total number of refresh attempts using a superseded refresh token.",
	},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditQueueDepth tracks the number of events waiting in each dispatcher worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// AuditEventsTotal counts audit events by what happened to them.
// Labels:
//   - type: the auth event type (e.g. "login", "refresh_failed")
//   - result: "persisted", "dropped" (queue full), "failed" (write error)
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "audit",
		Name:      "events_total",
		Help:      "Total number of audit events, by type and result.",
	},
	[]string{"type", "result"},
)
