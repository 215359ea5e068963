// Package metrics defines the custom Prometheus metrics of the Structo API.
// It is the single source of truth for metric names, labels and help strings.
//
// Metrics register with the default registry on import via promauto and are
// served by the /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "structo"

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts by outcome.
// Label:
//   - result: "success", "invalid_credentials", "deactivated" or "error"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// PasswordEventsTotal counts password lifecycle transitions.
// Label:
//   - event: "changed", "reset_requested" or "reset_completed"
var PasswordEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "password_events_total",
		Help:      "Total number of password lifecycle events.",
	},
	[]string{"event"},
)

// RateLimitedTotal counts requests rejected by a rate-limit policy.
// Label:
//   - policy: "login" or "forgot_password"
var RateLimitedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limited_total",
		Help:      "Total number of requests rejected by rate limiting.",
	},
	[]string{"policy"},
)

// RateLimitStoreErrorsTotal counts rate-limit store failures that admitted the request.
var RateLimitStoreErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rate_limit_store_errors_total",
		Help:      "Total number of rate limit store failures (requests were admitted).",
	},
	[]string{"policy"},
)

// ── Account metrics ───────────────────────────────────────────────────────────

// AccountsCreatedTotal counts accounts created by administrators.
// Label:
//   - role: the role assigned to the new account
var AccountsCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "accounts_created_total",
		Help:      "Total number of accounts created, by role.",
	},
	[]string{"role"},
)

// AccountStatusChangesTotal counts activate and deactivate operations.
var AccountStatusChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "account_status_changes_total",
		Help:      "Total number of account status changes, by new status.",
	},
	[]string{"status"},
)

// ── Mail metrics ──────────────────────────────────────────────────────────────

// MailMessagesTotal counts outbound mail by template and result.
// Labels:
//   - template: "account_created" or "password_reset"
//   - result: "sent", "failed" or "dropped" (queue full or closed)
var MailMessagesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mail_messages_total",
		Help:      "Total number of outbound mail messages, by template and result.",
	},
	[]string{"template", "result"},
)

// MailQueueDepth tracks the number of messages waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var MailQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "mail_queue_depth",
		Help:      "Current number of mail messages pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// MailSendDuration measures how long a single delivery attempt takes.
var MailSendDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mail_send_duration_seconds",
		Help:      "Duration of a single mail delivery attempt.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"template"},
)
