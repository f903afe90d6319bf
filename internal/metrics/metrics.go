// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mailroom_http_requests_total",
		Help: "Total number of HTTP requests received",
	},
	[]string{"endpoint", "status", "method"},
)

var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mailroom_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint", "method"},
)

var RateLimitRejectionsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "mailroom_rate_limit_rejections_total",
		Help: "Total number of requests rejected by the login rate limiter",
	},
)

var AccessDenialsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mailroom_template_access_denials_total",
		Help: "Template operations refused by the access rules",
	},
	[]string{"operation", "reason"},
)

var RendersTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mailroom_template_renders_total",
		Help: "Template renders by surface and outcome",
	},
	[]string{"surface", "outcome"},
)

var MailSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "mailroom_mail_sent_total",
		Help: "Outbound mail attempts by transport and outcome",
	},
	[]string{"driver", "outcome"},
)

var MailSendDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "mailroom_mail_send_duration_seconds",
		Help:    "Time spent handing a message to the transport",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"driver"},
)

var registerOnce sync.Once

// Register adds every collector to the default registry. It is safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			RateLimitRejectionsTotal,
			AccessDenialsTotal,
			RendersTotal,
			MailSentTotal,
			MailSendDuration,
		)
	})
}
