package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contacts_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contacts_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	notificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contacts_notifications_total",
			Help: "Verification notifications by outcome (sent, failed, dropped)",
		},
		[]string{"outcome"},
	)

	sessionCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contacts_session_cache_lookups_total",
			Help: "Session cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	avatarUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contacts_avatar_uploads_total",
			Help: "Avatar uploads by outcome",
		},
		[]string{"outcome"},
	)

	rateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contacts_rate_limit_decisions_total",
			Help: "Rate limiter decisions by limiter and decision (allowed, denied, error)",
		},
		[]string{"limiter", "decision"},
	)
)

// ObserveHTTPRequest registra una request HTTP ya respondida.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RecordNotification(outcome string) {
	notificationsTotal.WithLabelValues(outcome).Inc()
}

func RecordSessionCacheLookup(result string) {
	sessionCacheLookups.WithLabelValues(result).Inc()
}

func RecordAvatarUpload(outcome string) {
	avatarUploadsTotal.WithLabelValues(outcome).Inc()
}

func RecordRateLimitDecision(limiter, decision string) {
	rateLimitDecisions.WithLabelValues(limiter, decision).Inc()
}

// Handler expone las metricas en formato Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}
