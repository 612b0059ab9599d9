package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "posturemon",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posturemon",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "posturemon",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	postureChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posturemon",
			Subsystem: "posture",
			Name:      "checks_total",
			Help:      "Total number of posture checks logged.",
		},
		[]string{"status"},
	)

	sessionsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "posturemon",
			Subsystem: "sessions",
			Name:      "started_total",
			Help:      "Total number of monitoring sessions started.",
		},
	)

	badgesUnlocked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posturemon",
			Subsystem: "rewards",
			Name:      "badges_unlocked_total",
			Help:      "Total number of badges unlocked.",
		},
		[]string{"badge"},
	)

	pointsAwarded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posturemon",
			Subsystem: "rewards",
			Name:      "points_awarded_total",
			Help:      "Sum of positive point awards.",
		},
		[]string{"source"},
	)

	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "posturemon",
			Subsystem: "jobs",
			Name:      "achievement_sweeps_total",
			Help:      "Total number of background achievement sweeps.",
		},
		[]string{"success"},
	)

	sweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "posturemon",
			Subsystem: "jobs",
			Name:      "achievement_sweep_duration_seconds",
			Help:      "Duration of background achievement sweeps.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		postureChecks,
		sessionsStarted,
		badgesUnlocked,
		pointsAwarded,
		sweepRuns,
		sweepDuration,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RequestStarted marks a request in flight and returns the func that records its outcome.
// path should be the matched route template, not the raw URL.
func RequestStarted(method, path string) func(status int) {
	start := time.Now()
	httpInFlight.Inc()
	return func(status int) {
		httpInFlight.Dec()
		if path == "" {
			path = "unmatched"
		}
		method = strings.ToUpper(method)
		httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordPostureCheck counts a logged check. Unrecognised statuses share one label.
func RecordPostureCheck(status string) {
	switch status {
	case "good", "bad":
	default:
		status = "other"
	}
	postureChecks.WithLabelValues(status).Inc()
}

// RecordSessionStarted counts a new session.
func RecordSessionStarted() {
	sessionsStarted.Inc()
}

// RecordBadgeUnlocked counts a badge unlock and the points it carried.
func RecordBadgeUnlocked(badgeID string, points int) {
	badgesUnlocked.WithLabelValues(badgeID).Inc()
	RecordPointsAwarded("badge", points)
}

// RecordPointsAwarded adds points to the awarded total. Non-positive deltas are ignored.
func RecordPointsAwarded(source string, points int) {
	if points <= 0 {
		return
	}
	pointsAwarded.WithLabelValues(source).Add(float64(points))
}

// RecordSweep records one background achievement sweep.
func RecordSweep(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	sweepRuns.WithLabelValues(strconv.FormatBool(success)).Inc()
	sweepDuration.Observe(duration.Seconds())
}
