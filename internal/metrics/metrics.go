package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the ledger's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "globalfund",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "globalfund",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "globalfund",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "path"},
	)

	donationEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "globalfund",
			Subsystem: "donations",
			Name:      "transitions_total",
			Help:      "Donation status transitions recorded by the ledger.",
		},
		[]string{"status"},
	)

	payoutEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "globalfund",
			Subsystem: "payouts",
			Name:      "transitions_total",
			Help:      "Payout status transitions recorded by the ledger.",
		},
		[]string{"status"},
	)
)

func init() {
	Registry.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		httpInFlight,
		httpRequests,
		httpDuration,
		donationEvents,
		payoutEvents,
	)
}

// Handler exposes the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func IncrementInFlight() { httpInFlight.Inc() }

func DecrementInFlight() { httpInFlight.Dec() }

func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, status).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordDonation(status string) {
	donationEvents.WithLabelValues(status).Inc()
}

func RecordPayout(status string) {
	payoutEvents.WithLabelValues(status).Inc()
}
