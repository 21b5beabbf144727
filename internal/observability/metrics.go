package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bondx",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "bondx",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	published = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bondx",
			Subsystem: "producer",
			Name:      "published_total",
			Help:      "Bond records accepted by the publication.",
		},
		[]string{"stream"},
	)
	offerRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bondx",
			Subsystem: "producer",
			Name:      "offer_retries_total",
			Help:      "Offers refused by flow control and retried.",
		},
		[]string{"stream", "reason"},
	)
	received = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bondx",
			Subsystem: "consumer",
			Name:      "received_total",
			Help:      "Bond records decoded by the consumer.",
		},
		[]string{"stream"},
	)
	decodeErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "bondx",
			Subsystem: "consumer",
			Name:      "decode_errors_total",
			Help:      "Fragments that failed to decode.",
		},
		[]string{"stream"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, published, offerRetries, received, decodeErrors)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordPublished(stream int32) {
	RegisterMetrics()
	published.WithLabelValues(streamLabel(stream)).Inc()
}

func RecordOfferRetry(stream int32, reason string) {
	RegisterMetrics()
	offerRetries.WithLabelValues(streamLabel(stream), reason).Inc()
}

func RecordReceived(stream int32) {
	RegisterMetrics()
	received.WithLabelValues(streamLabel(stream)).Inc()
}

func RecordDecodeError(stream int32) {
	RegisterMetrics()
	decodeErrors.WithLabelValues(streamLabel(stream)).Inc()
}

func streamLabel(stream int32) string {
	return strconv.FormatInt(int64(stream), 10)
}
