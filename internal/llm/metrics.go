package llm

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK            = "ok"
	resultError         = "error"
	resultNotConfigured = "not_configured"
)

type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "talkback",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of completion requests by provider, model and result.",
		}, []string{"provider", "model", "result"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "talkback",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Latency distribution of completion requests sent to a provider.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"provider", "result"}),
	}
})
