package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    APILatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "trendpull",
            Subsystem: "api",
            Name:      "latency_seconds",
            Help:      "Latency of status API endpoints",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    APIErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "trendpull",
            Subsystem: "api",
            Name:      "errors_total",
            Help:      "Errors by status API endpoint",
        },
        []string{"endpoint"},
    )

    APICache = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "trendpull",
            Subsystem: "api",
            Name:      "cache_total",
            Help:      "Snapshot cache lookups by result",
        },
        []string{"result"},
    )
)

// Register adds the API collectors to the default registry once.
func Register() {
    once.Do(func() {
        prometheus.MustRegister(APILatency, APIErrors, APICache)
    })
}
