package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    APILatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "loadcast",
            Subsystem: "api",
            Name:      "latency_seconds",
            Help:      "Latency of diagnostic endpoints",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"endpoint"},
    )

    APIErrors = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "loadcast",
            Subsystem: "api",
            Name:      "errors_total",
            Help:      "Errors by diagnostic endpoint",
        },
        []string{"endpoint"},
    )
)

func Register() {
    once.Do(func() {
        prometheus.MustRegister(APILatency, APIErrors)
    })
}
