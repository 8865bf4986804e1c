package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fable_ai_requests_total",
			Help: "Total number of requests to the content model API.",
		},
		[]string{"model", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fable_ai_request_duration_seconds",
			Help:    "Histogram of content model request durations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s .. ~8.5m
		},
		[]string{"model"},
	)
	aiTotalTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fable_ai_total_tokens",
			Help:    "Histogram of total token counts per generation (prompt + completion).",
			Buckets: prometheus.LinearBuckets(1000, 1000, 15),
		},
		[]string{"model"},
	)
)
