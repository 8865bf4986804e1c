package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fable_worker_jobs_total",
			Help: "Total number of generation jobs processed, by outcome.",
		},
		[]string{"status"},
	)
	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fable_worker_job_duration_seconds",
			Help:    "Histogram of end-to-end generation job durations.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5s .. ~42m
		},
		[]string{"status"},
	)
)
