// Package metrics registers the pipeline's Prometheus instruments. Exposed
// via promhttp when the metrics listener is enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StageAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anime_courier_materializer_stage_attempts_total",
		Help: "Materialization attempts per cascade stage.",
	}, []string{"stage"})

	StageSuccesses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anime_courier_materializer_stage_successes_total",
		Help: "Materializations completed per cascade stage.",
	}, []string{"stage"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anime_courier_deliveries_total",
		Help: "Episode deliveries by outcome (delivered, degraded, failed, cancelled).",
	}, []string{"outcome"})

	CatalogueErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anime_courier_catalogue_errors_total",
		Help: "Catalogue API failures by kind (unavailable, contract).",
	}, []string{"kind"})

	EpisodeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "anime_courier_episode_pipeline_seconds",
		Help:    "Wall time of one episode pipeline, resolve through delivery.",
		Buckets: prometheus.ExponentialBuckets(5, 2, 10), // 5s .. ~42m
	})
)
