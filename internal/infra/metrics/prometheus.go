package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_jobs_processed_total",
		Help: "Total number of extraction jobs processed, by status",
	}, []string{"status"})

	PipelineStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "keyframe_pipeline_stage_duration_seconds",
		Help:    "Duration of each extraction pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	ShotBoundariesDetectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyframe_shot_boundaries_detected_total",
		Help: "Total number of shot boundaries detected across all jobs",
	})

	KeyframesSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyframe_keyframes_selected_total",
		Help: "Total number of keyframes selected across all jobs",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyframe_active_workers",
		Help: "Number of currently active workers processing jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "keyframe_retry_total",
		Help: "Total number of retries",
	}, []string{"attempt"})
)
