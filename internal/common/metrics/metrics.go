// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TermsMapped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminology_terms_mapped_total",
			Help: "Total number of terms mapped, by vocabulary and match stage",
		},
		[]string{"vocabulary", "stage"},
	)

	MappingFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminology_mapping_failures_total",
			Help: "Total number of mapping failures, by error code",
		},
		[]string{"error_code"},
	)

	VocabularyUnavailable = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminology_vocabulary_unavailable_total",
			Help: "Total number of vocabulary store failures skipped by the pipeline",
		},
		[]string{"vocabulary"},
	)

	MappingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "terminology_mapping_duration_seconds",
			Help: "Duration of single-term pipeline execution in seconds",
		},
		[]string{"vocabulary"},
	)

	BatchJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "terminology_batch_jobs_total",
			Help: "Total number of batch jobs, by terminal status",
		},
		[]string{"status"},
	)

	BatchTermsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "terminology_batch_terms_active",
			Help: "Number of terms currently being processed by batch workers",
		},
	)

	BatchJobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "terminology_batch_job_duration_seconds",
			Help: "Duration of batch job processing in seconds",
		},
	)
)
