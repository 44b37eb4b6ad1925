package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the pipeline
type Metrics struct {
	// Segmentation metrics
	ChunksProduced prometheus.Counter
	ChunksSilent   prometheus.Counter
	ChunkRMS       prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionEmpty    prometheus.Counter
	TranscriptionDuration prometheus.Histogram

	// Explanation API metrics
	SubmitRequests        prometheus.Counter
	SubmitRetries         prometheus.Counter
	SubmitFatalFailures   prometheus.Counter
	SubmitRetryExhaustion prometheus.Counter
	SubmitDuration        prometheus.Histogram

	// Notification metrics
	NotificationsSent prometheus.Counter
	TermsParsed       prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		ChunksProduced: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_chunks_produced_total",
			Help: "Total number of audio chunks assembled by the segmenter",
		}),
		ChunksSilent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_chunks_silent_total",
			Help: "Total number of chunks discarded as silent",
		}),
		ChunkRMS: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lexwatch_chunk_rms",
			Help:    "RMS energy distribution of produced chunks (int16 scale)",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}),

		TranscriptionRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_transcription_requests_total",
			Help: "Total number of chunks sent for transcription",
		}),
		TranscriptionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_transcription_failures_total",
			Help: "Total number of transcription failures (chunk skipped)",
		}),
		TranscriptionEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_transcription_empty_total",
			Help: "Total number of voiced chunks that produced no speech",
		}),
		TranscriptionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lexwatch_transcription_duration_seconds",
			Help:    "Time spent transcribing one chunk",
			Buckets: prometheus.DefBuckets,
		}),

		SubmitRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_submit_requests_total",
			Help: "Total number of transcript submissions to the explanation service",
		}),
		SubmitRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_submit_retries_total",
			Help: "Total number of retry attempts against the explanation service",
		}),
		SubmitFatalFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_submit_fatal_failures_total",
			Help: "Total number of non-retryable submission failures",
		}),
		SubmitRetryExhaustion: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_submit_retry_exhaustion_total",
			Help: "Total number of submissions abandoned after exhausting retries",
		}),
		SubmitDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lexwatch_submit_duration_seconds",
			Help:    "End-to-end time for one submission including retries",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
		}),

		NotificationsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_notifications_sent_total",
			Help: "Total number of notifications dispatched",
		}),
		TermsParsed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lexwatch_terms_parsed_total",
			Help: "Total number of term/definition pairs parsed from responses",
		}),
	}
}
