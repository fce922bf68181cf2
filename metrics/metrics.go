// Package metrics holds the Prometheus metrics exported while flowstats
// analyses a batch of run directories.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the capture and telemetry analysis pipeline.
var (
	FramesDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstats_frames_decoded_total",
			Help: "Number of capture frames decoded into TCP segments.",
		},
		[]string{"vantage"},
	)
	FramesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstats_frames_skipped_total",
			Help: "Number of capture frames skipped, by reason.",
		},
		[]string{"vantage", "reason"},
	)
	Connections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstats_connections_total",
			Help: "Number of TCP connection lifecycle events observed.",
		},
		[]string{"vantage", "event"},
	)
	Retransmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flowstats_retransmissions_total",
			Help: "Number of retransmitted segments detected at the sender.",
		},
	)
	RTTSamples = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstats_rtt_samples_total",
			Help: "Number of timestamp echoes, by whether they matched a pending probe.",
		},
		[]string{"result"},
	)
	TelemetryLinesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstats_telemetry_lines_skipped_total",
			Help: "Number of telemetry lines that could not be parsed.",
		},
		[]string{"kind"},
	)
	SamplesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstats_samples_dropped_total",
			Help: "Number of samples dropped because they repeat the last timestamp of their series.",
		},
		[]string{"series"},
	)
	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flowstats_runs_total",
			Help: "Number of run directories processed, by result.",
		},
		[]string{"result"},
	)
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flowstats_run_duration_seconds",
			Help:    "A histogram of the wall time spent analysing one run directory.",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500},
		},
	)
)
