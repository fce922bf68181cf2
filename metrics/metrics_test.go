package metrics

import (
	"testing"

	"github.com/m-lab/go/prometheusx/promtest"
)

func TestLintMetrics(t *testing.T) {
	FramesDecoded.WithLabelValues("x")
	FramesSkipped.WithLabelValues("x", "x")
	Connections.WithLabelValues("x", "x")
	RTTSamples.WithLabelValues("x")
	TelemetryLinesSkipped.WithLabelValues("x")
	SamplesDropped.WithLabelValues("x")
	Runs.WithLabelValues("x")
	promtest.LintMetrics(t)
}
