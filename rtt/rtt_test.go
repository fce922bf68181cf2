package rtt

import (
	"testing"
	"time"
)

func TestEstimatorMatch(t *testing.T) {
	e := NewEstimator(DefaultHorizon)
	e.Probe(42, 0.1)
	got, ok := e.Echo(42, 0.25)
	if !ok {
		t.Fatal("echo of a pending probe did not match")
	}
	if got != 150 {
		t.Errorf("Echo() = %v, want exactly 150", got)
	}
	if _, ok := e.Echo(42, 0.3); ok {
		t.Error("a probe must be consumed by its first echo")
	}
	if e.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", e.Pending())
	}
}

func TestEstimatorOverwrite(t *testing.T) {
	e := NewEstimator(0)
	e.Probe(7, 1.0)
	e.Probe(7, 1.5)
	got, ok := e.Echo(7, 2.0)
	if !ok || got != 500 {
		t.Errorf("Echo() = %v, %v; want 500, true", got, ok)
	}
}

func TestEstimatorUnmatched(t *testing.T) {
	e := NewEstimator(0)
	e.Probe(1, 0)
	if _, ok := e.Echo(2, 1); ok {
		t.Error("unmatched echo produced a sample")
	}
	if e.Pending() != 1 {
		t.Errorf("Pending() = %d, want 1", e.Pending())
	}
}

func TestEstimatorHorizon(t *testing.T) {
	tests := []struct {
		name    string
		horizon time.Duration
		pending int
	}{
		{name: "evicts stale probes", horizon: 10 * time.Second, pending: 0},
		{name: "zero horizon keeps everything", horizon: 0, pending: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEstimator(tt.horizon)
			e.Probe(1, 0)
			e.Probe(2, 100)
			if _, ok := e.Echo(2, 100.05); !ok {
				t.Fatal("echo did not match")
			}
			if e.Pending() != tt.pending {
				t.Errorf("Pending() = %d, want %d", e.Pending(), tt.pending)
			}
		})
	}
}
