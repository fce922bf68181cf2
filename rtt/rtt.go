// Package rtt estimates round trip times from TCP timestamp options.
//
// The sender side of a connection stamps each segment with a TSval. When
// the receiver echoes that value back in TSecr, the time elapsed between
// the two observations at the capture point is one RTT sample.
package rtt

import (
	"time"

	"github.com/m-lab/flowstats/metrics"
)

// DefaultHorizon is how long a probe may wait for its echo.
const DefaultHorizon = 60 * time.Second

// Estimator matches timestamp echoes with pending probes of one connection.
// It is not safe for concurrent use.
type Estimator struct {
	horizon   float64
	nextSweep float64
	pending   map[uint32]float64
}

// NewEstimator returns an Estimator whose probes are evicted once they are
// older than horizon. A zero horizon keeps probes until they are echoed.
func NewEstimator(horizon time.Duration) *Estimator {
	return &Estimator{
		horizon: horizon.Seconds(),
		pending: make(map[uint32]float64),
	}
}

// Probe records that a segment carrying tsval was seen at t, in seconds.
// A later probe with the same tsval replaces the earlier one.
func (e *Estimator) Probe(tsval uint32, t float64) {
	e.pending[tsval] = t
}

// Echo consumes the probe echoed by tsecr at time t and returns the RTT in
// milliseconds. It returns false if no probe carried tsecr.
func (e *Estimator) Echo(tsecr uint32, t float64) (float64, bool) {
	sent, ok := e.pending[tsecr]
	if !ok {
		metrics.RTTSamples.WithLabelValues("unmatched").Inc()
		return 0, false
	}
	delete(e.pending, tsecr)
	metrics.RTTSamples.WithLabelValues("matched").Inc()
	e.evict(t)
	return (t - sent) * 1000, true
}

// evict drops probes older than the horizon. The map is scanned at most
// twice per horizon.
func (e *Estimator) evict(t float64) {
	if e.horizon <= 0 || t < e.nextSweep {
		return
	}
	e.nextSweep = t + e.horizon/2
	for v, sent := range e.pending {
		if t-sent > e.horizon {
			delete(e.pending, v)
		}
	}
}

// Pending returns the number of probes waiting for an echo.
func (e *Estimator) Pending() int {
	return len(e.pending)
}
