// Package tracker follows the lifecycle of the TCP connections seen in a
// capture and derives per connection figures from raw segments: bits sent,
// retransmissions, bits in flight and RTT samples.
package tracker

import (
	"time"

	"github.com/apex/log"

	"github.com/m-lab/flowstats/logging"
	"github.com/m-lab/flowstats/metrics"
	"github.com/m-lab/flowstats/model"
	"github.com/m-lab/flowstats/rtt"
)

// ConnID indexes the connection table of a Tracker.
type ConnID int

// Accumulator collects the figures of one connection during one bucket.
type Accumulator struct {
	Bits            float64
	Retransmissions int
	Packets         int

	inflightSum   float64
	inflightCount int
	rttSum        float64
	rttCount      int
}

// AddInflight records one in-flight sample, in bits.
func (a *Accumulator) AddInflight(bits float64) {
	a.inflightSum += bits
	a.inflightCount++
}

// AddRTT records one RTT sample, in milliseconds.
func (a *Accumulator) AddRTT(ms float64) {
	a.rttSum += ms
	a.rttCount++
}

// Inflight returns the mean in-flight sample, or 0 without samples.
func (a *Accumulator) Inflight() float64 {
	if a.inflightCount == 0 {
		return 0
	}
	return a.inflightSum / float64(a.inflightCount)
}

// AvgRTT returns the mean RTT sample, and false without samples.
func (a *Accumulator) AvgRTT() (float64, bool) {
	if a.rttCount == 0 {
		return 0, false
	}
	return a.rttSum / float64(a.rttCount), true
}

// Reset clears the accumulator for the next bucket.
func (a *Accumulator) Reset() {
	*a = Accumulator{}
}

// Connection is the state of one tracked connection. Offsets are relative
// to StartSeq, modulo 2^32.
type Connection struct {
	ID   ConnID
	Key  model.ConnectionKey
	Flow string

	Active         bool
	StartSeq       uint32
	MaxSentOffset  uint32
	MaxAckedOffset uint32

	Acc Accumulator

	observed map[uint32]struct{}
	rtt      *rtt.Estimator
}

// Inflight returns the bits sent but not yet acknowledged.
func (c *Connection) Inflight() float64 {
	if c.MaxSentOffset <= c.MaxAckedOffset {
		return 0
	}
	return float64(c.MaxSentOffset-c.MaxAckedOffset) * 8
}

// Observed returns the number of unacknowledged offsets remembered.
func (c *Connection) Observed() int {
	return len(c.observed)
}

// Options configure a Tracker.
type Options struct {
	// Vantage labels metrics and logs, e.g. "sender" or "bottleneck".
	Vantage string
	// ThroughputOnly restricts tracking to connection lifecycle and bits
	// sent by the client.
	ThroughputOnly bool
	// RTTProbeHorizon bounds how long an RTT probe waits for its echo.
	RTTProbeHorizon time.Duration
}

// Update describes what one segment did to its connection.
type Update struct {
	// Conn is nil when the segment did not belong to a known connection.
	Conn           *Connection
	Registered     bool
	Closed         bool
	Retransmission bool
	HasRTT         bool
	// RTT is in milliseconds.
	RTT float64
}

// Tracker owns the connection table of one capture.
type Tracker struct {
	opts    Options
	conns   []*Connection
	index   map[model.ConnectionKey]ConnID
	unknown int
}

// New returns an empty Tracker.
func New(opts Options) *Tracker {
	return &Tracker{
		opts:  opts,
		index: make(map[model.ConnectionKey]ConnID),
	}
}

// Process applies one segment to the connection table.
func (t *Tracker) Process(ev *model.SegmentEvent) Update {
	var u Update
	id, known := t.index[ev.Key]
	if ev.SYN() && !known {
		id = t.register(ev)
		known = true
		u.Registered = true
	}
	if !known {
		t.unknown++
		metrics.FramesSkipped.WithLabelValues(t.opts.Vantage, "unknown-connection").Inc()
		return u
	}
	c := t.conns[id]
	u.Conn = c
	if ev.FIN() {
		if c.Active {
			c.Active = false
			u.Closed = true
			metrics.Connections.WithLabelValues(t.opts.Vantage, "close").Inc()
			logging.Logger.WithFields(log.Fields{
				"vantage": t.opts.Vantage,
				"flow":    c.Flow,
			}).Debug("connection closed")
		}
		return u
	}
	if ev.FromClient {
		t.fromClient(c, ev, &u)
	} else if !t.opts.ThroughputOnly {
		t.fromServer(c, ev, &u)
	}
	if !t.opts.ThroughputOnly {
		c.Acc.AddInflight(c.Inflight())
	}
	return u
}

func (t *Tracker) register(ev *model.SegmentEvent) ConnID {
	id := ConnID(len(t.conns))
	c := &Connection{
		ID:       id,
		Key:      ev.Key,
		Flow:     ev.Key.String(),
		Active:   true,
		StartSeq: ev.Seq,
		observed: make(map[uint32]struct{}),
		rtt:      rtt.NewEstimator(t.opts.RTTProbeHorizon),
	}
	t.conns = append(t.conns, c)
	t.index[ev.Key] = id
	metrics.Connections.WithLabelValues(t.opts.Vantage, "open").Inc()
	logging.Logger.WithFields(log.Fields{
		"vantage": t.opts.Vantage,
		"flow":    c.Flow,
	}).Debug("connection opened")
	return id
}

func (t *Tracker) fromClient(c *Connection, ev *model.SegmentEvent, u *Update) {
	c.Acc.Packets++
	if t.opts.ThroughputOnly {
		c.Acc.Bits += float64(ev.PayloadBytes) * 8
		return
	}
	if ev.HasTimestamp {
		c.rtt.Probe(ev.TSVal, ev.Time)
	}
	if ev.PayloadBytes == 0 {
		return
	}
	off := ev.Seq - c.StartSeq
	if _, seen := c.observed[off]; seen {
		c.Acc.Retransmissions++
		u.Retransmission = true
		metrics.Retransmissions.Inc()
		return
	}
	c.observed[off] = struct{}{}
	if off > c.MaxSentOffset {
		c.MaxSentOffset = off
	}
	c.Acc.Bits += float64(ev.PayloadBytes) * 8
}

func (t *Tracker) fromServer(c *Connection, ev *model.SegmentEvent, u *Update) {
	if ev.Flags&model.FlagACK != 0 {
		ack := ev.Ack - c.StartSeq
		if ack > c.MaxAckedOffset {
			c.MaxAckedOffset = ack
			for off := range c.observed {
				if off < ack {
					delete(c.observed, off)
				}
			}
		}
	}
	if ev.HasTimestamp {
		if ms, ok := c.rtt.Echo(ev.TSEcr, ev.Time); ok {
			c.Acc.AddRTT(ms)
			u.HasRTT = true
			u.RTT = ms
		}
	}
}

// Active returns the active connections in registration order.
func (t *Tracker) Active() []*Connection {
	out := make([]*Connection, 0, len(t.conns))
	for _, c := range t.conns {
		if c.Active {
			out = append(out, c)
		}
	}
	return out
}

// Connections returns every connection ever registered.
func (t *Tracker) Connections() []*Connection {
	return t.conns
}

// Lookup returns the connection of key.
func (t *Tracker) Lookup(key model.ConnectionKey) (*Connection, bool) {
	id, ok := t.index[key]
	if !ok {
		return nil, false
	}
	return t.conns[id], true
}

// Unknown returns the number of segments of connections whose SYN was not
// in the capture.
func (t *Tracker) Unknown() int {
	return t.unknown
}
