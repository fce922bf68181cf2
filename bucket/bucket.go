// Package bucket turns the segment stream of a capture into fixed width
// time series.
//
// Both capture passes of a run share one Clock: boundaries sit at
// t0 + k*deltaT for k >= 1, where t0 is the first frame of the sender
// capture, and each bucket is labelled with the boundary closing it.
package bucket

import (
	"github.com/m-lab/flowstats/metrics"
	"github.com/m-lab/flowstats/model"
	"github.com/m-lab/flowstats/tracker"
)

// Clock enumerates bucket boundaries.
type Clock struct {
	T0     float64
	DeltaT float64
	next   int64
}

// NewClock returns a Clock whose first boundary is t0 + deltaT.
func NewClock(t0, deltaT float64) *Clock {
	return &Clock{T0: t0, DeltaT: deltaT, next: 1}
}

// Boundary returns the k-th boundary. Boundaries are computed by
// multiplication so that every pass sees the same values.
func (c *Clock) Boundary(k int64) float64 {
	return c.T0 + float64(k)*c.DeltaT
}

// Advance calls fn with every boundary not yet closed that is <= ts.
func (c *Clock) Advance(ts float64, fn func(b float64)) {
	for b := c.Boundary(c.next); b <= ts; b = c.Boundary(c.next) {
		fn(b)
		c.next++
	}
}

// Closed returns the number of boundaries closed so far.
func (c *Clock) Closed() int64 {
	return c.next - 1
}

// RetransmissionRate returns retransmissions/packets, or 0 without packets.
func RetransmissionRate(retransmissions, packets float64) float64 {
	if packets == 0 {
		return 0
	}
	return retransmissions / packets
}

// SenderPass aggregates the sender side capture: sending rate,
// retransmissions, bits in flight and RTT.
type SenderPass struct {
	deltaT  float64
	clock   *Clock
	tracker *tracker.Tracker
	res     *model.Results
}

// NewSenderPass returns a pass that writes into res.
func NewSenderPass(deltaT float64, opts tracker.Options, res *model.Results) *SenderPass {
	return &SenderPass{
		deltaT:  deltaT,
		tracker: tracker.New(opts),
		res:     res,
	}
}

// Observe processes the next segment of the capture.
func (p *SenderPass) Observe(ev *model.SegmentEvent) {
	if p.clock == nil {
		p.clock = NewClock(ev.Time, p.deltaT)
	}
	p.clock.Advance(ev.Time, p.close)
	u := p.tracker.Process(ev)
	if u.Conn == nil {
		return
	}
	// Events sharing a capture timestamp keep the first one; the bucket
	// counters still see all of them.
	if u.HasRTT && !p.res.RTT.Get(u.Conn.Flow).Append(ev.Time, u.RTT) {
		metrics.SamplesDropped.WithLabelValues("rtt").Inc()
	}
	if u.Retransmission && !p.res.Retransmissions.Get(u.Conn.Flow).Append(ev.Time) {
		metrics.SamplesDropped.WithLabelValues("retransmissions").Inc()
	}
}

func (p *SenderPass) close(b float64) {
	var rate, retrans, packets, inflight, rtt float64
	rttFlows := 0
	for _, c := range p.tracker.Active() {
		acc := &c.Acc
		r := acc.Bits / p.deltaT
		p.res.SendingRate.Get(c.Flow).Append(b, r)
		rate += r

		p.res.RetransmissionsInterval.Get(c.Flow).Append(b, float64(acc.Retransmissions), float64(acc.Packets))
		retrans += float64(acc.Retransmissions)
		packets += float64(acc.Packets)

		in := acc.Inflight()
		p.res.Inflight.Get(c.Flow).Append(b, in)
		inflight += in

		if avg, ok := acc.AvgRTT(); ok {
			p.res.AvgRTT.Get(c.Flow).Append(b, avg)
			rtt += avg
			rttFlows++
		}
		acc.Reset()
	}
	p.res.SendingRate.Get(model.TotalID).Append(b, rate)
	p.res.RetransmissionsInterval.Get(model.TotalID).Append(b, retrans, packets)
	p.res.Inflight.Get(model.TotalID).Append(b, inflight)
	// Flows without an RTT sample in the bucket take no part in the total.
	if rttFlows > 0 {
		p.res.AvgRTT.Get(model.TotalID).Append(b, rtt)
	}
}

// Clock returns the clock started by the first segment, or nil if no
// segment was observed.
func (p *SenderPass) Clock() *Clock {
	return p.clock
}

// Tracker returns the connection table of the pass.
func (p *SenderPass) Tracker() *tracker.Tracker {
	return p.tracker
}

// BottleneckPass aggregates the bottleneck side capture into throughput.
type BottleneckPass struct {
	deltaT  float64
	clock   *Clock
	tracker *tracker.Tracker
	res     *model.Results
}

// NewBottleneckPass returns a pass aligned on the boundaries of the sender
// pass. With a nil sender clock, the pass starts its own clock at its first
// segment.
func NewBottleneckPass(sender *Clock, deltaT float64, opts tracker.Options, res *model.Results) *BottleneckPass {
	opts.ThroughputOnly = true
	p := &BottleneckPass{
		deltaT:  deltaT,
		tracker: tracker.New(opts),
		res:     res,
	}
	if sender != nil {
		p.clock = NewClock(sender.T0, sender.DeltaT)
	}
	return p
}

// Observe processes the next segment of the capture.
func (p *BottleneckPass) Observe(ev *model.SegmentEvent) {
	if p.clock == nil {
		p.clock = NewClock(ev.Time, p.deltaT)
	}
	p.clock.Advance(ev.Time, p.close)
	p.tracker.Process(ev)
}

func (p *BottleneckPass) close(b float64) {
	var total float64
	for _, c := range p.tracker.Active() {
		tp := c.Acc.Bits / p.deltaT
		p.res.Throughput.Get(c.Flow).Append(b, tp)
		total += tp
		c.Acc.Reset()
	}
	p.res.Throughput.Get(model.TotalID).Append(b, total)
}

// Tracker returns the connection table of the pass.
func (p *BottleneckPass) Tracker() *tracker.Tracker {
	return p.tracker
}
