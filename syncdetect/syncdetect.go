// Package syncdetect merges the BBR telemetry of all flows into total
// series and finds the windows during which the flows were synchronized.
//
// Flows are considered synchronized while the sum of their window gains
// equals the number of flows that have started reporting, i.e. while every
// started flow reports a window gain of 1.
package syncdetect

import (
	"math"
	"sort"

	"github.com/m-lab/flowstats/model"
)

// Options configure Detect.
type Options struct {
	// Tolerance is the absolute difference allowed between the window gain
	// sum and the number of started flows. Zero requires exact equality.
	Tolerance float64
}

// Result holds the total series and the synchronization windows.
type Result struct {
	Bandwidth  *model.Series
	WindowGain *model.Series
	PacingGain *model.Series
	Windows    []model.SyncWindow
}

// AppendTo stores the total series of r into the bbr total set.
func (r *Result) AppendTo(ss *model.SeriesSet) {
	totals := []struct {
		id string
		s  *model.Series
	}{
		{model.TotalBandwidthID, r.Bandwidth},
		{model.TotalWindowGainID, r.WindowGain},
		{model.TotalPacingGainID, r.PacingGain},
	}
	for _, total := range totals {
		dst := ss.Get(total.id)
		for _, p := range total.s.Points {
			dst.Append(p.T, p.V...)
		}
	}
}

type flowState struct {
	samples   []model.BBRSample
	next      int
	bandwidth float64
	window    float64
	pacing    float64
}

// Detect walks the samples of all flows in timestamp order, always taking
// the earliest pending sample next; ties go to the smallest flow id. The
// samples of each flow must be in time order.
func Detect(flows map[string][]model.BBRSample, opts Options) *Result {
	ids := make([]string, 0, len(flows))
	for id := range flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	states := make([]*flowState, len(ids))
	for i, id := range ids {
		states[i] = &flowState{samples: flows[id]}
	}

	r := &Result{
		Bandwidth:  model.NewSeries(1),
		WindowGain: model.NewSeries(1),
		PacingGain: model.NewSeries(1),
	}
	open := false
	var start float64
	for {
		var cur *flowState
		for _, st := range states {
			if st.next >= len(st.samples) {
				// Flows that ran out of samples stop contributing.
				st.bandwidth, st.window, st.pacing = 0, 0, 0
				continue
			}
			if cur == nil || st.samples[st.next].T < cur.samples[cur.next].T {
				cur = st
			}
		}
		if cur == nil {
			break
		}
		s := cur.samples[cur.next]
		cur.next++
		cur.bandwidth, cur.window, cur.pacing = s.Bandwidth, s.CwndGain, s.PacingGain

		var bw, window, pacing float64
		started := 0
		for _, st := range states {
			bw += st.bandwidth
			window += st.window
			pacing += st.pacing
			if st.next > 0 {
				started++
			}
		}
		set(r.Bandwidth, s.T, bw)
		set(r.WindowGain, s.T, window)
		set(r.PacingGain, s.T, pacing)

		synced := math.Abs(window-float64(started)) <= opts.Tolerance
		switch {
		case synced && !open:
			open, start = true, s.T
		case !synced && open:
			open = false
			r.Windows = append(r.Windows, model.SyncWindow{Start: start, Duration: (s.T - start) * 1000})
		}
	}
	if open {
		r.Windows = append(r.Windows, model.SyncWindow{Start: start, Open: true})
	}
	return r
}

// set appends v at t, replacing the last point when it has the same time.
// Samples of different flows may share a timestamp; the total after the
// last of them is kept.
func set(s *model.Series, t, v float64) {
	if n := s.Len(); n > 0 && s.Points[n-1].T == t {
		s.Points[n-1].V[0] = v
		return
	}
	s.Append(t, v)
}
