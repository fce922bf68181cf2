package model

// Column layouts of the multi-value series.
const (
	// BBRColumns are bandwidth, min RTT, pacing gain, cwnd gain and BDP.
	BBRColumns = 5
	// CwndColumns are cwnd and ssthresh.
	CwndColumns = 2
	// RetransmissionColumns are retransmitted segments and sent segments.
	RetransmissionColumns = 2
)

// Identifiers of the bbr_total_values series.
const (
	TotalBandwidthID  = "bandwidth"
	TotalWindowGainID = "window_gain"
	TotalPacingGainID = "pacing_gain"
)

// Identifiers of the fairness series.
const (
	FairnessThroughputID  = "Throughput"
	FairnessSendingRateID = "Sending Rate"
)

// Results holds every series produced by the analysis of one run.
type Results struct {
	RTT         *SeriesSet
	AvgRTT      *SeriesSet
	Inflight    *SeriesSet
	SendingRate *SeriesSet
	Throughput  *SeriesSet
	Fairness    *SeriesSet
	// Retransmissions holds the capture time of every retransmitted segment.
	Retransmissions *SeriesSet
	// RetransmissionsInterval holds per bucket retransmissions and packets.
	RetransmissionsInterval *SeriesSet
	BBR                     *SeriesSet
	BBRTotal                *SeriesSet
	Cwnd                    *SeriesSet
	BufferBacklog           *SeriesSet

	Info DataInfo
}

// DataInfo holds scalar facts derived from the series.
type DataInfo struct {
	SyncWindows []SyncWindow
}

// NewResults returns Results with every set allocated.
func NewResults() *Results {
	return &Results{
		RTT:                     NewSeriesSet(1),
		AvgRTT:                  NewSeriesSet(1),
		Inflight:                NewSeriesSet(1),
		SendingRate:             NewSeriesSet(1),
		Throughput:              NewSeriesSet(1),
		Fairness:                NewSeriesSet(1),
		Retransmissions:         NewSeriesSet(0),
		RetransmissionsInterval: NewSeriesSet(RetransmissionColumns),
		BBR:                     NewSeriesSet(BBRColumns),
		BBRTotal:                NewSeriesSet(1),
		Cwnd:                    NewSeriesSet(CwndColumns),
		BufferBacklog:           NewSeriesSet(1),
	}
}

// MinTime returns the earliest timestamp of any series, and false if
// every series is empty.
func (r *Results) MinTime() (float64, bool) {
	var min float64
	found := false
	for _, ss := range r.All() {
		for _, id := range ss.IDs() {
			s, _ := ss.Lookup(id)
			if s.Len() > 0 && (!found || s.Points[0].T < min) {
				min = s.Points[0].T
				found = true
			}
		}
	}
	return min, found
}

// All returns every series set, in a fixed order.
func (r *Results) All() []*SeriesSet {
	return []*SeriesSet{
		r.RTT, r.AvgRTT, r.Inflight, r.SendingRate, r.Throughput, r.Fairness,
		r.Retransmissions, r.RetransmissionsInterval, r.BBR, r.BBRTotal,
		r.Cwnd, r.BufferBacklog,
	}
}
