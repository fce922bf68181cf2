package stats

import (
	"sort"

	"github.com/m-lab/flowstats/bucket"
	"github.com/m-lab/flowstats/model"
)

// FlowSummary gathers the summaries of one flow over all its samples.
// Summaries of series the flow does not have are nil.
type FlowSummary struct {
	Flow        string   `json:"flow"`
	SendingRate *Summary `json:"sending_rate,omitempty"`
	Throughput  *Summary `json:"throughput,omitempty"`
	AvgRTT      *Summary `json:"avg_rtt,omitempty"`
	Inflight    *Summary `json:"inflight,omitempty"`
	// RetransmissionRate is retransmitted over sent segments for the whole
	// flow.
	RetransmissionRate float64 `json:"retransmission_rate"`
}

func summaryOf(ss *model.SeriesSet, id string) *Summary {
	s, ok := ss.Lookup(id)
	if !ok {
		return nil
	}
	sum, ok := Summarize(s.Column(0))
	if !ok {
		return nil
	}
	return &sum
}

// Flows summarizes every flow seen in the captures, in sorted order. The
// total pseudo-flow is not included.
func Flows(res *model.Results) []FlowSummary {
	seen := map[string]bool{}
	var ids []string
	for _, ss := range []*model.SeriesSet{res.SendingRate, res.Throughput} {
		for _, id := range ss.SortedIDs() {
			if id != model.TotalID && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	out := make([]FlowSummary, 0, len(ids))
	for _, id := range ids {
		fs := FlowSummary{
			Flow:        id,
			SendingRate: summaryOf(res.SendingRate, id),
			Throughput:  summaryOf(res.Throughput, id),
			AvgRTT:      summaryOf(res.AvgRTT, id),
			Inflight:    summaryOf(res.Inflight, id),
		}
		if s, ok := res.RetransmissionsInterval.Lookup(id); ok {
			var retrans, packets float64
			for _, p := range s.Points {
				retrans += p.V[0]
				packets += p.V[1]
			}
			fs.RetransmissionRate = bucket.RetransmissionRate(retrans, packets)
		}
		out = append(out, fs)
	}
	return out
}
