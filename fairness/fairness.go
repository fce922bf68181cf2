// Package fairness computes Jain's fairness index across flows.
package fairness

import (
	"math"

	"github.com/m-lab/flowstats/model"
)

// Jain returns (sum x)^2 / (n * sum x^2). It is 1 for no shares and for
// shares that are all 0.
func Jain(shares ...float64) float64 {
	var sum, squares float64
	for _, x := range shares {
		sum += x
		squares += x * x
	}
	if len(shares) == 0 || squares == 0 {
		return 1
	}
	return sum * sum / (float64(len(shares)) * squares)
}

// Compute returns the Jain index of the flows of ss at every distinct
// timestamp found in any of their series, in increasing order. Only flows
// with a sample at exactly that timestamp take part. The total pseudo-flow
// is ignored, and only the first value column is used.
func Compute(ss *model.SeriesSet) []model.FairnessSample {
	var series []*model.Series
	for _, id := range ss.FlowIDs() {
		s, _ := ss.Lookup(id)
		series = append(series, s)
	}
	cursor := make([]int, len(series))
	var out []model.FairnessSample
	shares := make([]float64, 0, len(series))
	for {
		next := math.Inf(1)
		for i, s := range series {
			if cursor[i] < s.Len() && s.Points[cursor[i]].T < next {
				next = s.Points[cursor[i]].T
			}
		}
		if math.IsInf(next, 1) {
			return out
		}
		shares = shares[:0]
		for i, s := range series {
			if cursor[i] < s.Len() && s.Points[cursor[i]].T == next {
				shares = append(shares, s.Points[cursor[i]].V[0])
				cursor[i]++
			}
		}
		out = append(out, model.FairnessSample{T: next, Jain: Jain(shares...)})
	}
}

// AppendTo adds samples to s.
func AppendTo(s *model.Series, samples []model.FairnessSample) {
	for _, f := range samples {
		s.Append(f.T, f.Jain)
	}
}
