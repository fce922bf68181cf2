// Package stats summarizes metric series over retention windows.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/m-lab/flowstats/model"
)

// Windows are the retention windows reported in the info file: all the
// samples, then the last 30% of them.
var Windows = []float64{1, 0.3}

// Summary describes a set of samples.
type Summary struct {
	N      int     `json:"n"`
	Median float64 `json:"median"`
	Mean   float64 `json:"mean"`
	// StdDev is the population standard deviation.
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Tail returns the last int(len(values)*fraction) values.
func Tail(values []float64, fraction float64) []float64 {
	n := int(float64(len(values)) * fraction)
	if n > len(values) {
		n = len(values)
	}
	if n < 0 {
		n = 0
	}
	return values[len(values)-n:]
}

// Summarize returns the summary of values, and false if values is empty.
func Summarize(values []float64) (Summary, bool) {
	if len(values) == 0 {
		return Summary{}, false
	}
	s := Summary{
		N:   len(values),
		Min: floats.Min(values),
		Max: floats.Max(values),
	}
	s.Mean, s.StdDev = stat.PopMeanStdDev(values, nil)
	s.Median = median(values)
	return s, true
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Metric selects the values of one summarized quantity.
type Metric struct {
	Name   string
	Set    func(*model.Results) *model.SeriesSet
	Column int
}

// Metrics are the quantities reported in the info file.
var Metrics = []Metric{
	{Name: "Sending Rate", Set: func(r *model.Results) *model.SeriesSet { return r.SendingRate }},
	{Name: "Throughput", Set: func(r *model.Results) *model.SeriesSet { return r.Throughput }},
	{Name: "Fairness", Set: func(r *model.Results) *model.SeriesSet { return r.Fairness }},
	{Name: "Avg Rtt", Set: func(r *model.Results) *model.SeriesSet { return r.AvgRTT }},
	{Name: "Inflight", Set: func(r *model.Results) *model.SeriesSet { return r.Inflight }},
	{Name: "BDP", Set: func(r *model.Results) *model.SeriesSet { return r.BBR }, Column: 4},
	{Name: "Buffer Backlog", Set: func(r *model.Results) *model.SeriesSet { return r.BufferBacklog }},
}

// Row is the summary of one flow.
type Row struct {
	Flow string
	Summary
}

// Table is the summary of one metric for every flow.
type Table struct {
	Metric string
	Rows   []Row
}

// Tables summarizes every metric over the given retention window. Flows
// whose window holds no sample are left out.
func Tables(res *model.Results, fraction float64) []Table {
	out := make([]Table, 0, len(Metrics))
	for _, m := range Metrics {
		out = append(out, Table{Metric: m.Name, Rows: Rows(m.Set(res), m.Column, fraction)})
	}
	return out
}

// Rows summarizes one column of every series of ss.
func Rows(ss *model.SeriesSet, column int, fraction float64) []Row {
	var rows []Row
	for _, id := range ss.SortedIDs() {
		s, _ := ss.Lookup(id)
		if column >= s.Columns {
			continue
		}
		sum, ok := Summarize(Tail(s.Column(column), fraction))
		if !ok {
			continue
		}
		rows = append(rows, Row{Flow: id, Summary: sum})
	}
	return rows
}
