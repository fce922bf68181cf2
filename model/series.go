package model

import "sort"

// TotalID is the identifier of the pseudo-flow summing all flows.
const TotalID = "total"

// Point is one sample of a Series. V holds one value per column.
type Point struct {
	T float64
	V []float64
}

// Series is a time ordered sequence of points with a fixed number of
// value columns. Timestamps are strictly increasing.
type Series struct {
	Columns int
	Points  []Point
}

// NewSeries returns an empty series with the given number of value columns.
func NewSeries(columns int) *Series {
	return &Series{Columns: columns}
}

// Append adds a point at t. Points that would break the time ordering or
// that carry the wrong number of values are rejected and Append returns false.
func (s *Series) Append(t float64, values ...float64) bool {
	if len(values) != s.Columns {
		return false
	}
	if n := len(s.Points); n > 0 && t <= s.Points[n-1].T {
		return false
	}
	s.Points = append(s.Points, Point{T: t, V: values})
	return true
}

// Len returns the number of points.
func (s *Series) Len() int {
	return len(s.Points)
}

// Times returns the timestamps of all points.
func (s *Series) Times() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.T
	}
	return out
}

// Column returns the values of column c of all points.
func (s *Series) Column(c int) []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.V[c]
	}
	return out
}

// SeriesSet maps flow identifiers to their series, remembering the order
// in which flows were added.
type SeriesSet struct {
	Columns int
	order   []string
	series  map[string]*Series
}

// NewSeriesSet returns an empty set whose series have the given number of
// value columns.
func NewSeriesSet(columns int) *SeriesSet {
	return &SeriesSet{
		Columns: columns,
		series:  make(map[string]*Series),
	}
}

// Get returns the series of id, creating it if needed.
func (ss *SeriesSet) Get(id string) *Series {
	if s, ok := ss.series[id]; ok {
		return s
	}
	s := NewSeries(ss.Columns)
	ss.series[id] = s
	ss.order = append(ss.order, id)
	return s
}

// Lookup returns the series of id, if present.
func (ss *SeriesSet) Lookup(id string) (*Series, bool) {
	s, ok := ss.series[id]
	return s, ok
}

// IDs returns the flow identifiers in insertion order.
func (ss *SeriesSet) IDs() []string {
	out := make([]string, len(ss.order))
	copy(out, ss.order)
	return out
}

// FlowIDs returns the identifiers of real flows, i.e. without TotalID.
func (ss *SeriesSet) FlowIDs() []string {
	out := make([]string, 0, len(ss.order))
	for _, id := range ss.order {
		if id != TotalID {
			out = append(out, id)
		}
	}
	return out
}

// Len returns the number of series in the set.
func (ss *SeriesSet) Len() int {
	return len(ss.order)
}

// SortedIDs returns the identifiers sorted, with TotalID last.
func (ss *SeriesSet) SortedIDs() []string {
	out := ss.FlowIDs()
	sort.Strings(out)
	if _, ok := ss.series[TotalID]; ok {
		out = append(out, TotalID)
	}
	return out
}
