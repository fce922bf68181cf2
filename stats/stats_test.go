package stats

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/m-lab/flowstats/model"
)

func TestTail(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	tests := []struct {
		fraction float64
		want     []float64
	}{
		{1, values},
		{0.3, []float64{8, 9, 10}},
		{0.05, []float64{}},
	}
	for _, tt := range tests {
		if got := Tail(values, tt.fraction); !cmp.Equal(got, tt.want, cmpopts.EquateEmpty()) {
			t.Errorf("Tail(%v) = %v, want %v", tt.fraction, got, tt.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	got, ok := Summarize([]float64{4, 1, 3, 2})
	if !ok {
		t.Fatal("Summarize failed")
	}
	want := Summary{N: 4, Median: 2.5, Mean: 2.5, StdDev: math.Sqrt(1.25), Min: 1, Max: 4}
	if diff := cmp.Diff(want, got, cmpopts.EquateApprox(0, 1e-12)); diff != "" {
		t.Errorf("Summarize() mismatch (-want +got):\n%s", diff)
	}
	if got, _ := Summarize([]float64{5, 1, 3}); got.Median != 3 {
		t.Errorf("odd median = %v, want 3", got.Median)
	}
	if _, ok := Summarize(nil); ok {
		t.Error("Summarize(nil) should fail")
	}
}

func TestTables(t *testing.T) {
	res := model.NewResults()
	for i := 1; i <= 10; i++ {
		res.Throughput.Get("b").Append(float64(i), float64(i))
		res.Throughput.Get(model.TotalID).Append(float64(i), float64(2*i))
		res.Throughput.Get("a").Append(float64(i), 1)
	}
	res.BBR.Get("10.0.0.1").Append(1, 1e6, 10, 1, 2, 1e4)
	res.AvgRTT.Get("a").Append(1, 10)

	tables := Tables(res, 0.3)
	if len(tables) != len(Metrics) {
		t.Fatalf("got %d tables, want %d", len(tables), len(Metrics))
	}
	byName := map[string]Table{}
	for _, tb := range tables {
		byName[tb.Metric] = tb
	}
	tp := byName["Throughput"]
	var flows []string
	for _, r := range tp.Rows {
		flows = append(flows, r.Flow)
	}
	if diff := cmp.Diff([]string{"a", "b", model.TotalID}, flows); diff != "" {
		t.Errorf("flows mismatch (-want +got):\n%s", diff)
	}
	if tp.Rows[1].Mean != 9 || tp.Rows[1].Min != 8 || tp.Rows[1].N != 3 {
		t.Errorf("row b = %+v", tp.Rows[1])
	}
	// A single sample is too short for the 30% window.
	if len(byName["Avg Rtt"].Rows) != 0 || len(byName["BDP"].Rows) != 0 {
		t.Errorf("short series were summarized: %+v %+v", byName["Avg Rtt"], byName["BDP"])
	}
	bdp := Tables(res, 1)[5]
	if bdp.Metric != "BDP" || len(bdp.Rows) != 1 || bdp.Rows[0].Max != 1e4 {
		t.Errorf("BDP table = %+v", bdp)
	}
}

func TestFlows(t *testing.T) {
	res := model.NewResults()
	res.SendingRate.Get("b").Append(1, 10)
	res.SendingRate.Get("b").Append(2, 30)
	res.SendingRate.Get(model.TotalID).Append(1, 10)
	res.Throughput.Get("a").Append(1, 5)
	res.RetransmissionsInterval.Get("b").Append(1, 1, 10)
	res.RetransmissionsInterval.Get("b").Append(2, 1, 30)

	got := Flows(res)
	if len(got) != 2 || got[0].Flow != "a" || got[1].Flow != "b" {
		t.Fatalf("Flows() = %+v", got)
	}
	a, b := got[0], got[1]
	if a.SendingRate != nil || a.Throughput == nil || a.Throughput.Mean != 5 || a.RetransmissionRate != 0 {
		t.Errorf("flow a = %+v", a)
	}
	if b.SendingRate == nil || b.SendingRate.Mean != 20 || b.AvgRTT != nil {
		t.Errorf("flow b = %+v", b)
	}
	if b.RetransmissionRate != 0.05 {
		t.Errorf("RetransmissionRate = %v, want 0.05", b.RetransmissionRate)
	}
}
