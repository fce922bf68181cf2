package syncdetect

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/m-lab/flowstats/model"
)

func gains(ts []float64, window []float64) []model.BBRSample {
	out := make([]model.BBRSample, len(ts))
	for i := range ts {
		out[i] = model.BBRSample{T: ts[i], Bandwidth: 1e6, PacingGain: 1, CwndGain: window[i]}
	}
	return out
}

var twoFlows = map[string][]model.BBRSample{
	"10.0.0.1": gains([]float64{1, 3, 5}, []float64{1, 1, 2}),
	"10.0.0.2": gains([]float64{2, 4, 6}, []float64{1, 1.25, 1}),
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		tolerance float64
		want      []model.SyncWindow
	}{
		{
			name: "exact",
			want: []model.SyncWindow{{Start: 1, Duration: 3000}},
		},
		{
			name:      "tolerance",
			tolerance: 0.3,
			want:      []model.SyncWindow{{Start: 1, Duration: 4000}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Detect(twoFlows, Options{Tolerance: tt.tolerance})
			if diff := cmp.Diff(tt.want, r.Windows); diff != "" {
				t.Errorf("windows mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectTotals(t *testing.T) {
	r := Detect(twoFlows, Options{})
	if diff := cmp.Diff([]float64{1, 2, 2, 2.25, 3.25, 1}, r.WindowGain.Column(0)); diff != "" {
		t.Errorf("window gain mismatch (-want +got):\n%s", diff)
	}
	// The first flow stops contributing once its samples run out.
	if diff := cmp.Diff([]float64{1e6, 2e6, 2e6, 2e6, 2e6, 1e6}, r.Bandwidth.Column(0)); diff != "" {
		t.Errorf("bandwidth mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 2, 3, 4, 5, 6}, r.PacingGain.Times()); diff != "" {
		t.Errorf("times mismatch (-want +got):\n%s", diff)
	}

	ss := model.NewSeriesSet(1)
	r.AppendTo(ss)
	want := []string{model.TotalBandwidthID, model.TotalWindowGainID, model.TotalPacingGainID}
	if diff := cmp.Diff(want, ss.IDs()); diff != "" {
		t.Errorf("ids mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectOpenAtEnd(t *testing.T) {
	r := Detect(map[string][]model.BBRSample{
		"10.0.0.1": gains([]float64{1, 2}, []float64{1, 1}),
	}, Options{})
	want := []model.SyncWindow{{Start: 1, Open: true}}
	if diff := cmp.Diff(want, r.Windows); diff != "" {
		t.Errorf("windows mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectTies(t *testing.T) {
	r := Detect(map[string][]model.BBRSample{
		"b": gains([]float64{1}, []float64{0}),
		"a": gains([]float64{1}, []float64{1}),
	}, Options{})
	// "a" is taken first and opens a window that "b" closes immediately.
	want := []model.SyncWindow{{Start: 1, Duration: 0}}
	if diff := cmp.Diff(want, r.Windows); diff != "" {
		t.Errorf("windows mismatch (-want +got):\n%s", diff)
	}
	// "a" has no sample left when "b" is taken, so only "b" counts in the
	// totals kept for the shared timestamp.
	if r.WindowGain.Len() != 1 || r.WindowGain.Points[0].V[0] != 0 {
		t.Errorf("window gain = %+v, want one point of 0", r.WindowGain.Points)
	}
	if r.Bandwidth.Len() != 1 || r.Bandwidth.Points[0].V[0] != 1e6 {
		t.Errorf("bandwidth = %+v, want one point of 1e6", r.Bandwidth.Points)
	}
}

func TestDetectEmpty(t *testing.T) {
	r := Detect(nil, Options{})
	if len(r.Windows) != 0 || r.Bandwidth.Len() != 0 {
		t.Errorf("Detect(nil) = %+v", r)
	}
}
