package model

import (
	"net/netip"
	"reflect"
	"testing"
)

func TestNewConnectionKey(t *testing.T) {
	a := netip.MustParseAddr("10.0.0.1")
	b := netip.MustParseAddr("10.0.1.1")
	tests := []struct {
		name           string
		src            netip.Addr
		srcPort        uint16
		dst            netip.Addr
		dstPort        uint16
		wantFromClient bool
	}{
		{name: "client-to-server", src: a, srcPort: 40000, dst: b, dstPort: 5201, wantFromClient: true},
		{name: "server-to-client", src: b, srcPort: 5201, dst: a, dstPort: 40000, wantFromClient: false},
	}
	want := ConnectionKey{ClientIP: a, ClientPort: 40000, ServerIP: b, ServerPort: 5201}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fromClient := NewConnectionKey(tt.src, tt.srcPort, tt.dst, tt.dstPort)
			if got != want {
				t.Errorf("NewConnectionKey() = %v, want %v", got, want)
			}
			if fromClient != tt.wantFromClient {
				t.Errorf("NewConnectionKey() fromClient = %v, want %v", fromClient, tt.wantFromClient)
			}
		})
	}
	if s := want.String(); s != "10.0.0.1:40000-10.0.1.1:5201" {
		t.Errorf("String() = %q", s)
	}
	if ip, ok := ClientIP(want.String()); !ok || ip != want.ClientIP {
		t.Errorf("ClientIP() = %v, %v", ip, ok)
	}
	v6, _ := NewConnectionKey(netip.MustParseAddr("fd00::1"), 40000, netip.MustParseAddr("fd00::2"), 80)
	if s := v6.String(); s != "[fd00::1]:40000-[fd00::2]:80" {
		t.Errorf("String() = %q", s)
	}
	if ip, ok := ClientIP(v6.String()); !ok || ip != v6.ClientIP {
		t.Errorf("ClientIP() = %v, %v", ip, ok)
	}
	if _, ok := ClientIP(TotalID); ok {
		t.Error("ClientIP(total) should fail")
	}
}

func TestSeriesAppend(t *testing.T) {
	s := NewSeries(2)
	if !s.Append(1, 10, 20) {
		t.Fatal("first append rejected")
	}
	if s.Append(1, 11, 21) {
		t.Error("duplicate timestamp accepted")
	}
	if s.Append(0.5, 11, 21) {
		t.Error("older timestamp accepted")
	}
	if s.Append(2, 11) {
		t.Error("wrong number of values accepted")
	}
	if !s.Append(2, 12, 22) {
		t.Error("second append rejected")
	}
	if got := s.Times(); !reflect.DeepEqual(got, []float64{1, 2}) {
		t.Errorf("Times() = %v", got)
	}
	if got := s.Column(1); !reflect.DeepEqual(got, []float64{20, 22}) {
		t.Errorf("Column(1) = %v", got)
	}
}

func TestSeriesSetOrder(t *testing.T) {
	ss := NewSeriesSet(1)
	ss.Get("b").Append(1, 1)
	ss.Get(TotalID).Append(1, 1)
	ss.Get("a").Append(1, 1)
	ss.Get("b").Append(2, 1)
	if got := ss.IDs(); !reflect.DeepEqual(got, []string{"b", TotalID, "a"}) {
		t.Errorf("IDs() = %v", got)
	}
	if got := ss.FlowIDs(); !reflect.DeepEqual(got, []string{"b", "a"}) {
		t.Errorf("FlowIDs() = %v", got)
	}
	if got := ss.SortedIDs(); !reflect.DeepEqual(got, []string{"a", "b", TotalID}) {
		t.Errorf("SortedIDs() = %v", got)
	}
	if s, ok := ss.Lookup("b"); !ok || s.Len() != 2 {
		t.Errorf("Lookup(b) = %v, %v", s, ok)
	}
	if _, ok := ss.Lookup("c"); ok {
		t.Error("Lookup(c) should fail")
	}
}

func TestResultsMinTime(t *testing.T) {
	r := NewResults()
	if _, ok := r.MinTime(); ok {
		t.Error("empty results should have no min time")
	}
	r.Throughput.Get("a").Append(3, 1)
	r.BBR.Get("10.0.0.1").Append(2, 1, 2, 3, 4, 5)
	if got, ok := r.MinTime(); !ok || got != 2 {
		t.Errorf("MinTime() = %v, %v", got, ok)
	}
}

func TestBBRSamples(t *testing.T) {
	s := NewSeries(BBRColumns)
	in := []BBRSample{
		{T: 1, Bandwidth: 1e6, MinRTT: 10, PacingGain: 1.25, CwndGain: 2, BDP: 1e4},
		{T: 2, Bandwidth: 2e6, MinRTT: 20, PacingGain: 0.75, CwndGain: 2, BDP: 4e4},
	}
	for _, b := range in {
		if !AppendBBR(s, b) {
			t.Fatalf("AppendBBR(%+v) failed", b)
		}
	}
	if AppendBBR(s, in[1]) {
		t.Error("AppendBBR accepted a duplicate timestamp")
	}
	if got := BBRSamples(s); !reflect.DeepEqual(got, in) {
		t.Errorf("BBRSamples() = %+v", got)
	}
}
