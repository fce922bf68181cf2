package model

// BBRSample is one BBR telemetry row of a flow.
type BBRSample struct {
	T float64
	// Bandwidth is the bottleneck bandwidth estimate in bits per second.
	Bandwidth float64
	// MinRTT is the RTprop estimate in milliseconds.
	MinRTT     float64
	PacingGain float64
	CwndGain   float64
	// BDP is Bandwidth * MinRTT / 1000, in bits.
	BDP float64
}

// CwndSample is one congestion window row of a flow.
type CwndSample struct {
	T        float64
	Cwnd     float64
	SSThresh float64
}

// BacklogSample is one buffer occupancy row of a shaped interface.
type BacklogSample struct {
	T float64
	// Bits is the queued amount of data.
	Bits float64
}

// FairnessSample is the Jain index of all flows at one instant.
type FairnessSample struct {
	T    float64
	Jain float64
}

// SyncWindow is a period during which all started flows reported a window
// gain summing to the number of started flows.
type SyncWindow struct {
	Start float64
	// Duration is in milliseconds. It is 0 while Open.
	Duration float64
	// Open is set when the telemetry ended inside the window.
	Open bool
}

// AppendBBR appends b to a series of BBRColumns columns.
func AppendBBR(s *Series, b BBRSample) bool {
	return s.Append(b.T, b.Bandwidth, b.MinRTT, b.PacingGain, b.CwndGain, b.BDP)
}

// BBRSamples returns the samples stored in a series of BBRColumns columns.
func BBRSamples(s *Series) []BBRSample {
	out := make([]BBRSample, len(s.Points))
	for i, p := range s.Points {
		out[i] = BBRSample{T: p.T, Bandwidth: p.V[0], MinRTT: p.V[1], PacingGain: p.V[2], CwndGain: p.V[3], BDP: p.V[4]}
	}
	return out
}
