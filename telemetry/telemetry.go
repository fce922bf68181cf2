// Package telemetry parses the side channel logs written next to the
// captures: per flow congestion control logs and buffer backlog logs.
//
// Every line is parsed on its own. Empty or malformed numeric fields read
// as 0; lines whose timestamp cannot be parsed are skipped and counted.
package telemetry

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/apex/log"

	"github.com/m-lab/flowstats/compressx"
	"github.com/m-lab/flowstats/layout"
	"github.com/m-lab/flowstats/logging"
	"github.com/m-lab/flowstats/metrics"
	"github.com/m-lab/flowstats/model"
)

// maxLine bounds the length of one log line.
const maxLine = 1 << 20

// Flow is the parsed congestion control log of one flow.
type Flow struct {
	// IP identifies the flow; it is taken from the file name.
	IP   string
	BBR  []model.BBRSample
	Cwnd []model.CwndSample
	// Skipped counts unparseable lines.
	Skipped int
}

// Backlog is the parsed buffer log of one shaped interface.
type Backlog struct {
	Interface string
	Samples   []model.BacklogSample
	Skipped   int
}

var bandwidthUnits = []struct {
	suffix string
	scale  float64
}{
	// Longer suffixes first: every unit ends in "bps".
	{"Gbps", 1e9},
	{"Mbps", 1e6},
	{"Kbps", 1e3},
	{"bps", 1},
}

// ParseBandwidth parses a value such as "12.5Mbps" into bits per second.
// Unknown units and malformed values yield 0.
func ParseBandwidth(s string) float64 {
	s = strings.TrimSpace(s)
	for _, u := range bandwidthUnits {
		if strings.HasSuffix(s, u.suffix) {
			return number(strings.TrimSuffix(s, u.suffix)) * u.scale
		}
	}
	return 0
}

// number parses s, returning 0 when it is empty or malformed.
func number(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

var bbrLabels = strings.NewReplacer("bw:", "", "mrtt:", "", "pacing_gain:", "", "cwnd_gain:", "")

// ParseBBRFields parses "bw:<v><unit>,mrtt:<ms>,pacing_gain:<g>,cwnd_gain:<g>"
// into a sample taken at t. Labels are optional. With fewer than four
// fields both gains are 0.
func ParseBBRFields(t float64, field string) model.BBRSample {
	parts := strings.Split(bbrLabels.Replace(field), ",")
	s := model.BBRSample{T: t, Bandwidth: ParseBandwidth(parts[0])}
	if len(parts) > 1 {
		s.MinRTT = number(parts[1])
	}
	if len(parts) >= 4 {
		s.PacingGain = number(parts[2])
		s.CwndGain = number(parts[3])
	}
	s.BDP = s.Bandwidth * s.MinRTT / 1000
	return s
}

// lines calls fn with every non-empty line of r and its line number.
func lines(r io.Reader, fn func(n int, line string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fn(n, line)
	}
	return sc.Err()
}

func skipLine(kind string, n int, line string, err error) {
	metrics.TelemetryLinesSkipped.WithLabelValues(kind).Inc()
	logging.Logger.WithFields(log.Fields{
		"kind": kind,
		"line": n,
		"text": line,
	}).WithError(err).Debug("skipping telemetry line")
}

// ParseFlowLog parses the lines "timestamp;cwnd;ssthresh;bbr_fields" of r.
func ParseFlowLog(r io.Reader) (*Flow, error) {
	f := &Flow{}
	err := lines(r, func(n int, line string) {
		fields := strings.Split(line, ";")
		ts, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			f.Skipped++
			skipLine("flow", n, line, err)
			return
		}
		c := model.CwndSample{T: ts}
		if len(fields) > 1 {
			c.Cwnd = number(fields[1])
		}
		if len(fields) > 2 {
			c.SSThresh = number(fields[2])
		}
		f.Cwnd = append(f.Cwnd, c)
		if len(fields) > 3 && strings.TrimSpace(fields[3]) != "" {
			f.BBR = append(f.BBR, ParseBBRFields(ts, fields[3]))
		}
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// ParseFlowFile parses the flow log at path, which may be compressed. The
// flow is identified by the first dotted quad of the file name.
func ParseFlowFile(path string) (*Flow, error) {
	ip, ok := layout.IPFromFilename(path)
	if !ok {
		return nil, fmt.Errorf("no IP address in flow log name %q", path)
	}
	rc, err := compressx.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	f, err := ParseFlowLog(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	f.IP = ip
	return f, nil
}

var errMissingSize = errors.New("missing size field")

var sizeUnits = strings.NewReplacer("b", "", "K", "", "M", "", "G", "")

// ParseSize parses a queue size such as "1.5K" or "300b" into bits.
func ParseSize(s string) float64 {
	s = strings.TrimSpace(s)
	scale := 1.0
	switch {
	case strings.Contains(s, "K"):
		scale = 1e3
	case strings.Contains(s, "M"):
		scale = 1e6
	case strings.Contains(s, "G"):
		scale = 1e9
	}
	return number(sizeUnits.Replace(s)) * scale * 8
}

// ParseBacklog parses the lines "timestamp;size" of r.
func ParseBacklog(r io.Reader) (*Backlog, error) {
	b := &Backlog{}
	err := lines(r, func(n int, line string) {
		fields := strings.Split(line, ";")
		ts, err := strconv.ParseFloat(fields[0], 64)
		if err == nil && len(fields) < 2 {
			err = errMissingSize
		}
		if err != nil {
			b.Skipped++
			skipLine("buffer", n, line, err)
			return
		}
		b.Samples = append(b.Samples, model.BacklogSample{T: ts, Bits: ParseSize(fields[1])})
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// ParseBacklogFile parses the buffer log at path, which may be compressed.
// The interface is named after the file.
func ParseBacklogFile(path string) (*Backlog, error) {
	intf, ok := layout.InterfaceFromFilename(path)
	if !ok {
		return nil, fmt.Errorf("no interface in buffer log name %q", path)
	}
	rc, err := compressx.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := ParseBacklog(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	b.Interface = intf
	return b, nil
}
