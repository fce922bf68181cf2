package results

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/m-lab/flowstats/compressx"
	"github.com/m-lab/flowstats/model"
	"github.com/m-lab/flowstats/stats"
)

// ErrMalformedInfo is returned when an info file lacks the synchronization
// windows.
var ErrMalformedInfo = errors.New("malformed info file")

func floatList(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatFloat(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// WriteInfo writes the synchronization windows of res followed by the
// summary tables of every retention window.
func WriteInfo(w io.Writer, res *model.Results) error {
	bw := bufio.NewWriter(w)
	var starts, durations []float64
	for _, sw := range res.Info.SyncWindows {
		starts = append(starts, sw.Start)
		if !sw.Open {
			durations = append(durations, sw.Duration)
		}
	}
	fmt.Fprintf(bw, "Synchronized at:\n %s\n", floatList(starts))
	fmt.Fprintf(bw, "with durations:\n %s\n", floatList(durations))
	avg := 0.0
	if len(durations) > 0 {
		for _, d := range durations {
			avg += d
		}
		avg /= float64(len(durations))
	}
	fmt.Fprintf(bw, "Avg:\n %s\n", formatFloat(avg))

	for _, window := range stats.Windows {
		fmt.Fprintf(bw, "\n%s\n\nValues used: last %g%%\n", strings.Repeat("-", 58), window*100)
		for _, table := range stats.Tables(res, window) {
			fmt.Fprintf(bw, "\n%s:\n", table.Metric)
			fmt.Fprintf(bw, "%-13s  %13s  %13s  %13s  %13s  %13s\n",
				"Connection", "Median", "Mean", "Std Dev", "Min", "Max")
			for _, row := range table.Rows {
				fmt.Fprintf(bw, "%-13s  %13.3f  %13.3f  %13.3f  %13.3f  %13.3f\n",
					row.Flow, row.Median, row.Mean, row.StdDev, row.Min, row.Max)
			}
		}
	}
	return bw.Flush()
}

// WriteInfoFile writes the info file of res to path.
func WriteInfoFile(path string, res *model.Results) error {
	fp, err := compressx.Create(path)
	if err != nil {
		return err
	}
	if err := WriteInfo(fp, res); err != nil {
		fp.Close()
		return err
	}
	return fp.Close()
}

func parseFloatList(line string) ([]float64, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return nil, fmt.Errorf("%w: %q is not a list", ErrMalformedInfo, line)
	}
	line = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
	if line == "" {
		return nil, nil
	}
	parts := strings.Split(line, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedInfo, err)
		}
		out[i] = v
	}
	return out, nil
}

// ReadInfo reads back the synchronization windows written by WriteInfo. A
// start without a duration is the window still open at the end.
func ReadInfo(r io.Reader) ([]model.SyncWindow, error) {
	sc := bufio.NewScanner(r)
	var lines []string
	for len(lines) < 4 && sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < 4 || lines[0] != "Synchronized at:" || lines[2] != "with durations:" {
		return nil, fmt.Errorf("%w: missing synchronization header", ErrMalformedInfo)
	}
	starts, err := parseFloatList(lines[1])
	if err != nil {
		return nil, err
	}
	durations, err := parseFloatList(lines[3])
	if err != nil {
		return nil, err
	}
	if len(starts) != len(durations) && len(starts) != len(durations)+1 {
		return nil, fmt.Errorf("%w: %d starts for %d durations", ErrMalformedInfo, len(starts), len(durations))
	}
	var windows []model.SyncWindow
	for i, start := range starts {
		if i < len(durations) {
			windows = append(windows, model.SyncWindow{Start: start, Duration: durations[i]})
		} else {
			windows = append(windows, model.SyncWindow{Start: start, Open: true})
		}
	}
	return windows, nil
}

// ReadInfoFile reads the synchronization windows of the info file at path.
func ReadInfoFile(path string) ([]model.SyncWindow, error) {
	rc, err := compressx.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	windows, err := ReadInfo(rc)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return windows, nil
}
