// Package results stores the series of an analysed run: one CSV file per
// metric kind, a human readable info file and a compressed JSONL archive.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/m-lab/go/warnonerror"

	"github.com/m-lab/flowstats/compressx"
	"github.com/m-lab/flowstats/layout"
	"github.com/m-lab/flowstats/model"
)

// ErrMalformedCSV is returned when a CSV file does not follow the layout
// written by WriteSeriesSet.
var ErrMalformedCSV = errors.New("malformed CSV file")

// file binds a CSV file name to a series set of Results.
type file struct {
	name string
	set  **model.SeriesSet
}

func files(r *model.Results) []file {
	return []file{
		{"rtt.csv", &r.RTT},
		{"throughput.csv", &r.Throughput},
		{"fairness.csv", &r.Fairness},
		{"inflight.csv", &r.Inflight},
		{"avg_rtt.csv", &r.AvgRTT},
		{"sending_rate.csv", &r.SendingRate},
		{"bbr_values.csv", &r.BBR},
		{"bbr_total_values.csv", &r.BBRTotal},
		{"cwnd_values.csv", &r.Cwnd},
		{"retransmissions.csv", &r.Retransmissions},
		{"retransmissions_interval.csv", &r.RetransmissionsInterval},
		{"buffer_backlog.csv", &r.BufferBacklog},
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteSeriesSet writes ss to w. The header names every flow once per
// column, time included, and every field is terminated by ';'. Row i holds
// the i-th point of every flow, with blank fields for flows that have
// fewer points. Flows are sorted, with the total last.
func WriteSeriesSet(w io.Writer, ss *model.SeriesSet) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	ids := ss.SortedIDs()
	width := ss.Columns + 1
	series := make([]*model.Series, len(ids))
	rows := 0
	header := make([]string, 0, len(ids)*width+1)
	for i, id := range ids {
		series[i], _ = ss.Lookup(id)
		if n := series[i].Len(); n > rows {
			rows = n
		}
		for c := 0; c < width; c++ {
			header = append(header, id)
		}
	}
	// The trailing empty field terminates the last field with ';'.
	if err := cw.Write(append(header, "")); err != nil {
		return err
	}
	record := make([]string, len(header)+1)
	for r := 0; r < rows; r++ {
		for i, s := range series {
			base := i * width
			if r >= s.Len() {
				for c := 0; c < width; c++ {
					record[base+c] = ""
				}
				continue
			}
			p := s.Points[r]
			record[base] = formatFloat(p.T)
			for c, v := range p.V {
				record[base+1+c] = formatFloat(v)
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSeriesSet reads a series set with the given number of value columns
// written by WriteSeriesSet.
func ReadSeriesSet(r io.Reader, columns int) (*model.SeriesSet, error) {
	ss := model.NewSeriesSet(columns)
	cr := csv.NewReader(r)
	cr.Comma = ';'
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true
	header, err := cr.Read()
	if err == io.EOF {
		return ss, nil
	}
	if err != nil {
		return nil, err
	}
	width := columns + 1
	ids, err := parseHeader(header, width)
	if err != nil {
		return nil, err
	}
	values := make([]float64, columns)
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			return ss, nil
		}
		if err != nil {
			return nil, err
		}
		for i, id := range ids {
			base := i * width
			if base >= len(record) || record[base] == "" {
				continue
			}
			if base+width > len(record) {
				return nil, fmt.Errorf("%w: line %d is too short", ErrMalformedCSV, line)
			}
			t, err := strconv.ParseFloat(record[base], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
			}
			for c := range values {
				if values[c], err = strconv.ParseFloat(record[base+1+c], 64); err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
				}
			}
			if !ss.Get(id).Append(t, append([]float64(nil), values...)...) {
				return nil, fmt.Errorf("%w: line %d: %s is not ordered by time", ErrMalformedCSV, line, id)
			}
		}
	}
}

// parseHeader returns the flow ids of a header, checking that each id is
// repeated width times.
func parseHeader(header []string, width int) ([]string, error) {
	if n := len(header); n > 0 && header[n-1] == "" {
		header = header[:n-1]
	}
	if len(header)%width != 0 {
		return nil, fmt.Errorf("%w: %d header fields for groups of %d", ErrMalformedCSV, len(header), width)
	}
	var ids []string
	for i := 0; i < len(header); i += width {
		for c := 1; c < width; c++ {
			if header[i+c] != header[i] {
				return nil, fmt.Errorf("%w: header mixes %q and %q", ErrMalformedCSV, header[i], header[i+c])
			}
		}
		ids = append(ids, header[i])
	}
	return ids, nil
}

// WriteCSV writes every series set of res, and the info file, into the
// CSV directory of the run directory dir.
func WriteCSV(dir string, res *model.Results, method compressx.Method) error {
	out := filepath.Join(dir, layout.CSVDir)
	if err := os.MkdirAll(out, 0755); err != nil {
		return err
	}
	for _, f := range files(res) {
		if err := writeFile(filepath.Join(out, f.name+method.Extension()), *f.set); err != nil {
			return err
		}
	}
	// The info file is written last: its presence marks a complete output.
	return WriteInfoFile(filepath.Join(out, layout.InfoFile), res)
}

func writeFile(path string, ss *model.SeriesSet) error {
	fp, err := compressx.Create(path)
	if err != nil {
		return err
	}
	if err := WriteSeriesSet(fp, ss); err != nil {
		warnonerror.Close(fp, "could not close "+path)
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return fp.Close()
}

// ReadCSV loads the series and the synchronization windows written by
// WriteCSV for the run directory dir. Each file may carry any compression
// extension.
func ReadCSV(dir string) (*model.Results, error) {
	res := model.NewResults()
	in := filepath.Join(dir, layout.CSVDir)
	for _, f := range files(res) {
		path, ok := compressx.Find(filepath.Join(in, f.name))
		if !ok {
			return nil, fmt.Errorf("%s not found in %s: %w", f.name, in, os.ErrNotExist)
		}
		ss, err := readFile(path, (*f.set).Columns)
		if err != nil {
			return nil, err
		}
		*f.set = ss
	}
	windows, err := ReadInfoFile(filepath.Join(in, layout.InfoFile))
	if err != nil {
		return nil, err
	}
	res.Info.SyncWindows = windows
	return res, nil
}

func readFile(path string, columns int) (*model.SeriesSet, error) {
	rc, err := compressx.Open(path)
	if err != nil {
		return nil, err
	}
	defer warnonerror.Close(rc, "could not close "+path)
	ss, err := ReadSeriesSet(rc, columns)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ss, nil
}
