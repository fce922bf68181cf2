package results

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/m-lab/tcp-info/inetdiag"

	"github.com/m-lab/flowstats/compressx"
	"github.com/m-lab/flowstats/logging"
	"github.com/m-lab/flowstats/model"
	"github.com/m-lab/flowstats/stats"
)

// ArchiveVersion is the schema version of the archive records.
const ArchiveVersion = 1

// ErrNoHeader is returned when an archive does not start with a header.
var ErrNoHeader = errors.New("archive has no header record")

// ArchiveHeader is the first record of an archive.
type ArchiveHeader struct {
	UUID        string             `json:"uuid"`
	Version     int                `json:"version"`
	Directory   string             `json:"directory"`
	Created     time.Time          `json:"created"`
	DeltaT      float64            `json:"delta_t"`
	Flows       []string           `json:"flows"`
	SyncWindows []model.SyncWindow `json:"sync_windows,omitempty"`
}

// BBRRecord is one telemetry sample in kernel units.
type BBRRecord struct {
	T    float64          `json:"t"`
	Info inetdiag.BBRInfo `json:"bbr_info"`
}

// FlowRecord follows the header, one per flow.
type FlowRecord struct {
	Flow    string            `json:"flow"`
	Flag    int               `json:"flag,omitempty"`
	Summary stats.FlowSummary `json:"summary"`

	// BBR holds the telemetry of the flow's client, when it was logged.
	BBR []BBRRecord `json:"bbr,omitempty"`
}

// BBRInfo converts a telemetry sample into the struct the kernel reports:
// bandwidth in bytes per second, RTT in microseconds and gains in 8 bit
// fixed point.
func BBRInfo(s model.BBRSample) inetdiag.BBRInfo {
	return inetdiag.BBRInfo{
		BW:         int64(s.Bandwidth / 8),
		MinRTT:     uint32(math.Round(s.MinRTT * 1000)),
		PacingGain: uint32(math.Round(s.PacingGain * 256)),
		CwndGain:   uint32(math.Round(s.CwndGain * 256)),
	}
}

// BBRRecords converts the telemetry samples of a flow.
func BBRRecords(samples []model.BBRSample) []BBRRecord {
	out := make([]BBRRecord, len(samples))
	for i, s := range samples {
		out[i] = BBRRecord{T: s.T, Info: BBRInfo(s)}
	}
	return out
}

// Archive is a JSON lines file holding a header and one record per flow.
type Archive struct {
	fp  *compressx.File
	enc *json.Encoder
}

// CreateArchive creates the archive at path, compressed according to the
// extension of path.
func CreateArchive(path string) (*Archive, error) {
	fp, err := compressx.Create(path)
	if err != nil {
		logging.Logger.WithError(err).Warn("could not create archive")
		return nil, err
	}
	return &Archive{fp: fp, enc: json.NewEncoder(fp)}, nil
}

// WriteHeader writes the header record.
func (a *Archive) WriteHeader(h *ArchiveHeader) error {
	return a.enc.Encode(h)
}

// WriteFlow writes one flow record.
func (a *Archive) WriteFlow(f *FlowRecord) error {
	return a.enc.Encode(f)
}

// Close flushes and closes the archive.
func (a *Archive) Close() error {
	return a.fp.Close()
}

// ReadArchive decodes the archive at path.
func ReadArchive(path string) (*ArchiveHeader, []FlowRecord, error) {
	rc, err := compressx.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()
	return decodeArchive(bufio.NewReader(rc))
}

func decodeArchive(r io.Reader) (*ArchiveHeader, []FlowRecord, error) {
	dec := json.NewDecoder(r)
	var h ArchiveHeader
	if err := dec.Decode(&h); err != nil {
		if err == io.EOF {
			return nil, nil, ErrNoHeader
		}
		return nil, nil, err
	}
	if h.Version != ArchiveVersion {
		return nil, nil, fmt.Errorf("unsupported archive version %d", h.Version)
	}
	var flows []FlowRecord
	for {
		var f FlowRecord
		err := dec.Decode(&f)
		if err == io.EOF {
			return &h, flows, nil
		}
		if err != nil {
			return nil, nil, err
		}
		flows = append(flows, f)
	}
}
