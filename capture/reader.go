// Package capture streams TCP segment events out of pcap and pcapng files.
//
// Captures are consumed as forward iterators: a Reader never holds more than
// the frame currently being decoded, so arbitrarily long captures can be
// analysed in constant memory.
package capture

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"

	"github.com/apex/log"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/m-lab/flowstats/compressx"
	"github.com/m-lab/flowstats/logging"
	"github.com/m-lab/flowstats/metrics"
	"github.com/m-lab/flowstats/model"
)

// pcapngMagic is the block type of a pcapng section header.
const pcapngMagic = 0x0A0D0D0A

// packetSource is implemented by both pcapgo.Reader and pcapgo.NgReader.
type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Reader yields the TCP segments of a capture in arrival order.
type Reader struct {
	src     packetSource
	closer  io.Closer
	decoder *Decoder
	vantage string

	decoded int
	skipped int
}

// Open opens the capture at path, which may be gzip or bzip2 compressed.
// The vantage labels the metrics and logs of this reader.
func Open(path, vantage string) (*Reader, error) {
	rc, err := compressx.Open(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(rc, vantage)
	if err != nil {
		rc.Close()
		return nil, err
	}
	r.closer = rc
	return r, nil
}

// NewReader reads a pcap or pcapng stream from r.
func NewReader(r io.Reader, vantage string) (*Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(4)
	if err != nil {
		return nil, err
	}
	var src packetSource
	if binary.LittleEndian.Uint32(magic) == pcapngMagic {
		src, err = pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
	} else {
		src, err = pcapgo.NewReader(br)
	}
	if err != nil {
		return nil, err
	}
	decoder, err := NewDecoder(src.LinkType())
	if err != nil {
		return nil, err
	}
	return &Reader{
		src:     src,
		decoder: decoder,
		vantage: vantage,
	}, nil
}

// Next returns the next TCP segment. Frames that are not TCP/IP or that
// cannot be decoded are skipped and counted. Next returns io.EOF at the
// end of the capture.
func (r *Reader) Next() (model.SegmentEvent, error) {
	for {
		data, ci, err := r.src.ReadPacketData()
		if err == io.ErrUnexpectedEOF {
			// tcpdump killed mid-write leaves a truncated last record.
			logging.Logger.WithField("vantage", r.vantage).Warn("capture ends with a truncated record")
			return model.SegmentEvent{}, io.EOF
		}
		if err != nil {
			return model.SegmentEvent{}, err
		}
		ev, err := r.decoder.Decode(data, ci)
		if err != nil {
			r.skip(err)
			continue
		}
		r.decoded++
		metrics.FramesDecoded.WithLabelValues(r.vantage).Inc()
		return ev, nil
	}
}

func (r *Reader) skip(err error) {
	r.skipped++
	reason := "malformed"
	if errors.Is(err, ErrNotTCP) {
		reason = "not-tcp"
	}
	metrics.FramesSkipped.WithLabelValues(r.vantage, reason).Inc()
	logging.Logger.WithFields(log.Fields{
		"vantage": r.vantage,
		"reason":  reason,
	}).WithError(err).Debug("skipping frame")
}

// Decoded returns the number of segments returned so far.
func (r *Reader) Decoded() int {
	return r.decoded
}

// Skipped returns the number of frames skipped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// Close closes the underlying file, if the Reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
