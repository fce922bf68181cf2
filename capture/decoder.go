package capture

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/m-lab/flowstats/model"
)

// Errors describing why a frame was skipped.
var (
	ErrUnsupportedLink = errors.New("unsupported link type")
	ErrNotTCP          = errors.New("not a TCP/IP frame")
	ErrMalformed       = errors.New("malformed frame")
)

// Decoder turns raw frames of one link type into segment events. It keeps
// no state between frames other than reusable layer buffers.
type Decoder struct {
	eth     layers.Ethernet
	sll     layers.LinuxSLL
	ip4     layers.IPv4
	ip6     layers.IPv6
	tcp     layers.TCP
	payload gopacket.Payload

	first   gopacket.LayerType
	raw     bool
	parsers map[gopacket.LayerType]*gopacket.DecodingLayerParser
	decoded []gopacket.LayerType
}

// NewDecoder returns a decoder for frames of the given link type.
func NewDecoder(link layers.LinkType) (*Decoder, error) {
	d := &Decoder{
		parsers: make(map[gopacket.LayerType]*gopacket.DecodingLayerParser),
		decoded: make([]gopacket.LayerType, 0, 4),
	}
	switch link {
	case layers.LinkTypeEthernet:
		d.first = layers.LayerTypeEthernet
	case layers.LinkTypeLinuxSLL:
		d.first = layers.LayerTypeLinuxSLL
	case layers.LinkTypeRaw, layers.LinkTypeIPv4, layers.LinkTypeIPv6:
		d.raw = true
		d.first = layers.LayerTypeIPv4
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedLink, link)
	}
	return d, nil
}

func (d *Decoder) parser(first gopacket.LayerType) *gopacket.DecodingLayerParser {
	if p, ok := d.parsers[first]; ok {
		return p
	}
	p := gopacket.NewDecodingLayerParser(first, &d.eth, &d.sll, &d.ip4, &d.ip6, &d.tcp, &d.payload)
	p.IgnoreUnsupported = true
	d.parsers[first] = p
	return p
}

// Decode decodes one frame captured at ci.Timestamp.
func (d *Decoder) Decode(data []byte, ci gopacket.CaptureInfo) (model.SegmentEvent, error) {
	first := d.first
	if d.raw && len(data) > 0 && data[0]>>4 == 6 {
		first = layers.LayerTypeIPv6
	}
	if err := d.parser(first).DecodeLayers(data, &d.decoded); err != nil {
		return model.SegmentEvent{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var (
		src, dst netip.Addr
		ipLength int
		isIP     bool
		isIPv6   bool
		isTCP    bool
	)
	for _, lt := range d.decoded {
		switch lt {
		case layers.LayerTypeIPv4:
			src, _ = netip.AddrFromSlice(d.ip4.SrcIP.To4())
			dst, _ = netip.AddrFromSlice(d.ip4.DstIP.To4())
			ipLength = int(d.ip4.Length)
			isIP = true
		case layers.LayerTypeIPv6:
			src, _ = netip.AddrFromSlice(d.ip6.SrcIP)
			dst, _ = netip.AddrFromSlice(d.ip6.DstIP)
			ipLength = int(d.ip6.Length) + 40
			isIP = true
			isIPv6 = true
		case layers.LayerTypeTCP:
			isTCP = true
		}
	}
	if !isIP || !isTCP {
		return model.SegmentEvent{}, ErrNotTCP
	}
	ev := model.SegmentEvent{
		Time:     float64(ci.Timestamp.Unix()) + float64(ci.Timestamp.Nanosecond())/1e9,
		Flags:    flags(&d.tcp),
		Seq:      d.tcp.Seq,
		Ack:      d.tcp.Ack,
		IPLength: ipLength,
	}
	ev.Key, ev.FromClient = model.NewConnectionKey(src, uint16(d.tcp.SrcPort), dst, uint16(d.tcp.DstPort))
	// Captures are usually truncated to the headers, so the payload length
	// comes from the IP header rather than from the captured bytes.
	ev.PayloadBytes = payloadLength(ipLength, isIPv6, &d.ip4, &d.tcp)
	for _, opt := range d.tcp.Options {
		if opt.OptionType == layers.TCPOptionKindTimestamps && len(opt.OptionData) >= 8 {
			ev.HasTimestamp = true
			ev.TSVal = binary.BigEndian.Uint32(opt.OptionData[:4])
			ev.TSEcr = binary.BigEndian.Uint32(opt.OptionData[4:8])
		}
	}
	return ev, nil
}

func payloadLength(ipLength int, v6 bool, ip4 *layers.IPv4, tcp *layers.TCP) int {
	header := int(tcp.DataOffset) * 4
	if v6 {
		header += 40
	} else {
		header += int(ip4.IHL) * 4
	}
	if n := ipLength - header; n > 0 {
		return n
	}
	return 0
}

func flags(tcp *layers.TCP) uint8 {
	var f uint8
	if tcp.FIN {
		f |= model.FlagFIN
	}
	if tcp.SYN {
		f |= model.FlagSYN
	}
	if tcp.RST {
		f |= model.FlagRST
	}
	if tcp.PSH {
		f |= model.FlagPSH
	}
	if tcp.ACK {
		f |= model.FlagACK
	}
	return f
}
