// Package capturetest builds synthetic captures for unit tests.
package capturetest

import (
	"encoding/binary"
	"io"
	"math"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/m-lab/flowstats/compressx"
)

// Frame describes one synthetic frame. Frames are TCP unless UDP is set.
type Frame struct {
	Time    float64
	SrcIP   string
	DstIP   string
	SrcPort uint16
	DstPort uint16

	SYN, FIN, ACK bool
	Seq, Ack      uint32
	Payload       int

	// Timestamp option values; the option is omitted when both are zero.
	TSVal, TSEcr uint32

	UDP bool
}

// timestamp converts seconds since the epoch into a time.Time.
func timestamp(t float64) time.Time {
	sec := math.Floor(t)
	return time.Unix(int64(sec), int64(math.Round((t-sec)*1e9)))
}

// Serialize returns the Ethernet frame bytes of f.
func Serialize(f Frame) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 1},
		DstMAC:       net.HardwareAddr{0, 0, 0, 0, 0, 2},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(f.SrcIP).To4(),
		DstIP:    net.ParseIP(f.DstIP).To4(),
	}
	payload := gopacket.Payload(make([]byte, f.Payload))
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	buf := gopacket.NewSerializeBuffer()
	if f.UDP {
		ip.Protocol = layers.IPProtocolUDP
		udp := &layers.UDP{SrcPort: layers.UDPPort(f.SrcPort), DstPort: layers.UDPPort(f.DstPort)}
		if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
			return nil, err
		}
		if err := gopacket.SerializeLayers(buf, opts, eth, ip, udp, payload); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(f.SrcPort),
		DstPort: layers.TCPPort(f.DstPort),
		Seq:     f.Seq,
		Ack:     f.Ack,
		SYN:     f.SYN,
		FIN:     f.FIN,
		ACK:     f.ACK,
		Window:  65535,
	}
	if f.TSVal != 0 || f.TSEcr != 0 {
		data := make([]byte, 8)
		binary.BigEndian.PutUint32(data[:4], f.TSVal)
		binary.BigEndian.PutUint32(data[4:], f.TSEcr)
		tcp.Options = []layers.TCPOption{{
			OptionType:   layers.TCPOptionKindTimestamps,
			OptionLength: 10,
			OptionData:   data,
		}}
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, err
	}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, payload); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write writes frames as an Ethernet pcap stream to w.
func Write(w io.Writer, frames []Frame) error {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		return err
	}
	for _, f := range frames {
		data, err := Serialize(f)
		if err != nil {
			return err
		}
		ci := gopacket.CaptureInfo{
			Timestamp:     timestamp(f.Time),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pw.WritePacket(ci, data); err != nil {
			return err
		}
	}
	return nil
}

// WriteFile writes frames to path, compressing according to its extension.
func WriteFile(path string, frames []Frame) error {
	f, err := compressx.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, frames); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
