// Package model contains the flowstats data model.
package model

import (
	"net/netip"
	"strings"
)

// ConnectionKey identifies a flow. The client is the endpoint with the
// numerically higher port.
type ConnectionKey struct {
	ClientIP   netip.Addr
	ClientPort uint16
	ServerIP   netip.Addr
	ServerPort uint16
}

// NewConnectionKey normalizes the endpoints of a segment into a key and
// reports whether the segment travels from the client to the server.
func NewConnectionKey(srcIP netip.Addr, srcPort uint16, dstIP netip.Addr, dstPort uint16) (ConnectionKey, bool) {
	if srcPort > dstPort {
		return ConnectionKey{
			ClientIP:   srcIP,
			ClientPort: srcPort,
			ServerIP:   dstIP,
			ServerPort: dstPort,
		}, true
	}
	return ConnectionKey{
		ClientIP:   dstIP,
		ClientPort: dstPort,
		ServerIP:   srcIP,
		ServerPort: srcPort,
	}, false
}

// String returns the flow identifier used in CSV headers and logs.
func (k ConnectionKey) String() string {
	return netip.AddrPortFrom(k.ClientIP, k.ClientPort).String() + "-" +
		netip.AddrPortFrom(k.ServerIP, k.ServerPort).String()
}

// ClientIP returns the client address of a flow identifier produced by
// ConnectionKey.String.
func ClientIP(flow string) (netip.Addr, bool) {
	client, _, ok := strings.Cut(flow, "-")
	if !ok {
		return netip.Addr{}, false
	}
	ap, err := netip.ParseAddrPort(client)
	if err != nil {
		return netip.Addr{}, false
	}
	return ap.Addr(), true
}
