package model

// TCP header flags.
const (
	FlagFIN uint8 = 0x01
	FlagSYN uint8 = 0x02
	FlagRST uint8 = 0x04
	FlagPSH uint8 = 0x08
	FlagACK uint8 = 0x10
)

// SegmentEvent is one decoded TCP segment.
type SegmentEvent struct {
	// Time is the capture timestamp in seconds since the epoch.
	Time float64

	Key ConnectionKey
	// FromClient is true for segments travelling from client to server.
	FromClient bool

	Flags uint8
	Seq   uint32
	Ack   uint32

	// PayloadBytes is the TCP payload length.
	PayloadBytes int
	// IPLength is the length of the IP datagram, headers included.
	IPLength int

	// HasTimestamp reports whether the TCP timestamp option was present.
	HasTimestamp bool
	TSVal        uint32
	TSEcr        uint32
}

// SYN reports whether the SYN flag is set.
func (e *SegmentEvent) SYN() bool { return e.Flags&FlagSYN != 0 }

// FIN reports whether the FIN flag is set.
func (e *SegmentEvent) FIN() bool { return e.Flags&FlagFIN != 0 }
