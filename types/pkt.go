package types

import (
	"net"
	"time"
)

// ParsedPacket holds the fields of a captured packet that session extraction
// needs.
type ParsedPacket struct {
	Timestamp time.Time

	SrcIP    net.IP
	DstIP    net.IP
	Protocol uint8
	Length   int // IP total length in bytes

	SrcPort uint16
	DstPort uint16

	TCPFlags uint16

	SequenceNum int64 // capture order, set by the reader
}

// TCP flag bits as packed by the packet parser.
const (
	FlagFIN uint16 = 1 << iota
	FlagSYN
	FlagRST
	FlagPSH
	FlagACK
	FlagURG
	FlagECE
	FlagCWR
	FlagNS
)

// Has reports whether every bit of mask is set.
func (p *ParsedPacket) Has(mask uint16) bool {
	return p.TCPFlags&mask == mask
}
