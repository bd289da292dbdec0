package types

import (
	"fmt"
	"net"
	"strconv"
)

// Protocol numbers handled by the session extractor.
const (
	ProtoTCP uint8 = 6
	ProtoUDP uint8 = 17
)

// FlowKey identifies a bidirectional session. Keys built by GetFlowKey are
// normalised so both directions of a conversation map to the same key.
type FlowKey struct {
	SrcIP    string
	DstIP    string
	SrcPort  uint16
	DstPort  uint16
	Protocol uint8
}

func (fk FlowKey) String() string {
	return fmt.Sprintf("%s<->%s/%d",
		net.JoinHostPort(fk.SrcIP, strconv.Itoa(int(fk.SrcPort))),
		net.JoinHostPort(fk.DstIP, strconv.Itoa(int(fk.DstPort))),
		fk.Protocol)
}

// GetFlowKey returns the normalised key for the packet's conversation.
func (p *ParsedPacket) GetFlowKey() FlowKey {
	src, dst := p.SrcIP.String(), p.DstIP.String()
	if src < dst || (src == dst && p.SrcPort <= p.DstPort) {
		return FlowKey{
			SrcIP:    src,
			DstIP:    dst,
			SrcPort:  p.SrcPort,
			DstPort:  p.DstPort,
			Protocol: p.Protocol,
		}
	}

	return FlowKey{
		SrcIP:    dst,
		DstIP:    src,
		SrcPort:  p.DstPort,
		DstPort:  p.SrcPort,
		Protocol: p.Protocol,
	}
}
