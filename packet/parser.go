// Package packet decodes captured packets into the fields session
// extraction needs.
package packet

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/glo-fi/flowpic/types"
)

// ErrUnsupported marks packets that are not TCP or UDP over IP. Callers
// usually count and skip them.
var ErrUnsupported = errors.New("packet: unsupported packet")

type Parser interface {
	Parse(raw gopacket.Packet) (*types.ParsedPacket, error)

	// SupportedProtocols returns the IP protocol numbers this parser
	// handles.
	SupportedProtocols() []uint8
}

type StandardParser struct{}

func (p *StandardParser) Parse(raw gopacket.Packet) (*types.ParsedPacket, error) {
	pkt := &types.ParsedPacket{
		Timestamp: raw.Metadata().Timestamp,
	}

	if err := p.parseIPLayer(raw, pkt); err != nil {
		return nil, err
	}
	if err := p.parseTransportLayer(raw, pkt); err != nil {
		return nil, err
	}
	return pkt, nil
}

func (p *StandardParser) parseIPLayer(raw gopacket.Packet, pkt *types.ParsedPacket) error {
	if ipv4Layer := raw.Layer(layers.LayerTypeIPv4); ipv4Layer != nil {
		ipv4 := ipv4Layer.(*layers.IPv4)
		pkt.SrcIP = ipv4.SrcIP
		pkt.DstIP = ipv4.DstIP
		pkt.Protocol = uint8(ipv4.Protocol)
		pkt.Length = int(ipv4.Length)
		return nil
	}

	if ipv6Layer := raw.Layer(layers.LayerTypeIPv6); ipv6Layer != nil {
		ipv6 := ipv6Layer.(*layers.IPv6)
		pkt.SrcIP = ipv6.SrcIP
		pkt.DstIP = ipv6.DstIP
		pkt.Protocol = uint8(ipv6.NextHeader)
		pkt.Length = int(ipv6.Length) + 40 // payload length excludes the fixed header
		return nil
	}

	return fmt.Errorf("%w: no IP layer", ErrUnsupported)
}

func (p *StandardParser) parseTransportLayer(raw gopacket.Packet, pkt *types.ParsedPacket) error {
	switch pkt.Protocol {
	case types.ProtoTCP:
		tcpLayer := raw.Layer(layers.LayerTypeTCP)
		if tcpLayer == nil {
			return fmt.Errorf("%w: truncated TCP header", ErrUnsupported)
		}
		tcp := tcpLayer.(*layers.TCP)
		pkt.SrcPort = uint16(tcp.SrcPort)
		pkt.DstPort = uint16(tcp.DstPort)
		pkt.TCPFlags = tcpFlags(tcp)
		return nil
	case types.ProtoUDP:
		udpLayer := raw.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			return fmt.Errorf("%w: truncated UDP header", ErrUnsupported)
		}
		udp := udpLayer.(*layers.UDP)
		pkt.SrcPort = uint16(udp.SrcPort)
		pkt.DstPort = uint16(udp.DstPort)
		return nil
	default:
		return fmt.Errorf("%w: protocol %d", ErrUnsupported, pkt.Protocol)
	}
}

func (p *StandardParser) SupportedProtocols() []uint8 {
	return []uint8{types.ProtoTCP, types.ProtoUDP}
}

func tcpFlags(t *layers.TCP) uint16 {
	var f uint16
	for _, b := range []struct {
		set  bool
		mask uint16
	}{
		{t.FIN, types.FlagFIN},
		{t.SYN, types.FlagSYN},
		{t.RST, types.FlagRST},
		{t.PSH, types.FlagPSH},
		{t.ACK, types.FlagACK},
		{t.URG, types.FlagURG},
		{t.ECE, types.FlagECE},
		{t.CWR, types.FlagCWR},
		{t.NS, types.FlagNS},
	} {
		if b.set {
			f |= b.mask
		}
	}
	return f
}
