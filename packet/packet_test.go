package packet

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glo-fi/flowpic/types"
)

var (
	clientIP = net.IPv4(10, 0, 0, 1)
	serverIP = net.IPv4(10, 0, 0, 2)
	start    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, ls...))
	return buf.Bytes()
}

func ethernet(ethType layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: ethType,
	}
}

func tcpFrame(t *testing.T, payload int, tcp *layers.TCP) []byte {
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: clientIP, DstIP: serverIP}
	tcp.SrcPort, tcp.DstPort = 40000, 443
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload(make([]byte, payload)))
}

func udpFrame(t *testing.T, payload int) []byte {
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP, SrcIP: serverIP, DstIP: clientIP}
	udp := &layers.UDP{SrcPort: 53, DstPort: 5353}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, udp, gopacket.Payload(make([]byte, payload)))
}

func udp6Frame(t *testing.T, payload int) []byte {
	ip := &layers.IPv6{Version: 6, HopLimit: 64, NextHeader: layers.IPProtocolUDP,
		SrcIP: net.ParseIP("2001:db8::1"), DstIP: net.ParseIP("2001:db8::2")}
	udp := &layers.UDP{SrcPort: 1000, DstPort: 2000}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	return serialize(t, ethernet(layers.EthernetTypeIPv6), ip, udp, gopacket.Payload(make([]byte, payload)))
}

func icmpFrame(t *testing.T) []byte {
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolICMPv4, SrcIP: clientIP, DstIP: serverIP}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	return serialize(t, ethernet(layers.EthernetTypeIPv4), ip, icmp)
}

func decode(data []byte, ts time.Time) gopacket.Packet {
	p := gopacket.NewPacket(data, layers.LinkTypeEthernet, gopacket.Default)
	p.Metadata().Timestamp = ts
	return p
}

func TestParse_TCP(t *testing.T) {
	p := &StandardParser{}
	pkt, err := p.Parse(decode(tcpFrame(t, 100, &layers.TCP{SYN: true, ACK: true, Window: 1024}), start))
	require.NoError(t, err)

	assert.Equal(t, start, pkt.Timestamp)
	assert.True(t, clientIP.Equal(pkt.SrcIP))
	assert.True(t, serverIP.Equal(pkt.DstIP))
	assert.Equal(t, types.ProtoTCP, pkt.Protocol)
	assert.Equal(t, 20+20+100, pkt.Length)
	assert.EqualValues(t, 40000, pkt.SrcPort)
	assert.EqualValues(t, 443, pkt.DstPort)
	assert.True(t, pkt.Has(types.FlagSYN|types.FlagACK))
	assert.False(t, pkt.Has(types.FlagFIN))
	assert.False(t, pkt.Has(types.FlagRST))
}

func TestParse_UDP(t *testing.T) {
	p := &StandardParser{}
	pkt, err := p.Parse(decode(udpFrame(t, 30), start))
	require.NoError(t, err)
	assert.Equal(t, types.ProtoUDP, pkt.Protocol)
	assert.Equal(t, 20+8+30, pkt.Length)
	assert.EqualValues(t, 53, pkt.SrcPort)
	assert.Zero(t, pkt.TCPFlags)

	pkt, err = p.Parse(decode(udp6Frame(t, 12), start))
	require.NoError(t, err)
	assert.Equal(t, 40+8+12, pkt.Length)
	assert.Equal(t, "2001:db8::1", pkt.SrcIP.String())
}

func TestParse_Unsupported(t *testing.T) {
	p := &StandardParser{}
	_, err := p.Parse(decode(icmpFrame(t), start))
	assert.ErrorIs(t, err, ErrUnsupported)

	arp := serialize(t, ethernet(layers.EthernetTypeARP), &layers.ARP{
		AddrType: layers.LinkTypeEthernet, Protocol: layers.EthernetTypeIPv4,
		HwAddressSize: 6, ProtAddressSize: 4, Operation: layers.ARPRequest,
		SourceHwAddress: []byte{0, 1, 2, 3, 4, 5}, SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress: []byte{0, 0, 0, 0, 0, 0}, DstProtAddress: []byte{10, 0, 0, 2},
	})
	_, err = p.Parse(decode(arp, start))
	assert.ErrorIs(t, err, ErrUnsupported)

	assert.Equal(t, []uint8{types.ProtoTCP, types.ProtoUDP}, p.SupportedProtocols())
}

func writeCapture(t *testing.T, path string, ng bool, frames ...[]byte) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	write := func(ci gopacket.CaptureInfo, data []byte) error { return nil }
	if ng {
		w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
		require.NoError(t, err)
		defer func() { require.NoError(t, w.Flush()) }()
		write = w.WritePacket
	} else {
		w := pcapgo.NewWriter(f)
		require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
		write = w.WritePacket
	}
	for i, data := range frames {
		ci := gopacket.CaptureInfo{
			Timestamp:     start.Add(time.Duration(i) * time.Second),
			CaptureLength: len(data),
			Length:        len(data),
		}
		require.NoError(t, write(ci, data))
	}
}

func TestFile_Each(t *testing.T) {
	for _, ng := range []bool{false, true} {
		name := "pcap"
		if ng {
			name = "pcapng"
		}
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "trace."+name)
			writeCapture(t, path, ng,
				tcpFrame(t, 10, &layers.TCP{SYN: true}),
				icmpFrame(t),
				udpFrame(t, 20))

			f, err := Open(path)
			require.NoError(t, err)
			defer f.Close()
			assert.Equal(t, layers.LinkTypeEthernet, f.LinkType())

			p := &StandardParser{}
			var got []*types.ParsedPacket
			var skipped int
			require.NoError(t, f.Each(context.Background(), func(raw gopacket.Packet) error {
				pkt, err := p.Parse(raw)
				if err != nil {
					skipped++
					return nil
				}
				got = append(got, pkt)
				return nil
			}))

			require.Len(t, got, 2)
			assert.Equal(t, 1, skipped)
			assert.Equal(t, types.ProtoTCP, got[0].Protocol)
			assert.Equal(t, types.ProtoUDP, got[1].Protocol)
			assert.True(t, start.Equal(got[0].Timestamp))
			assert.True(t, start.Add(2*time.Second).Equal(got[1].Timestamp))
		})
	}
}

func TestFile_EachStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.pcap")
	writeCapture(t, path, false, udpFrame(t, 1), udpFrame(t, 2))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Each(ctx, func(gopacket.Packet) error { return nil }), context.Canceled)
}

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing.pcap"))
	assert.Error(t, err)

	junk := filepath.Join(dir, "junk.pcap")
	require.NoError(t, os.WriteFile(junk, []byte("definitely not a capture"), 0o644))
	_, err = Open(junk)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.pcap")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	_, err = Open(empty)
	assert.Error(t, err)
}
