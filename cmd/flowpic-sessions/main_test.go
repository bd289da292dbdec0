/*
 *
 *  Licensed under the Apache License, Version 2.0 (the "License");
 *  you may not use this file except in compliance with the License.
 *  You may obtain a copy of the License at
 *
 *      http://www.apache.org/licenses/LICENSE-2.0
 *
 *  Unless required by applicable law or agreed to in writing, software
 *  distributed under the License is distributed on an "AS IS" BASIS,
 *  WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *  See the License for the specific language governing permissions and
 *  limitations under the License.
 *
 *
 */

package main

import (
	"bytes"
	"context"
	"encoding/hex"
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

	"github.com/glo-fi/flowpic/record"
	"github.com/glo-fi/flowpic/types"
)

var start = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func tcpFrame(t *testing.T, fromClient bool, tcp *layers.TCP, payload int) []byte {
	t.Helper()
	ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP,
		SrcIP: net.IPv4(10, 1, 1, 1), DstIP: net.IPv4(10, 2, 2, 2)}
	tcp.SrcPort, tcp.DstPort = 41000, 443
	if !fromClient {
		ip.SrcIP, ip.DstIP = ip.DstIP, ip.SrcIP
		tcp.SrcPort, tcp.DstPort = tcp.DstPort, tcp.SrcPort
	}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 6},
		EthernetType: layers.EthernetTypeIPv4,
	}
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(make([]byte, payload))))
	return buf.Bytes()
}

func writeCapture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "web.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	frames := [][]byte{
		tcpFrame(t, true, &layers.TCP{SYN: true}, 0),
		tcpFrame(t, false, &layers.TCP{SYN: true, ACK: true}, 0),
		tcpFrame(t, true, &layers.TCP{ACK: true, PSH: true}, 200),
		tcpFrame(t, false, &layers.TCP{ACK: true, PSH: true}, 1200),
		tcpFrame(t, true, &layers.TCP{FIN: true, ACK: true}, 0),
		tcpFrame(t, false, &layers.TCP{FIN: true, ACK: true}, 0),
	}
	for i, data := range frames {
		ci := gopacket.CaptureInfo{Timestamp: start.Add(time.Duration(i) * 100 * time.Millisecond), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func readSessions(t *testing.T, path string) []types.SessionRecord {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var recs []types.SessionRecord
	_, err = record.Scan(f, func(rec types.SessionRecord) error {
		recs = append(recs, rec)
		return nil
	})
	require.NoError(t, err)
	return recs
}

func TestRun_ExtractsSessions(t *testing.T) {
	capture := writeCapture(t)
	out := filepath.Join(t.TempDir(), "sessions.csv")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"-o", out, capture}, &stdout, &stderr), stderr.String())
	assert.Empty(t, stdout.String())

	recs := readSessions(t, out)
	require.Len(t, recs, 1)
	assert.Equal(t, []string{"web.pcap", "10.1.1.1", "41000", "10.2.2.2", "443", "6", "2024-03-01T12:00:00Z"}, recs[0].Meta)
	assert.Equal(t, []int{40, 40, 240, 1240, 40, 40}, recs[0].Sizes)
	assert.InDeltaSlice(t, []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}, recs[0].Timestamps, 1e-9)
}

func TestRun_AnonymizesWithKeyFile(t *testing.T) {
	capture := writeCapture(t)
	keyFile := filepath.Join(t.TempDir(), "cpan.key")
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	require.NoError(t, os.WriteFile(keyFile, []byte(hex.EncodeToString(key)), 0o600))

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), []string{"-c", "-k", keyFile, "-direction", "backward", capture}, &stdout, &stderr), stderr.String())

	out := filepath.Join(t.TempDir(), "stdout.csv")
	require.NoError(t, os.WriteFile(out, stdout.Bytes(), 0o644))
	recs := readSessions(t, out)
	require.Len(t, recs, 1)
	assert.NotEqual(t, "10.1.1.1", recs[0].Meta[1])
	assert.NotNil(t, net.ParseIP(recs[0].Meta[1]))
	assert.Equal(t, []int{40, 1240, 40}, recs[0].Sizes)
}

func TestRun_Failures(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run(context.Background(), nil, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Missing required filename")

	assert.Equal(t, 1, run(context.Background(), []string{filepath.Join(t.TempDir(), "missing.pcap")}, &stdout, &stderr))

	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"-direction", "sideways", "x.pcap"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "direction")

	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"-c", "-k", filepath.Join(t.TempDir(), "nokey"), "x.pcap"}, &stdout, &stderr))
}
