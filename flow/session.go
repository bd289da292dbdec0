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

package flow

import (
	"net"
	"strconv"
	"time"

	"github.com/glo-fi/flowpic/types"
)

// Session accumulates the packets of one conversation. The host that sent
// the first packet is the source.
type Session struct {
	Key types.FlowKey

	srcIP   net.IP
	srcPort uint16
	dstIP   net.IP
	dstPort uint16
	proto   uint8

	first time.Time
	last  time.Time
	base  time.Time // first kept packet

	timestamps []float64
	sizes      []int
	packets    int64

	finForward  bool
	finBackward bool

	filter types.DirectionFilter
}

func newSession(pkt *types.ParsedPacket, filter types.DirectionFilter) *Session {
	s := &Session{
		Key:     pkt.GetFlowKey(),
		srcIP:   pkt.SrcIP,
		srcPort: pkt.SrcPort,
		dstIP:   pkt.DstIP,
		dstPort: pkt.DstPort,
		proto:   pkt.Protocol,
		first:   pkt.Timestamp,
		last:    pkt.Timestamp,
		filter:  filter,
	}
	s.record(pkt, types.DirectionForward)
	return s
}

// Direction of pkt relative to the session source.
func (s *Session) Direction(pkt *types.ParsedPacket) types.Direction {
	if pkt.SrcIP.Equal(s.srcIP) && pkt.SrcPort == s.srcPort {
		return types.DirectionForward
	}
	return types.DirectionBackward
}

// Add appends pkt unless the session has been quiet for longer than idle.
func (s *Session) Add(pkt *types.ParsedPacket, idle time.Duration) AddResult {
	if pkt.Timestamp.Sub(s.last) > idle {
		return AddIdle
	}
	if pkt.Timestamp.After(s.last) {
		s.last = pkt.Timestamp
	}
	dir := s.Direction(pkt)
	s.record(pkt, dir)

	if s.proto != types.ProtoTCP {
		return AddSuccess
	}
	if pkt.Has(types.FlagRST) {
		return AddClosed
	}
	if pkt.Has(types.FlagFIN) {
		if dir == types.DirectionForward {
			s.finForward = true
		} else {
			s.finBackward = true
		}
	}
	if s.finForward && s.finBackward {
		return AddClosed
	}
	return AddSuccess
}

func (s *Session) record(pkt *types.ParsedPacket, dir types.Direction) {
	s.packets++
	if !s.filter.Keeps(dir) {
		return
	}
	if len(s.timestamps) == 0 {
		s.base = pkt.Timestamp
	}
	offset := pkt.Timestamp.Sub(s.base).Seconds()
	if offset < 0 {
		offset = 0
	}
	s.timestamps = append(s.timestamps, offset)
	s.sizes = append(s.sizes, pkt.Length)
}

// IsExpired reports whether the session has been idle for longer than idle
// at now.
func (s *Session) IsExpired(now time.Time, idle time.Duration) bool {
	return now.Sub(s.last) > idle
}

// Packets counts every packet seen, including those the direction filter
// dropped.
func (s *Session) Packets() int64 {
	return s.packets
}

// Kept counts the packets that will be emitted.
func (s *Session) Kept() int {
	return len(s.timestamps)
}

func (s *Session) First() time.Time { return s.first }
func (s *Session) Last() time.Time  { return s.last }

// Record lays the session out as a session record. Timestamps are seconds
// since the first packet the direction filter kept; the start time column
// is the first packet of the session. anon may be nil.
func (s *Session) Record(capture string, anon Anonymizer) types.SessionRecord {
	src, dst := s.srcIP.String(), s.dstIP.String()
	if anon != nil {
		src, dst = anon.AnonymizeString(src), anon.AnonymizeString(dst)
	}
	return types.SessionRecord{
		Meta: []string{
			capture,
			src,
			strconv.Itoa(int(s.srcPort)),
			dst,
			strconv.Itoa(int(s.dstPort)),
			strconv.Itoa(int(s.proto)),
			s.first.UTC().Format(time.RFC3339Nano),
		},
		Timestamps: s.timestamps,
		Sizes:      s.sizes,
	}
}
