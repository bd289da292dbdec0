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

// Package segment cuts a session into fixed-length time windows and keeps the
// windows that carry enough traffic to be worth a FlowPic.
package segment

import (
	"fmt"
	"math"

	"github.com/glo-fi/flowpic/types"
)

// Window holds the segmentation parameters. Times are in seconds.
type Window struct {
	Duration          float64 // T: length of each window
	Step              float64 // Δ: distance between window starts
	MinSpan           float64 // M: a segment must span strictly more than this
	MinSessionPackets int     // sessions with this many packets or fewer are dropped
	MinSegmentPackets int     // segments with this many packets or fewer are dropped
}

// DefaultWindow returns 60 second windows every 60 seconds with a 50 second
// minimum span.
func DefaultWindow() Window {
	return Window{
		Duration:          60,
		Step:              60,
		MinSpan:           50,
		MinSessionPackets: 10,
		MinSegmentPackets: 10,
	}
}

func (w Window) Validate() error {
	if !(w.Duration > 0) || math.IsInf(w.Duration, 0) {
		return fmt.Errorf("window duration must be positive, got %v", w.Duration)
	}
	if !(w.Step > 0) || math.IsInf(w.Step, 0) {
		return fmt.Errorf("window step must be positive, got %v", w.Step)
	}
	if w.MinSpan < 0 {
		return fmt.Errorf("minimum span must not be negative, got %v", w.MinSpan)
	}
	if w.MinSessionPackets < 0 || w.MinSegmentPackets < 0 {
		return fmt.Errorf("minimum packet counts must not be negative")
	}
	return nil
}

// LastIndex is the number of the last window scanned for a session ending at
// end. It is negative when the session is shorter than one window.
func (w Window) LastIndex(end float64) int {
	return int(math.Floor(end/w.Step - w.Duration/w.Step))
}

// Bounds returns the inclusive time range of window t.
func (w Window) Bounds(t int) (lo, hi float64) {
	lo = float64(t) * w.Step
	return lo, lo + w.Duration
}

// Check classifies a masked segment.
func (w Window) Check(seg types.Segment) types.Reason {
	if seg.Len() <= w.MinSegmentPackets {
		return types.RejectSparseSegment
	}
	if !(seg.Span() > w.MinSpan) {
		return types.RejectShortSpan
	}
	return types.Accepted
}

// Cut returns the packets of rec that fall inside window t, in their
// original order.
func (w Window) Cut(rec types.SessionRecord, t int) types.Segment {
	lo, hi := w.Bounds(t)
	seg := types.Segment{Index: t, Start: lo}
	for i, ts := range rec.Timestamps {
		if ts >= lo && ts <= hi {
			seg.Timestamps = append(seg.Timestamps, ts)
			seg.Sizes = append(seg.Sizes, rec.Sizes[i])
		}
	}
	return seg
}

// Scan starts a lazy pass over the valid segments of rec. Scanning the same
// record again yields the same segments.
func (w Window) Scan(rec types.SessionRecord) *Scanner {
	s := &Scanner{w: w, rec: rec, next: 0, last: -1}
	if rec.Len() <= w.MinSessionPackets || len(rec.Sizes) != rec.Len() {
		s.tally.Reject(types.RejectShortSession)
		return s
	}
	s.last = w.LastIndex(rec.Timestamps[rec.Len()-1])
	return s
}

// Scanner walks the windows of one session.
type Scanner struct {
	w     Window
	rec   types.SessionRecord
	next  int
	last  int
	cur   types.Segment
	tally types.Tally
}

// Next advances to the next valid segment, counting every rejected window
// on the way. It returns false when the windows are exhausted.
func (s *Scanner) Next() bool {
	for s.next <= s.last {
		seg := s.w.Cut(s.rec, s.next)
		s.next++
		if reason := s.w.Check(seg); reason != types.Accepted {
			s.tally.Reject(reason)
			continue
		}
		s.tally.Segments++
		s.cur = seg
		return true
	}
	s.cur = types.Segment{}
	return false
}

// Segment returns the segment found by the last call to Next.
func (s *Scanner) Segment() types.Segment {
	return s.cur
}

// Tally reports segments accepted and rejected so far.
func (s *Scanner) Tally() types.Tally {
	return s.tally
}

// All drains a fresh scan of rec.
func (w Window) All(rec types.SessionRecord) ([]types.Segment, types.Tally) {
	var out []types.Segment
	s := w.Scan(rec)
	for s.Next() {
		out = append(out, s.Segment())
	}
	return out, s.Tally()
}
