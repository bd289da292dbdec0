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

package flowpic

import (
	"fmt"
	"math"
	"strings"

	"github.com/glo-fi/flowpic/types"
)

// MTU is the default resolution and packet size ceiling.
const MTU = 1500

// Builder turns one segment into a FlowPic. Implementations must not keep
// state between calls.
type Builder interface {
	Build(offsets []float64, sizes []int) (*FlowPic, error)
}

// Histogram bins packets into a Resolution x Resolution picture.
type Histogram struct {
	Resolution int     // bins per axis
	MaxSize    int     // upper edge of the size axis, in bytes
	Span       float64 // upper edge of the time axis; 0 scales by the segment's last offset
}

// DefaultHistogram matches the 1500x1500 FlowPic layout.
func DefaultHistogram() Histogram {
	return Histogram{Resolution: MTU, MaxSize: MTU}
}

func (h Histogram) Validate() error {
	if h.Resolution <= 0 {
		return fmt.Errorf("histogram resolution must be positive, got %d", h.Resolution)
	}
	if h.MaxSize <= 0 {
		return fmt.Errorf("histogram max size must be positive, got %d", h.MaxSize)
	}
	if h.Span < 0 || math.IsNaN(h.Span) || math.IsInf(h.Span, 0) {
		return fmt.Errorf("histogram span must be a non-negative number, got %v", h.Span)
	}
	return nil
}

// Build implements Builder. Bins are [i, i+1) except the last, which also
// takes values equal to the upper edge. Values outside the axis ranges are
// dropped.
func (h Histogram) Build(offsets []float64, sizes []int) (*FlowPic, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if len(offsets) != len(sizes) {
		return nil, fmt.Errorf("flowpic: %d offsets but %d sizes", len(offsets), len(sizes))
	}

	span := h.Span
	if span == 0 && len(offsets) > 0 {
		span = offsets[len(offsets)-1]
	}
	res := float64(h.Resolution)
	pic := New(h.Resolution, h.Resolution)
	for i, off := range offsets {
		row, ok := bin(float64(sizes[i])/float64(h.MaxSize)*res, h.Resolution)
		if !ok {
			continue
		}
		col := 0
		if span > 0 {
			if col, ok = bin(off/span*res, h.Resolution); !ok {
				continue
			}
		} else if off != 0 {
			continue
		}
		pic.inc(row, col)
	}
	return pic, nil
}

func bin(v float64, n int) (int, bool) {
	if !(v >= 0) || v > float64(n) {
		return 0, false
	}
	i := int(v)
	if i == n {
		i--
	}
	return i, true
}

// Align chooses the zero point of a segment's time axis.
type Align string

const (
	AlignPacket Align = "packet" // first packet of the segment
	AlignWindow Align = "window" // start of the window
)

func ParseAlign(s string) (Align, error) {
	switch a := Align(strings.ToLower(strings.TrimSpace(s))); a {
	case "", AlignPacket:
		return AlignPacket, nil
	case AlignWindow:
		return a, nil
	default:
		return "", fmt.Errorf("unknown time alignment %q", s)
	}
}

// Offsets returns the segment's timestamps relative to the chosen origin.
// AlignPacket, the default, measures from the segment's first packet as the
// FlowPic plotter does, so the time axis does not start at the window edge.
// AlignWindow measures from seg.Start.
func Offsets(seg types.Segment, align Align) []float64 {
	out := make([]float64, len(seg.Timestamps))
	if len(out) == 0 {
		return out
	}
	origin := seg.Timestamps[0]
	if align == AlignWindow {
		origin = seg.Start
	}
	for i, ts := range seg.Timestamps {
		out[i] = ts - origin
	}
	return out
}
