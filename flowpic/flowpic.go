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

// Package flowpic builds FlowPics: 2D histograms of packet size against
// arrival time for one segment of a session.
package flowpic

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// FlowPic is a Rows x Cols matrix of packet counts in row-major order. Rows
// are packet-size bins and columns are time bins.
type FlowPic struct {
	Rows, Cols int
	Counts     []uint16
}

// New returns an empty FlowPic.
func New(rows, cols int) *FlowPic {
	return &FlowPic{Rows: rows, Cols: cols, Counts: make([]uint16, rows*cols)}
}

// At returns the count in size bin r and time bin c.
func (p *FlowPic) At(r, c int) uint16 {
	return p.Counts[r*p.Cols+c]
}

func (p *FlowPic) inc(r, c int) {
	i := r*p.Cols + c
	if p.Counts[i] < ^uint16(0) {
		p.Counts[i]++
	}
}

// Total is the number of packets binned into the picture.
func (p *FlowPic) Total() int {
	n := 0
	for _, c := range p.Counts {
		n += int(c)
	}
	return n
}

// Matrix copies the counts into a dense matrix.
func (p *FlowPic) Matrix() *mat.Dense {
	data := make([]float64, len(p.Counts))
	for i, c := range p.Counts {
		data[i] = float64(c)
	}
	return mat.NewDense(p.Rows, p.Cols, data)
}

// SameShape reports whether o has the dimensions of p.
func (p *FlowPic) SameShape(o *FlowPic) bool {
	return p.Rows == o.Rows && p.Cols == o.Cols
}

// Sink receives FlowPics as they are produced.
type Sink interface {
	Add(*FlowPic) error
}

// Stack is an in-memory Sink.
type Stack []*FlowPic

func (s *Stack) Add(p *FlowPic) error {
	if len(*s) > 0 && !(*s)[0].SameShape(p) {
		return fmt.Errorf("flowpic: shape %dx%d does not match stack shape %dx%d", p.Rows, p.Cols, (*s)[0].Rows, (*s)[0].Cols)
	}
	*s = append(*s, p)
	return nil
}

// Shape returns (N, H, W), or zeros for an empty stack.
func (s Stack) Shape() (n, rows, cols int) {
	if len(s) == 0 {
		return 0, 0, 0
	}
	return len(s), s[0].Rows, s[0].Cols
}

// Synchronized serialises Add calls from several goroutines onto one sink.
func Synchronized(s Sink) Sink {
	return &syncSink{s: s}
}

type syncSink struct {
	mu sync.Mutex
	s  Sink
}

func (s *syncSink) Add(p *FlowPic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.s.Add(p)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(*FlowPic) error

func (f SinkFunc) Add(p *FlowPic) error {
	return f(p)
}
