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

// Package summary accumulates the statistics written to dataset manifests.
package summary

import (
	"fmt"
	"math"
	"strings"
)

// Feature is a running statistic over integer samples.
type Feature interface {
	Add(int64)      // add one sample
	Export() string // render the statistic as comma separated values
	Get() int64     // number of samples
}

// Distribution tracks count, min, max, mean and standard deviation.
type Distribution struct {
	sum   int64
	sumsq float64
	count int64
	min   int64
	max   int64
}

func (f *Distribution) Add(val int64) {
	f.sum += val
	f.sumsq += float64(val) * float64(val)
	if f.count == 0 || val < f.min {
		f.min = val
	}
	if f.count == 0 || val > f.max {
		f.max = val
	}
	f.count++
}

// Merge folds o into f.
func (f *Distribution) Merge(o *Distribution) {
	if o.count == 0 {
		return
	}
	if f.count == 0 || o.min < f.min {
		f.min = o.min
	}
	if f.count == 0 || o.max > f.max {
		f.max = o.max
	}
	f.sum += o.sum
	f.sumsq += o.sumsq
	f.count += o.count
}

func (f *Distribution) Get() int64 {
	return f.count
}

func (f *Distribution) Mean() float64 {
	if f.count == 0 {
		return 0
	}
	return float64(f.sum) / float64(f.count)
}

// StdDev is the population standard deviation.
func (f *Distribution) StdDev() float64 {
	if f.count == 0 {
		return 0
	}
	return stddev(f.sumsq, float64(f.sum), f.count)
}

func stddev(sumsq, sum float64, count int64) float64 {
	n := float64(count)
	v := (sumsq - sum*sum/n) / n
	if v < 0 {
		return 0
	}
	return math.Sqrt(v)
}

// Export renders min, mean, max and standard deviation.
func (f *Distribution) Export() string {
	return fmt.Sprintf("%d,%g,%d,%g", f.min, f.Mean(), f.max, f.StdDev())
}

// Stats is the JSON form of a Distribution.
type Stats struct {
	Count  int64   `json:"count"`
	Min    int64   `json:"min"`
	Max    int64   `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

func (f *Distribution) Stats() Stats {
	return Stats{Count: f.count, Min: f.min, Max: f.max, Mean: f.Mean(), StdDev: f.StdDev()}
}

// Bins counts samples in equal width bins over [min, max]. Samples below
// min go to the first bin and samples above max to the last.
type Bins struct {
	min   int64
	width int64
	bins  []int64
}

// NewBins splits [min, max] into n bins.
func NewBins(min, max int64, n int) *Bins {
	if n < 1 {
		n = 1
	}
	width := (max - min + int64(n) - 1) / int64(n)
	if width < 1 {
		width = 1
	}
	return &Bins{min: min, width: width, bins: make([]int64, n)}
}

func (f *Bins) Add(val int64) {
	i := (val - f.min) / f.width
	switch {
	case val < f.min:
		i = 0
	case i >= int64(len(f.bins)):
		i = int64(len(f.bins)) - 1
	}
	f.bins[i]++
}

func (f *Bins) Get() int64 {
	var n int64
	for _, c := range f.bins {
		n += c
	}
	return n
}

// Counts returns a copy of the bin counts.
func (f *Bins) Counts() []int64 {
	return append([]int64(nil), f.bins...)
}

// Edges returns the lower edge of each bin.
func (f *Bins) Edges() []int64 {
	out := make([]int64, len(f.bins))
	for i := range out {
		out[i] = f.min + int64(i)*f.width
	}
	return out
}

func (f *Bins) Export() string {
	parts := make([]string, len(f.bins))
	for i, c := range f.bins {
		parts[i] = fmt.Sprint(c)
	}
	return strings.Join(parts, ",")
}
