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
	"errors"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// ErrEmptyPicture is returned when a FlowPic has no packets to draw.
var ErrEmptyPicture = errors.New("flowpic: picture is empty")

// pooled sums square blocks of a FlowPic so large pictures render quickly.
// Z values are log scaled.
type pooled struct {
	rows, cols int
	z          []float64
}

func pool(p *FlowPic, size int) *pooled {
	if size <= 0 {
		size = p.Rows
	}
	fr := (p.Rows + size - 1) / size
	fc := (p.Cols + size - 1) / size
	g := &pooled{rows: (p.Rows + fr - 1) / fr, cols: (p.Cols + fc - 1) / fc}
	g.z = make([]float64, g.rows*g.cols)
	for r := 0; r < p.Rows; r++ {
		for c := 0; c < p.Cols; c++ {
			g.z[(r/fr)*g.cols+c/fc] += float64(p.At(r, c))
		}
	}
	for i, v := range g.z {
		g.z[i] = math.Log1p(v)
	}
	return g
}

func (g *pooled) Dims() (c, r int)   { return g.cols, g.rows }
func (g *pooled) Z(c, r int) float64 { return g.z[r*g.cols+c] }
func (g *pooled) X(c int) float64    { return float64(c) }
func (g *pooled) Y(r int) float64    { return float64(r) }

// SavePreview renders p as a heat map, pooled down to at most size bins per
// axis, and writes it to path. The image format follows the file extension.
func SavePreview(p *FlowPic, path, title string, size int) error {
	if p.Total() == 0 {
		return ErrEmptyPicture
	}
	plt := plot.New()
	plt.Title.Text = title
	plt.X.Label.Text = "time"
	plt.Y.Label.Text = "packet size"

	plt.Add(plotter.NewHeatMap(pool(p, size), palette.Heat(16, 1)))
	return plt.Save(4*vg.Inch, 4*vg.Inch, path)
}
