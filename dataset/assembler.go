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

// Package dataset combines per-class FlowPic arrays into labelled,
// stratified test sets, one per tunnel type.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/glo-fi/flowpic/config"
	"github.com/glo-fi/flowpic/flowpic"
	"github.com/glo-fi/flowpic/metrics"
	"github.com/glo-fi/flowpic/npy"
	"github.com/glo-fi/flowpic/summary"
)

// ErrAmbiguous is returned when a class file pattern matches several files.
var ErrAmbiguous = errors.New("dataset: ambiguous class file")

// packetBound caps the packets a FlowPic contributes to private statistics.
const packetBound = 1 << 16

// Assembler builds the per-tunnel test sets.
type Assembler struct {
	root     string
	output   string
	pattern  string
	classes  []string
	tunnels  []string
	testSize float64
	seed     int64
	epsilon  float64
	runID    string
	log      *zap.Logger
	metrics  *metrics.Metrics
}

// New builds an Assembler from cfg. A nil logger discards logs.
func New(cfg *config.Config, log *zap.Logger, m *metrics.Metrics) *Assembler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Assembler{
		root:     cfg.Dataset.Root,
		output:   cfg.Dataset.Output,
		pattern:  cfg.Dataset.Pattern,
		classes:  cfg.Dataset.ClassNames,
		tunnels:  cfg.Dataset.VPNTypes,
		testSize: cfg.Dataset.TestSize,
		seed:     cfg.Dataset.RandomState,
		epsilon:  cfg.Privacy.Epsilon,
		runID:    uuid.NewString(),
		log:      log,
		metrics:  m,
	}
}

// RunID identifies this assembler's output in manifests.
func (a *Assembler) RunID() string {
	return a.runID
}

// ClassReport is the outcome of one class for one tunnel type.
type ClassReport struct {
	Class string
	Label int32
	Path  string // resolved class file; empty when none matched
	Rows  int
	Test  int
	Err   error
}

// TunnelReport is the outcome of one tunnel type.
type TunnelReport struct {
	Tunnel   string
	Classes  []ClassReport
	Total    int
	Test     int
	X, Y     string // written files; empty when the tunnel was skipped
	Manifest string
	Err      error
}

// Written reports whether the tunnel produced output.
func (r TunnelReport) Written() bool {
	return r.X != ""
}

// Report is the outcome of a full run.
type Report struct {
	RunID   string
	Tunnels []TunnelReport
}

// Empty reports whether no tunnel type produced output.
func (r Report) Empty() bool {
	for _, t := range r.Tunnels {
		if t.Written() {
			return false
		}
	}
	return true
}

// ClassPattern expands the file pattern for one class and tunnel type.
func (a *Assembler) ClassPattern(class, tunnel string) string {
	return strings.NewReplacer("{root}", a.root, "{class}", class, "{tunnel}", tunnel).Replace(a.pattern)
}

// Locate resolves the class files of tunnel. Every class gets a report in
// class-list order; Path stays empty when nothing matched and Err is
// ErrAmbiguous when more than one file did.
func (a *Assembler) Locate(tunnel string) []ClassReport {
	out := make([]ClassReport, len(a.classes))
	for i, class := range a.classes {
		rep := ClassReport{Class: class, Label: int32(i)}
		pattern := a.ClassPattern(class, tunnel)
		matches, err := filepath.Glob(pattern)
		switch {
		case err != nil:
			rep.Err = fmt.Errorf("dataset: pattern %s: %w", pattern, err)
		case len(matches) == 0:
			a.log.Warn("no file found for class, skipping",
				zap.String("class", class), zap.String("tunnel", tunnel), zap.String("pattern", pattern))
		case len(matches) > 1:
			rep.Err = fmt.Errorf("%w: %s matches %d files", ErrAmbiguous, pattern, len(matches))
		default:
			rep.Path = matches[0]
		}
		out[i] = rep
	}
	return out
}

// Assemble loads, labels, splits and writes the test set of one tunnel
// type. A tunnel type without data is skipped with a nil error.
func (a *Assembler) Assemble(ctx context.Context, tunnel string) (TunnelReport, error) {
	rep := TunnelReport{Tunnel: tunnel}
	log := a.log.With(zap.String("tunnel", tunnel))
	log.Info("processing tunnel type")

	var x flowpic.Stack
	var y []int32
	rep.Classes = a.Locate(tunnel)
	for i := range rep.Classes {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		cr := &rep.Classes[i]
		if cr.Err != nil {
			log.Error("class skipped", zap.String("class", cr.Class), zap.Error(cr.Err))
			continue
		}
		if cr.Path == "" {
			continue
		}
		stack, err := npy.ReadStack(cr.Path)
		if err != nil {
			cr.Err = err
			log.Error("class skipped", zap.String("class", cr.Class), zap.Error(err))
			continue
		}
		if len(stack) == 0 {
			log.Warn("empty class array, skipping", zap.String("path", cr.Path))
			continue
		}
		for _, p := range stack {
			if err := x.Add(p); err != nil {
				return rep, fmt.Errorf("dataset: %s: %w", cr.Path, err)
			}
			y = append(y, cr.Label)
		}
		cr.Rows = len(stack)
		log.Info("loaded class", zap.String("class", cr.Class), zap.Int32("label", cr.Label), zap.Int("rows", cr.Rows))
	}

	rep.Total = len(x)
	if rep.Total == 0 {
		log.Warn("no data found for tunnel type, skipping")
		return rep, nil
	}

	split, err := StratifiedSplit(y, a.testSize, a.seed)
	if err != nil {
		return rep, err
	}
	xTest := make(flowpic.Stack, len(split.Test))
	yTest := make([]int32, len(split.Test))
	for i, row := range split.Test {
		xTest[i] = x[row]
		yTest[i] = y[row]
		rep.Classes[y[row]].Test++
	}
	rep.Test = len(split.Test)

	if err := os.MkdirAll(a.output, 0o755); err != nil {
		return rep, fmt.Errorf("dataset: %w", err)
	}
	xPath := filepath.Join(a.output, tunnel+"_x_test.npy")
	yPath := filepath.Join(a.output, tunnel+"_y_test.npy")
	if err := npy.WriteStack(xPath, xTest); err != nil {
		return rep, err
	}
	if err := npy.WriteLabels(yPath, yTest); err != nil {
		return rep, err
	}
	rep.X, rep.Y = xPath, yPath
	a.metrics.SetDatasetRows(tunnel, "train", len(split.Train))
	a.metrics.SetDatasetRows(tunnel, "test", rep.Test)

	m, err := a.manifest(&rep, x, y)
	if err != nil {
		return rep, err
	}
	rep.Manifest = filepath.Join(a.output, tunnel+"_manifest.json")
	if err := writeManifest(rep.Manifest, m); err != nil {
		return rep, err
	}

	_, rows, cols := xTest.Shape()
	log.Info("saved test set",
		zap.String("x", xPath), zap.String("y", yPath),
		zap.Int("rows", rep.Test), zap.Int("height", rows), zap.Int("width", cols),
		zap.Int("train_rows", len(split.Train)))
	return rep, nil
}

func (a *Assembler) manifest(rep *TunnelReport, x flowpic.Stack, y []int32) (*Manifest, error) {
	n, rows, cols := x.Shape()
	m := &Manifest{
		RunID:       a.runID,
		Created:     time.Now().UTC(),
		Tunnel:      rep.Tunnel,
		TestSize:    a.testSize,
		RandomState: a.seed,
		Shape:       [3]int{rep.Test, rows, cols},
		Total:       n,
		Test:        rep.Test,
		X:           filepath.Base(rep.X),
		Y:           filepath.Base(rep.Y),
	}

	dists := make([]summary.Distribution, len(rep.Classes))
	bins := make([]*summary.Bins, len(rep.Classes))
	for i := range bins {
		bins[i] = summary.NewBins(0, 4096, 16)
	}
	var private []*summary.Private
	if a.epsilon > 0 {
		private = make([]*summary.Private, len(rep.Classes))
		for i := range private {
			p, err := summary.NewPrivate(summary.PrivateOptions{Epsilon: a.epsilon, Lower: 0, Upper: packetBound})
			if err != nil {
				return nil, err
			}
			private[i] = p
		}
	}
	for i, p := range x {
		total := int64(p.Total())
		dists[y[i]].Add(total)
		bins[y[i]].Add(total)
		if private != nil {
			if err := private[y[i]].Add(min(total, packetBound)); err != nil {
				return nil, err
			}
		}
	}

	for i, cr := range rep.Classes {
		if cr.Rows == 0 {
			continue
		}
		cm := ClassManifest{
			Class:       cr.Class,
			Label:       cr.Label,
			Source:      cr.Path,
			Rows:        cr.Rows,
			Test:        cr.Test,
			Packets:     dists[i].Stats(),
			PacketBins:  bins[i].Counts(),
			PacketEdges: bins[i].Edges(),
		}
		if private != nil {
			noisy, err := summary.NoisyCount(int64(cr.Rows), a.epsilon)
			if err != nil {
				return nil, err
			}
			ps, err := private[i].Result()
			if err != nil {
				return nil, err
			}
			cm.NoisyRows = &noisy
			cm.PrivatePacket = &ps
		}
		m.Classes = append(m.Classes, cm)
	}
	return m, nil
}

// Run assembles every configured tunnel type. Failures of one tunnel type
// are logged and recorded; only cancellation stops the run.
func (a *Assembler) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: a.runID}
	for _, tunnel := range a.tunnels {
		rep, err := a.Assemble(ctx, tunnel)
		rep.Err = err
		report.Tunnels = append(report.Tunnels, rep)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			a.log.Error("tunnel type failed", zap.String("tunnel", tunnel), zap.Error(err))
		}
	}
	a.log.Info("all specified test datasets generated", zap.String("run_id", a.runID))
	return report, nil
}
