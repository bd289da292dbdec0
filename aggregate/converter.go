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

// Package aggregate turns directories of session CSV files into per-class
// FlowPic arrays.
package aggregate

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/glo-fi/flowpic/config"
	"github.com/glo-fi/flowpic/flowpic"
	"github.com/glo-fi/flowpic/metrics"
	"github.com/glo-fi/flowpic/record"
	"github.com/glo-fi/flowpic/segment"
	"github.com/glo-fi/flowpic/types"
)

// Converter runs the parse, segment and build pipeline.
type Converter struct {
	window         segment.Window
	builder        flowpic.Builder
	align          flowpic.Align
	workers        int
	reportInterval int
	exclude        []string
	preview        bool
	previewSize    int
	log            *zap.Logger
	metrics        *metrics.Metrics
}

// New builds a Converter from cfg. A nil builder uses the configured
// histogram; a nil logger discards logs.
func New(cfg *config.Config, builder flowpic.Builder, log *zap.Logger, m *metrics.Metrics) (*Converter, error) {
	align, err := flowpic.ParseAlign(cfg.Histogram.Align)
	if err != nil {
		return nil, err
	}
	w := cfg.Window.Window()
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if builder == nil {
		h := cfg.Histogram.Histogram(cfg.Window)
		if err := h.Validate(); err != nil {
			return nil, err
		}
		builder = h
	}
	if log == nil {
		log = zap.NewNop()
	}
	workers := cfg.Convert.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Converter{
		window:         w,
		builder:        builder,
		align:          align,
		workers:        workers,
		reportInterval: cfg.Convert.ReportInterval,
		exclude:        cfg.Convert.Exclude,
		preview:        cfg.Histogram.Preview,
		previewSize:    cfg.Histogram.PreviewSize,
		log:            log,
		metrics:        m,
	}, nil
}

// ConvertFile feeds every valid segment of the CSV file at path through the
// builder and hands the resulting FlowPics to sink once the whole file has
// been read. Rejected rows and windows are counted, never fatal; a row whose
// window fails to build is dropped whole. Read and sink errors stop the file
// and are returned in the report, and a file that fails to read sends
// nothing to sink.
func (c *Converter) ConvertFile(ctx context.Context, path string, sink flowpic.Sink) (rep FileReport) {
	start := time.Now()
	rep.Path = path
	defer func() {
		rep.Took = time.Since(start)
	}()

	log := c.log.With(zap.String("file", filepath.Base(path)))
	log.Debug("processing file")

	f, err := os.Open(path)
	if err != nil {
		rep.Err = err
		c.metrics.ObserveFile(err, time.Since(start))
		return rep
	}
	defer f.Close()

	var (
		segs types.Tally
		pics flowpic.Stack
	)
	tally, err := record.Scan(f, func(rec types.SessionRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var row []*flowpic.FlowPic
		s := c.window.Scan(rec)
		for s.Next() {
			seg := s.Segment()
			pic, err := c.builder.Build(flowpic.Offsets(seg, c.align), seg.Sizes)
			if err != nil {
				log.Debug("row skipped", zap.Int("segment", seg.Index), zap.Error(err))
				segs.Reject(types.RejectBuildFailed)
				return nil
			}
			row = append(row, pic)
		}
		segs.Merge(s.Tally())
		pics = append(pics, row...)
		if n := len(pics); c.reportInterval > 0 && len(row) > 0 && n/c.reportInterval > (n-len(row))/c.reportInterval {
			log.Info("processed segments", zap.Int("flowpics", n))
		}
		return nil
	})
	if err == nil {
		for _, pic := range pics {
			if err = sink.Add(pic); err != nil {
				break
			}
			segs.FlowPics++
		}
	}
	tally.Merge(segs)
	rep.Tally = tally
	rep.Err = err

	c.metrics.ObserveTally(tally)
	c.metrics.ObserveFile(err, time.Since(start))
	if err != nil {
		log.Warn("file aborted", zap.Error(err), zap.Int("flowpics", tally.FlowPics))
		return rep
	}
	log.Info("finished file",
		zap.Int("flowpics", tally.FlowPics),
		zap.Int("skipped", tally.Skipped()),
		zap.Stringer("tally", tally))
	return rep
}
