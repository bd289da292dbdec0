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
	"context"
	"errors"
	"path/filepath"
	"time"

	"github.com/google/gopacket"
	"go.uber.org/zap"

	"github.com/glo-fi/flowpic/config"
	"github.com/glo-fi/flowpic/metrics"
	"github.com/glo-fi/flowpic/packet"
	"github.com/glo-fi/flowpic/types"
)

// CaptureReport is the outcome of one capture file.
type CaptureReport struct {
	Path    string
	Stats   Stats
	Skipped int64 // packets the parser rejected
	Took    time.Duration
	Err     error
}

// Extractor turns capture files into session records.
type Extractor struct {
	parser         packet.Parser
	opts           Options
	reportInterval int64
	log            *zap.Logger
	metrics        *metrics.Metrics
}

// NewExtractor reads the sessions section of cfg. anon may be nil.
func NewExtractor(cfg *config.Config, anon Anonymizer, log *zap.Logger, m *metrics.Metrics) (*Extractor, error) {
	dir, err := types.ParseDirectionFilter(cfg.Sessions.Direction)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		parser: &packet.StandardParser{},
		opts: Options{
			IdleTimeout: time.Duration(cfg.Sessions.IdleTimeout * float64(time.Second)),
			Direction:   dir,
			Anonymizer:  anon,
		},
		reportInterval: int64(cfg.Sessions.ReportInterval),
		log:            log,
		metrics:        m,
	}, nil
}

// ExtractFile emits every session of the capture at path. Sessions still
// open at the end of the capture are flushed.
func (e *Extractor) ExtractFile(ctx context.Context, path string, emit Emitter) (rep CaptureReport) {
	rep.Path = path
	start := time.Now()
	defer func() {
		rep.Took = time.Since(start)
		e.metrics.ObserveFile(rep.Err, rep.Took)
		e.metrics.ObservePackets(rep.Stats.Packets, rep.Skipped)
		e.metrics.ObserveSessions("closed", rep.Stats.Closed)
		e.metrics.ObserveSessions("idle", rep.Stats.Idle)
		e.metrics.ObserveSessions("flushed", rep.Stats.Flushed)
		e.metrics.ObserveSessions("dropped", rep.Stats.Dropped)
	}()

	log := e.log.With(zap.String("file", path))
	f, err := packet.Open(path)
	if err != nil {
		rep.Err = err
		log.Error("cannot open capture", zap.Error(err))
		return rep
	}
	defer f.Close()

	opts := e.opts
	opts.Capture = filepath.Base(path)
	tracker := NewTracker(opts, emit, log)
	batch := time.Now()

	err = f.Each(ctx, func(raw gopacket.Packet) error {
		pkt, err := e.parser.Parse(raw)
		if err != nil {
			rep.Skipped++
			if !errors.Is(err, packet.ErrUnsupported) {
				log.Debug("packet skipped", zap.Error(err))
			}
			return nil
		}
		if err := tracker.Add(pkt); err != nil {
			return err
		}
		if n := tracker.Stats().Packets; e.reportInterval > 0 && n%e.reportInterval == 0 {
			removed, err := tracker.Sweep(pkt.Timestamp)
			if err != nil {
				return err
			}
			log.Info("currently processing packet",
				zap.Int64("packet", n), zap.Int("active", tracker.Active()),
				zap.Int("removed", removed), zap.Duration("took", time.Since(batch)))
			batch = time.Now()
		}
		return nil
	})
	if err == nil {
		err = tracker.Flush()
	}
	rep.Stats = tracker.Stats()
	rep.Err = err
	if err != nil {
		log.Error("capture failed", zap.Error(err))
		return rep
	}
	log.Info("capture done",
		zap.Int64("packets", rep.Stats.Packets), zap.Int64("skipped", rep.Skipped),
		zap.Int("sessions", rep.Stats.Emitted))
	return rep
}
