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

// Package metrics counts what a flowpic run produced and dropped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/glo-fi/flowpic/types"
)

// Metrics holds the collectors of one run. A nil *Metrics discards
// everything.
type Metrics struct {
	Rows         *prometheus.CounterVec
	Segments     *prometheus.CounterVec
	Pictures     *prometheus.CounterVec
	Files        *prometheus.CounterVec
	DatasetRows  *prometheus.GaugeVec
	FileDuration prometheus.Histogram
	Packets      *prometheus.CounterVec
	Sessions     *prometheus.CounterVec
	registry     *prometheus.Registry
}

// New creates the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		Rows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpic_rows_total",
				Help: "CSV rows read, by outcome",
			},
			[]string{"outcome"},
		),
		Segments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpic_segments_total",
				Help: "Session windows examined, by outcome",
			},
			[]string{"outcome"},
		),
		Pictures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpic_pictures_total",
				Help: "FlowPics exported, by class and tunnel type",
			},
			[]string{"class", "tunnel"},
		),
		Files: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpic_files_total",
				Help: "Input files processed, by status",
			},
			[]string{"status"},
		),
		DatasetRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flowpic_dataset_rows",
				Help: "Rows in an assembled dataset split",
			},
			[]string{"tunnel", "split"},
		),
		FileDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "flowpic_file_duration_seconds",
				Help:    "Time spent converting one input file",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
			},
		),
		Packets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpic_packets_total",
				Help: "Captured packets read, by status",
			},
			[]string{"status"},
		),
		Sessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flowpic_sessions_total",
				Help: "Sessions extracted from captures, by how they ended",
			},
			[]string{"outcome"},
		),
		registry: registry,
	}
	registry.MustRegister(m.Rows, m.Segments, m.Pictures, m.Files, m.DatasetRows, m.FileDuration,
		m.Packets, m.Sessions)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveTally records the outcomes of one converted file.
func (m *Metrics) ObserveTally(t types.Tally) {
	if m == nil {
		return
	}
	dropped := t.Rejected(types.RejectShortSession) + t.Rejected(types.RejectBuildFailed)
	m.Rows.WithLabelValues(types.Accepted.String()).Add(float64(t.Sessions - dropped))
	m.Segments.WithLabelValues(types.Accepted.String()).Add(float64(t.Segments))
	for _, r := range types.Reasons() {
		n := t.Rejected(r)
		if n == 0 {
			continue
		}
		if r.RowLevel() || r.DropsSession() {
			m.Rows.WithLabelValues(r.String()).Add(float64(n))
		} else {
			m.Segments.WithLabelValues(r.String()).Add(float64(n))
		}
	}
}

// ObserveFile records one processed file and how long it took.
func (m *Metrics) ObserveFile(err error, took time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Files.WithLabelValues(status).Inc()
	m.FileDuration.Observe(took.Seconds())
}

// AddPictures counts FlowPics exported for a class directory.
func (m *Metrics) AddPictures(class, tunnel string, n int) {
	if m == nil {
		return
	}
	m.Pictures.WithLabelValues(class, tunnel).Add(float64(n))
}

// SetDatasetRows records the size of an assembled split.
func (m *Metrics) SetDatasetRows(tunnel, split string, n int) {
	if m == nil {
		return
	}
	m.DatasetRows.WithLabelValues(tunnel, split).Set(float64(n))
}

// ObservePackets counts parsed and skipped capture packets.
func (m *Metrics) ObservePackets(parsed, skipped int64) {
	if m == nil {
		return
	}
	m.Packets.WithLabelValues("parsed").Add(float64(parsed))
	m.Packets.WithLabelValues("skipped").Add(float64(skipped))
}

// ObserveSessions counts sessions that ended with outcome.
func (m *Metrics) ObserveSessions(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.Sessions.WithLabelValues(outcome).Add(float64(n))
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}
