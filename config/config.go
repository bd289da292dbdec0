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

// Package config holds the settings shared by the flowpic tools.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/glo-fi/flowpic/flowpic"
	"github.com/glo-fi/flowpic/segment"
	"github.com/glo-fi/flowpic/types"
)

// Config is the root configuration.
type Config struct {
	Window    WindowConfig    `yaml:"window" toml:"window"`
	Histogram HistogramConfig `yaml:"histogram" toml:"histogram"`
	Convert   ConvertConfig   `yaml:"convert" toml:"convert"`
	Dataset   DatasetConfig   `yaml:"dataset" toml:"dataset"`
	Sessions  SessionsConfig  `yaml:"sessions" toml:"sessions"`
	Privacy   PrivacyConfig   `yaml:"privacy" toml:"privacy"`
	Log       LogConfig       `yaml:"log" toml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
}

// WindowConfig controls how sessions are cut into segments. Times are in
// seconds.
type WindowConfig struct {
	TPS               float64 `yaml:"tps" toml:"tps"`
	DeltaT            float64 `yaml:"delta_t" toml:"delta_t"`
	MinTPS            float64 `yaml:"min_tps" toml:"min_tps"`
	MinSessionPackets int     `yaml:"min_session_packets" toml:"min_session_packets"`
	MinSegmentPackets int     `yaml:"min_segment_packets" toml:"min_segment_packets"`
}

// Window converts the section into segmentation parameters.
func (c WindowConfig) Window() segment.Window {
	return segment.Window{
		Duration:          c.TPS,
		Step:              c.DeltaT,
		MinSpan:           c.MinTPS,
		MinSessionPackets: c.MinSessionPackets,
		MinSegmentPackets: c.MinSegmentPackets,
	}
}

// HistogramConfig controls FlowPic construction.
type HistogramConfig struct {
	Resolution  int     `yaml:"resolution" toml:"resolution"`
	MaxSize     int     `yaml:"max_size" toml:"max_size"`
	Span        float64 `yaml:"span" toml:"span"`
	Align       string  `yaml:"align" toml:"align"`
	Preview     bool    `yaml:"preview" toml:"preview"`
	PreviewSize int     `yaml:"preview_size" toml:"preview_size"`
}

// Histogram converts the section into a builder. With window alignment and
// no explicit span the time axis covers the whole window.
func (c HistogramConfig) Histogram(w WindowConfig) flowpic.Histogram {
	h := flowpic.Histogram{Resolution: c.Resolution, MaxSize: c.MaxSize, Span: c.Span}
	if a, _ := flowpic.ParseAlign(c.Align); a == flowpic.AlignWindow && h.Span == 0 {
		h.Span = w.TPS
	}
	return h
}

// ConvertConfig drives CSV to FlowPic conversion.
type ConvertConfig struct {
	Root           string   `yaml:"root" toml:"root"`
	Exclude        []string `yaml:"exclude" toml:"exclude"`
	Workers        int      `yaml:"workers" toml:"workers"`
	ReportInterval int      `yaml:"report_interval" toml:"report_interval"`
}

// DatasetConfig drives assembly of the per-tunnel test sets.
type DatasetConfig struct {
	Root        string   `yaml:"root" toml:"root"`
	Output      string   `yaml:"output" toml:"output"`
	Pattern     string   `yaml:"pattern" toml:"pattern"`
	ClassNames  []string `yaml:"class_names" toml:"class_names"`
	VPNTypes    []string `yaml:"vpn_types" toml:"vpn_types"`
	TestSize    float64  `yaml:"test_size" toml:"test_size"`
	RandomState int64    `yaml:"random_state" toml:"random_state"`
}

// SessionsConfig drives pcap to session CSV extraction.
type SessionsConfig struct {
	IdleTimeout    float64 `yaml:"idle_timeout" toml:"idle_timeout"`
	Direction      string  `yaml:"direction" toml:"direction"`
	ReportInterval int     `yaml:"report_interval" toml:"report_interval"`
}

// PrivacyConfig controls IP anonymisation and noisy manifest counts.
type PrivacyConfig struct {
	AnonymizeIPs bool    `yaml:"anonymize_ips" toml:"anonymize_ips"`
	KeyFile      string  `yaml:"key_file" toml:"key_file"`
	Epsilon      float64 `yaml:"epsilon" toml:"epsilon"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig names the textfile the run metrics are written to. Empty
// disables the dump.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" toml:"textfile"`
}

// Default returns the stock configuration.
func Default() *Config {
	w := segment.DefaultWindow()
	h := flowpic.DefaultHistogram()
	return &Config{
		Window: WindowConfig{
			TPS:               w.Duration,
			DeltaT:            w.Step,
			MinTPS:            w.MinSpan,
			MinSessionPackets: w.MinSessionPackets,
			MinSegmentPackets: w.MinSegmentPackets,
		},
		Histogram: HistogramConfig{
			Resolution:  h.Resolution,
			MaxSize:     h.MaxSize,
			Align:       string(flowpic.AlignPacket),
			PreviewSize: 150,
		},
		Convert: ConvertConfig{
			Root:           "classes_csvs",
			Exclude:        []string{"other"},
			ReportInterval: 100,
		},
		Dataset: DatasetConfig{
			Root:        "classes_csvs",
			Output:      "datasets",
			Pattern:     "{root}/{class}/{tunnel}/{class}_{tunnel}.npy",
			ClassNames:  []string{"browsing", "chat", "file_transfer", "video", "voip"},
			VPNTypes:    []string{"vpn", "tor", "reg"},
			TestSize:    0.2,
			RandomState: 42,
		},
		Sessions: SessionsConfig{
			IdleTimeout:    600,
			Direction:      string(types.KeepBoth),
			ReportInterval: 500000,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Window.Window().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("window: %w", err))
	}
	if err := c.Histogram.Histogram(c.Window).Validate(); err != nil {
		errs = append(errs, fmt.Errorf("histogram: %w", err))
	}
	if _, err := flowpic.ParseAlign(c.Histogram.Align); err != nil {
		errs = append(errs, fmt.Errorf("histogram: %w", err))
	}
	if c.Histogram.Preview && c.Histogram.PreviewSize <= 0 {
		errs = append(errs, errors.New("histogram: preview_size must be positive"))
	}
	if c.Convert.Workers < 0 {
		errs = append(errs, fmt.Errorf("convert: workers must not be negative, got %d", c.Convert.Workers))
	}
	if c.Convert.ReportInterval < 0 {
		errs = append(errs, errors.New("convert: report_interval must not be negative"))
	}
	if !(c.Dataset.TestSize > 0 && c.Dataset.TestSize < 1) {
		errs = append(errs, fmt.Errorf("dataset: test_size must be in (0, 1), got %v", c.Dataset.TestSize))
	}
	if len(c.Dataset.ClassNames) == 0 {
		errs = append(errs, errors.New("dataset: class_names is empty"))
	}
	if dup := duplicate(c.Dataset.ClassNames); dup != "" {
		errs = append(errs, fmt.Errorf("dataset: class %q listed twice", dup))
	}
	if len(c.Dataset.VPNTypes) == 0 {
		errs = append(errs, errors.New("dataset: vpn_types is empty"))
	}
	for _, key := range []string{"{class}", "{tunnel}"} {
		if !strings.Contains(c.Dataset.Pattern, key) {
			errs = append(errs, fmt.Errorf("dataset: pattern %q lacks %s", c.Dataset.Pattern, key))
		}
	}
	if !(c.Sessions.IdleTimeout > 0) {
		errs = append(errs, fmt.Errorf("sessions: idle_timeout must be positive, got %v", c.Sessions.IdleTimeout))
	}
	if _, err := types.ParseDirectionFilter(c.Sessions.Direction); err != nil {
		errs = append(errs, fmt.Errorf("sessions: %w", err))
	}
	if c.Privacy.Epsilon < 0 || math.IsInf(c.Privacy.Epsilon, 0) || math.IsNaN(c.Privacy.Epsilon) {
		errs = append(errs, fmt.Errorf("privacy: epsilon must be a non-negative number, got %v", c.Privacy.Epsilon))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log: unknown format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func duplicate(names []string) string {
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if seen[n] {
			return n
		}
		seen[n] = true
	}
	return ""
}
