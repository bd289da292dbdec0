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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glo-fi/flowpic/flowpic"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	w := cfg.Window.Window()
	assert.Equal(t, 60.0, w.Duration)
	assert.Equal(t, 60.0, w.Step)
	assert.Equal(t, 50.0, w.MinSpan)
	assert.Equal(t, 0.2, cfg.Dataset.TestSize)
	assert.EqualValues(t, 42, cfg.Dataset.RandomState)
	assert.Equal(t, []string{"vpn", "tor", "reg"}, cfg.Dataset.VPNTypes)
	assert.Equal(t, flowpic.DefaultHistogram(), cfg.Histogram.Histogram(cfg.Window))
}

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "read config")
	assert.Nil(t, cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "flowpic.yaml", `
window:
  tps: 30
  delta_t: 15
  min_tps: 20
dataset:
  class_names: [chat, voip]
  test_size: 0.3
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30.0, cfg.Window.TPS)
	assert.Equal(t, 15.0, cfg.Window.DeltaT)
	assert.Equal(t, 20.0, cfg.Window.MinTPS)
	assert.Equal(t, 10, cfg.Window.MinSessionPackets, "unset keys keep defaults")
	assert.Equal(t, []string{"chat", "voip"}, cfg.Dataset.ClassNames)
	assert.Equal(t, 0.3, cfg.Dataset.TestSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "flowpic.toml", `
[histogram]
resolution = 32
max_size = 1500
align = "window"

[convert]
workers = 3
exclude = ["other", "misc"]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.Histogram.Resolution)
	assert.Equal(t, 3, cfg.Convert.Workers)
	assert.Equal(t, []string{"other", "misc"}, cfg.Convert.Exclude)

	h := cfg.Histogram.Histogram(cfg.Window)
	assert.Equal(t, 60.0, h.Span, "window alignment spans the whole window")
}

func TestLoad_UnknownExtensionDetected(t *testing.T) {
	cfg, err := Load(writeFile(t, "flowpic.conf", "dataset:\n  random_state: 7\n"))
	require.NoError(t, err)
	assert.EqualValues(t, 7, cfg.Dataset.RandomState)

	cfg, err = Load(writeFile(t, "flowpic.cfg", "[dataset]\nrandom_state = 9\n"))
	require.NoError(t, err)
	assert.EqualValues(t, 9, cfg.Dataset.RandomState)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "zero window", body: "window:\n  tps: 0\n"},
		{name: "negative step", body: "window:\n  delta_t: -5\n"},
		{name: "test size one", body: "dataset:\n  test_size: 1\n"},
		{name: "no classes", body: "dataset:\n  class_names: []\n"},
		{name: "duplicate class", body: "dataset:\n  class_names: [chat, chat]\n"},
		{name: "bad pattern", body: "dataset:\n  pattern: \"{root}/x.npy\"\n"},
		{name: "bad align", body: "histogram:\n  align: session\n"},
		{name: "bad direction", body: "sessions:\n  direction: sideways\n"},
		{name: "negative epsilon", body: "privacy:\n  epsilon: -1\n"},
		{name: "bad log format", body: "log:\n  format: xml\n"},
		{name: "broken yaml", body: "window: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "flowpic.yaml", tt.body))
			assert.Error(t, err)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FLOWPIC_DATASET_OUTPUT", "/tmp/out")
	t.Setenv("FLOWPIC_CLASS_NAMES", "chat, voip ,,video")
	t.Setenv("FLOWPIC_WORKERS", "5")
	t.Setenv("FLOWPIC_TEST_SIZE", "0.25")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.Equal(t, "/tmp/out", cfg.Dataset.Output)
	assert.Equal(t, []string{"chat", "voip", "video"}, cfg.Dataset.ClassNames)
	assert.Equal(t, 5, cfg.Convert.Workers)
	assert.Equal(t, 0.25, cfg.Dataset.TestSize)

	t.Setenv("FLOWPIC_WORKERS", "many")
	assert.Error(t, Default().ApplyEnvOverrides())
}

func TestCheckOutputDir(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, CheckOutputDir(nested))
	assert.NoDirExists(t, filepath.Join(dir, "a"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	file := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, CheckOutputDir(filepath.Join(file, "out")))
}
