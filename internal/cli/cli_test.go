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

package cli

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glo-fi/flowpic/config"
)

func TestSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowpic.toml")
	require.NoError(t, os.WriteFile(path, []byte("[convert]\nworkers = 3\n"), 0o644))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	var c Common
	c.Register(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-log-level", "debug", "-metrics", "run.prom"}))

	cfg, log, err := c.Setup(func(cfg *config.Config) error {
		cfg.Convert.Root = "elsewhere"
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, log)
	assert.Equal(t, 3, cfg.Convert.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "run.prom", cfg.Metrics.Textfile)
	assert.Equal(t, "elsewhere", cfg.Convert.Root)
}

func TestSetup_Errors(t *testing.T) {
	c := Common{LogLevel: "loud"}
	_, _, err := c.Setup(nil)
	assert.Error(t, err)

	_, _, err = (&Common{}).Setup(func(cfg *config.Config) error {
		cfg.Dataset.TestSize = 2
		return nil
	})
	assert.ErrorContains(t, err, "test_size")

	_, _, err = (&Common{}).Setup(func(*config.Config) error { return errors.New("bad flag") })
	assert.ErrorContains(t, err, "bad flag")
}

func TestUsageAndFail(t *testing.T) {
	var out bytes.Buffer
	fs := flag.NewFlagSet("flowpic-x", flag.ContinueOnError)
	fs.SetOutput(&out)
	fs.Bool("v", false, "verbose")
	Usage(fs, "<file>")
	fs.Usage()
	assert.Contains(t, out.String(), "flowpic-x [options] <file>")
	assert.Contains(t, out.String(), "verbose")

	out.Reset()
	assert.Equal(t, 1, Fail(&out, errors.New("boom")))
	assert.Equal(t, "error: boom\n", out.String())
}
