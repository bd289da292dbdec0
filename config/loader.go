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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// EnvPrefix starts every environment override.
const EnvPrefix = "FLOWPIC_"

// Load reads path on top of the defaults, applies environment overrides and
// validates the result. An empty path yields the defaults; a named file
// that cannot be read is an error.
func Load(path string) (*Config, error) {
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// loadConfigFromFile decodes a config file based on its extension.
func loadConfigFromFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			cfg = Default()
			if yerr := yaml.Unmarshal(data, cfg); yerr != nil {
				return nil, fmt.Errorf("parse config: not TOML (%v) or YAML (%v)", err, yerr)
			}
		}
	}
	return cfg, nil
}

// ApplyEnvOverrides replaces settings with FLOWPIC_* environment variables
// where they are set.
func (c *Config) ApplyEnvOverrides() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	list := func(name string, dst *[]string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = SplitList(v)
		}
	}

	str("CONVERT_ROOT", &c.Convert.Root)
	list("CONVERT_EXCLUDE", &c.Convert.Exclude)
	str("DATASET_ROOT", &c.Dataset.Root)
	str("DATASET_OUTPUT", &c.Dataset.Output)
	list("CLASS_NAMES", &c.Dataset.ClassNames)
	list("VPN_TYPES", &c.Dataset.VPNTypes)
	str("SESSIONS_DIRECTION", &c.Sessions.Direction)
	str("PRIVACY_KEY_FILE", &c.Privacy.KeyFile)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("METRICS_TEXTFILE", &c.Metrics.Textfile)

	if v := os.Getenv(EnvPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sWORKERS: %w", EnvPrefix, err)
		}
		c.Convert.Workers = n
	}
	if v := os.Getenv(EnvPrefix + "RANDOM_STATE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%sRANDOM_STATE: %w", EnvPrefix, err)
		}
		c.Dataset.RandomState = n
	}
	if v := os.Getenv(EnvPrefix + "TEST_SIZE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%sTEST_SIZE: %w", EnvPrefix, err)
		}
		c.Dataset.TestSize = f
	}
	return nil
}

// SplitList splits a comma separated list, dropping empty items.
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// CheckOutputDir fails unless dir, or its nearest existing parent, is a
// writable directory. Nothing is left behind.
func CheckOutputDir(dir string) error {
	p := filepath.Clean(dir)
	for {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				return fmt.Errorf("output %s: %s is not a directory", dir, p)
			}
			f, err := os.CreateTemp(p, ".flowpic-check-*")
			if err != nil {
				return fmt.Errorf("output %s: not writable: %w", dir, err)
			}
			name := f.Name()
			f.Close()
			return os.Remove(name)
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("output %s: %w", dir, err)
		}
		parent := filepath.Dir(p)
		if parent == p {
			return fmt.Errorf("output %s: no existing parent directory", dir)
		}
		p = parent
	}
}
