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

package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/glo-fi/flowpic/summary"
)

// Manifest describes one assembled test set.
type Manifest struct {
	RunID       string          `json:"run_id"`
	Created     time.Time       `json:"created"`
	Tunnel      string          `json:"tunnel"`
	TestSize    float64         `json:"test_size"`
	RandomState int64           `json:"random_state"`
	Shape       [3]int          `json:"shape"`
	Total       int             `json:"total_rows"`
	Test        int             `json:"test_rows"`
	X           string          `json:"x_test"`
	Y           string          `json:"y_test"`
	Classes     []ClassManifest `json:"classes"`
}

// ClassManifest summarises one class of a test set. Private fields are
// only filled when a privacy budget is configured.
type ClassManifest struct {
	Class         string                `json:"class"`
	Label         int32                 `json:"label"`
	Source        string                `json:"source"`
	Rows          int                   `json:"rows"`
	Test          int                   `json:"test_rows"`
	Packets       summary.Stats         `json:"packets_per_flowpic"`
	PacketBins    []int64               `json:"packet_bins"`
	PacketEdges   []int64               `json:"packet_bin_edges"`
	NoisyRows     *int64                `json:"noisy_rows,omitempty"`
	PrivatePacket *summary.PrivateStats `json:"private_packets_per_flowpic,omitempty"`
}

func writeManifest(path string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("dataset: marshal manifest: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("dataset: write manifest: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("dataset: write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by the assembler.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("dataset: parse %s: %w", path, err)
	}
	return &m, nil
}
