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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glo-fi/flowpic/flowpic"
	"github.com/glo-fi/flowpic/npy"
)

func writeClass(t *testing.T, path string, n int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var stack flowpic.Stack
	for i := 0; i < n; i++ {
		p := flowpic.New(4, 4)
		p.Counts[i%16] = uint16(i + 1)
		require.NoError(t, stack.Add(p))
	}
	require.NoError(t, npy.WriteStack(path, stack))
}

func TestRun_WritesTestSets(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "datasets")
	writeClass(t, filepath.Join(root, "chat", "vpn", "chat_vpn.npy"), 8)
	writeClass(t, filepath.Join(root, "voip", "vpn", "voip_vpn.npy"), 12)

	var stderr bytes.Buffer
	args := []string{"-root", root, "-out", out, "-classes", "chat,voip", "-vpn-types", "vpn,tor", "-test-size", "0.25", "-seed", "3"}
	require.Equal(t, 0, run(context.Background(), args, &stderr), stderr.String())

	x, err := npy.ReadStack(filepath.Join(out, "vpn_x_test.npy"))
	require.NoError(t, err)
	y, err := npy.ReadLabels(filepath.Join(out, "vpn_y_test.npy"))
	require.NoError(t, err)
	assert.Len(t, x, 5)
	assert.Len(t, y, 5)
	assert.FileExists(t, filepath.Join(out, "vpn_manifest.json"))
	assert.NoFileExists(t, filepath.Join(out, "tor_x_test.npy"))
}

func TestRun_Failures(t *testing.T) {
	var stderr bytes.Buffer
	root := t.TempDir()
	assert.Equal(t, 1, run(context.Background(), []string{"-root", root, "-out", filepath.Join(root, "out")}, &stderr), "no data")

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"-root", root, "-out", filepath.Join(blocker, "out")}, &stderr))
	assert.Contains(t, stderr.String(), "not a directory")

	stderr.Reset()
	assert.Equal(t, 1, run(context.Background(), []string{"-test-size", "1.5"}, &stderr))
	assert.Contains(t, stderr.String(), "test_size")
}
