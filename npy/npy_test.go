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

package npy

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glo-fi/flowpic/flowpic"
)

func pic(rows, cols int, fill ...uint16) *flowpic.FlowPic {
	p := flowpic.New(rows, cols)
	copy(p.Counts, fill)
	return p
}

func TestStackHeader_FixedSize(t *testing.T) {
	for _, n := range []int{0, 7, 1 << 30} {
		hdr, err := stackHeader(n, 1500, 1500)
		require.NoError(t, err)
		assert.Len(t, hdr, headerSize)
		assert.Equal(t, magic, string(hdr[:6]))
		assert.Equal(t, byte('\n'), hdr[len(hdr)-1])
	}
}

func TestStackWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_vpn.npy")
	w := NewStackWriter(path)
	require.NoError(t, w.Add(pic(2, 3, 1, 2, 3, 4, 5, 6)))
	require.NoError(t, w.Add(pic(2, 3, 65535, 0, 0, 0, 0, 9)))
	assert.Equal(t, 2, w.Len())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "final file appears only on Close")
	require.NoError(t, w.Close())

	stack, err := ReadStack(path)
	require.NoError(t, err)
	n, rows, cols := stack.Shape()
	assert.Equal(t, []int{2, 2, 3}, []int{n, rows, cols})
	assert.Equal(t, []uint16{1, 2, 3, 4, 5, 6}, stack[0].Counts)
	assert.Equal(t, []uint16{65535, 0, 0, 0, 0, 9}, stack[1].Counts)

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestStackWriter_EmptyWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.npy")
	w := NewStackWriter(path)
	require.NoError(t, w.Close())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, WriteStack(path, nil))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestStackWriter_ShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.npy")
	w := NewStackWriter(path)
	require.NoError(t, w.Add(pic(2, 2)))
	assert.ErrorIs(t, w.Add(pic(3, 3)), ErrShape)

	w.Abort()
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestEncodeDecodeStack(t *testing.T) {
	stack := flowpic.Stack{pic(1, 2, 7, 8), pic(1, 2, 9, 10), pic(1, 2, 11, 12)}

	var buf bytes.Buffer
	require.NoError(t, EncodeStack(&buf, stack))
	assert.Equal(t, headerSize+3*2*2, buf.Len())

	got, err := DecodeStack(&buf)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []uint16{11, 12}, got[2].Counts)
}

func TestLabels_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vpn_y_test.npy")
	require.NoError(t, WriteLabels(path, []int32{0, 2, 1, 1}))

	labels, err := ReadLabels(path)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 2, 1, 1}, labels)
}

func TestReadStack_RejectsLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.npy")
	require.NoError(t, WriteLabels(path, []int32{1, 2}))

	_, err := ReadStack(path)
	assert.ErrorIs(t, err, ErrShape)

	_, err = ReadStack(filepath.Join(t.TempDir(), "missing.npy"))
	assert.Error(t, err)
}
