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
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/glo-fi/flowpic/flowpic"
	"github.com/glo-fi/flowpic/npy"
)

// ErrSampleSize is returned by Sample when the array has no more rows than
// requested.
var ErrSampleSize = errors.New("dataset: sample size not smaller than array")

// SamplePath is where Sample writes the reduced copy of path.
func SamplePath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + "_samp.npy"
}

// Sample writes n rows of the array at path, drawn without replacement and
// kept in their original order, to SamplePath(path).
func Sample(path string, n int, seed int64) (string, error) {
	if n <= 0 {
		return "", fmt.Errorf("dataset: sample size must be positive, got %d", n)
	}
	stack, err := npy.ReadStack(path)
	if err != nil {
		return "", err
	}
	if n >= len(stack) {
		return "", fmt.Errorf("%w: %d >= %d", ErrSampleSize, n, len(stack))
	}

	idx := make([]int, n)
	sampleuv.WithoutReplacement(idx, len(stack), rand.NewSource(uint64(seed)))
	sort.Ints(idx)
	out := make(flowpic.Stack, n)
	for i, row := range idx {
		out[i] = stack[row]
	}

	dst := SamplePath(path)
	if err := npy.WriteStack(dst, out); err != nil {
		return "", err
	}
	return dst, nil
}
