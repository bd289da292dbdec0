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
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sbinet/npyio"

	"github.com/glo-fi/flowpic/flowpic"
)

// ReadStack loads an (N, H, W) uint16 array written by StackWriter or by
// numpy.
func ReadStack(path string) (flowpic.Stack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("npy: %w", err)
	}
	defer f.Close()

	stack, err := DecodeStack(f)
	if err != nil {
		return nil, fmt.Errorf("npy: read %s: %w", path, err)
	}
	return stack, nil
}

// DecodeStack reads one .npy stack from r.
func DecodeStack(r io.Reader) (flowpic.Stack, error) {
	nr, err := npyio.NewReader(r)
	if err != nil {
		return nil, err
	}
	descr := nr.Header.Descr
	if descr.Type != stackDescr {
		return nil, fmt.Errorf("%w: dtype %s, want %s", ErrShape, descr.Type, stackDescr)
	}
	if descr.Fortran || len(descr.Shape) != 3 {
		return nil, fmt.Errorf("%w: shape %v", ErrShape, descr.Shape)
	}
	n, rows, cols := descr.Shape[0], descr.Shape[1], descr.Shape[2]
	if n == 0 {
		return flowpic.Stack{}, nil
	}

	var data []uint16
	if err := nr.Read(&data); err != nil {
		return nil, err
	}
	hw := rows * cols
	if len(data) != n*hw {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), descr.Shape)
	}
	stack := make(flowpic.Stack, n)
	for i := range stack {
		stack[i] = &flowpic.FlowPic{Rows: rows, Cols: cols, Counts: data[i*hw : (i+1)*hw : (i+1)*hw]}
	}
	return stack, nil
}

// WriteLabels writes a 1-D int32 array to path through a temporary file.
func WriteLabels(path string, labels []int32) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("npy: %w", err)
	}
	err = npyio.Write(f, labels)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("npy: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadLabels loads a 1-D int32 array.
func ReadLabels(path string) ([]int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("npy: %w", err)
	}
	defer f.Close()

	nr, err := npyio.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("npy: read %s: %w", path, err)
	}
	if len(nr.Header.Descr.Shape) != 1 {
		return nil, fmt.Errorf("%w: shape %v in %s", ErrShape, nr.Header.Descr.Shape, path)
	}
	var labels []int32
	if err := nr.Read(&labels); err != nil {
		return nil, fmt.Errorf("npy: read %s: %w", path, err)
	}
	return labels, nil
}
