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

// Package npy persists FlowPic stacks and label vectors as NumPy .npy v1.0
// files.
package npy

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/glo-fi/flowpic/flowpic"
)

// ErrShape is returned when an array does not have the expected layout.
var ErrShape = errors.New("npy: unexpected array shape")

const (
	magic      = "\x93NUMPY"
	headerSize = 128 // preamble + dict + padding
	stackDescr = "<u2"
)

// stackHeader renders a fixed-size v1.0 header for an (n, rows, cols)
// little-endian uint16 array.
func stackHeader(n, rows, cols int) ([]byte, error) {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': (%d, %d, %d), }", stackDescr, n, rows, cols)
	pad := headerSize - len(magic) - 4 - len(dict) - 1
	if pad < 0 {
		return nil, fmt.Errorf("npy: header for shape (%d, %d, %d) does not fit", n, rows, cols)
	}
	buf := make([]byte, 0, headerSize)
	buf = append(buf, magic...)
	buf = append(buf, 1, 0)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(headerSize-len(magic)-4))
	buf = append(buf, dict...)
	buf = append(buf, strings.Repeat(" ", pad)...)
	return append(buf, '\n'), nil
}

// StackWriter streams FlowPics into an (N, H, W) uint16 array. The shape is
// taken from the first FlowPic. Data goes to a temporary file that Close
// renames into place; a writer that received no FlowPics leaves nothing
// behind.
type StackWriter struct {
	path string
	tmp  string
	f    *os.File
	w    *bufio.Writer
	rows int
	cols int
	n    int
	buf  []byte
}

// NewStackWriter prepares a writer for path. No file is created until the
// first Add.
func NewStackWriter(path string) *StackWriter {
	return &StackWriter{path: path, tmp: path + ".tmp"}
}

// Add implements flowpic.Sink.
func (s *StackWriter) Add(p *flowpic.FlowPic) error {
	if s.f == nil {
		if err := s.open(p.Rows, p.Cols); err != nil {
			return err
		}
	}
	if p.Rows != s.rows || p.Cols != s.cols {
		return fmt.Errorf("%w: %dx%d picture in a %dx%d stack", ErrShape, p.Rows, p.Cols, s.rows, s.cols)
	}
	for i, c := range p.Counts {
		binary.LittleEndian.PutUint16(s.buf[2*i:], c)
	}
	if _, err := s.w.Write(s.buf); err != nil {
		return fmt.Errorf("npy: write %s: %w", s.tmp, err)
	}
	s.n++
	return nil
}

func (s *StackWriter) open(rows, cols int) error {
	hdr, err := stackHeader(0, rows, cols)
	if err != nil {
		return err
	}
	f, err := os.Create(s.tmp)
	if err != nil {
		return fmt.Errorf("npy: %w", err)
	}
	s.f = f
	s.w = bufio.NewWriterSize(f, 1<<20)
	s.rows, s.cols = rows, cols
	s.buf = make([]byte, 2*rows*cols)
	if _, err := s.w.Write(hdr); err != nil {
		return fmt.Errorf("npy: write %s: %w", s.tmp, err)
	}
	return nil
}

// Len is the number of FlowPics written so far.
func (s *StackWriter) Len() int {
	return s.n
}

// Path is the final location of the array.
func (s *StackWriter) Path() string {
	return s.path
}

// Close finalises the header and moves the array to its final path.
func (s *StackWriter) Close() error {
	if s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	err := s.finish(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("npy: finish %s: %w", s.path, err)
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		os.Remove(s.tmp)
		return fmt.Errorf("npy: %w", err)
	}
	return nil
}

func (s *StackWriter) finish(f *os.File) error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	hdr, err := stackHeader(s.n, s.rows, s.cols)
	if err != nil {
		return err
	}
	if _, err := f.WriteAt(hdr, 0); err != nil {
		return err
	}
	return f.Sync()
}

// Abort discards everything written so far.
func (s *StackWriter) Abort() {
	if s.f == nil {
		return
	}
	s.f.Close()
	s.f = nil
	os.Remove(s.tmp)
}

// WriteStack writes a complete stack to path. An empty stack writes
// nothing.
func WriteStack(path string, stack flowpic.Stack) error {
	w := NewStackWriter(path)
	for _, p := range stack {
		if err := w.Add(p); err != nil {
			w.Abort()
			return err
		}
	}
	return w.Close()
}

// EncodeStack writes stack to w as a single .npy array.
func EncodeStack(w io.Writer, stack flowpic.Stack) error {
	n, rows, cols := stack.Shape()
	hdr, err := stackHeader(n, rows, cols)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if _, err := bw.Write(hdr); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, flatten(stack)); err != nil {
		return err
	}
	return bw.Flush()
}

func flatten(stack flowpic.Stack) []uint16 {
	if len(stack) == 0 {
		return nil
	}
	hw := stack[0].Rows * stack[0].Cols
	out := make([]uint16, 0, len(stack)*hw)
	for _, p := range stack {
		out = append(out, p.Counts...)
	}
	return out
}
