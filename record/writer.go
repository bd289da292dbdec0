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

package record

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/glo-fi/flowpic/types"
)

// Encode lays out rec as a session row.
func Encode(rec types.SessionRecord) ([]string, error) {
	if len(rec.Meta) > types.MetaFields {
		return nil, fmt.Errorf("record has %d metadata fields, want at most %d", len(rec.Meta), types.MetaFields)
	}
	if len(rec.Timestamps) != len(rec.Sizes) {
		return nil, fmt.Errorf("record has %d timestamps but %d sizes", len(rec.Timestamps), len(rec.Sizes))
	}

	row := make([]string, dataStart, dataStart+2*len(rec.Timestamps))
	copy(row, rec.Meta)
	row[lengthField] = strconv.Itoa(len(rec.Timestamps))
	for _, ts := range rec.Timestamps {
		row = append(row, strconv.FormatFloat(ts, 'f', -1, 64))
	}
	for _, size := range rec.Sizes {
		row = append(row, strconv.Itoa(size))
	}
	return row, nil
}

// Writer emits session rows as CSV.
type Writer struct {
	w    *csv.Writer
	rows int
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

func (w *Writer) Write(rec types.SessionRecord) error {
	row, err := Encode(rec)
	if err != nil {
		return err
	}
	if err := w.w.Write(row); err != nil {
		return err
	}
	w.rows++
	return nil
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int {
	return w.rows
}

func (w *Writer) Flush() error {
	w.w.Flush()
	return w.w.Error()
}
