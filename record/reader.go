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
	"errors"
	"io"

	"github.com/glo-fi/flowpic/types"
)

// Reader yields raw rows from a session CSV. Rows may have any number of
// fields.
type Reader struct {
	r *csv.Reader
}

func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return &Reader{r: cr}
}

// Read returns the next row. The slice is reused by the following call.
// A row that is not valid CSV returns an error for which IsMalformed is
// true; reading may continue after it.
func (r *Reader) Read() ([]string, error) {
	return r.r.Read()
}

// IsMalformed reports whether err describes a single bad row rather than a
// failure of the underlying stream.
func IsMalformed(err error) bool {
	var pe *csv.ParseError
	return errors.As(err, &pe)
}

// Scan parses every row of r and calls fn with each accepted record. The
// returned tally counts rows, accepted sessions and row-level rejections.
// Scan stops at the first I/O error or the first error returned by fn.
func Scan(r io.Reader, fn func(types.SessionRecord) error) (types.Tally, error) {
	var tally types.Tally
	rr := NewReader(r)
	for {
		row, err := rr.Read()
		if err == io.EOF {
			return tally, nil
		}
		if err != nil {
			if IsMalformed(err) {
				tally.Rows++
				tally.Reject(types.RejectMalformedCSV)
				continue
			}
			return tally, err
		}
		tally.Rows++

		rec, reason := Parse(row)
		if reason != types.Accepted {
			tally.Reject(reason)
			continue
		}
		tally.Sessions++
		if err := fn(rec); err != nil {
			return tally, err
		}
	}
}
