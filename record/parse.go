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

// Package record decodes and encodes session rows: seven metadata fields, a
// packet count, that many timestamps, then that many packet sizes.
package record

import (
	"math"
	"strconv"
	"strings"

	"github.com/glo-fi/flowpic/types"
)

const (
	lengthField = types.MetaFields
	dataStart   = lengthField + 1
	minFields   = dataStart + 1
)

// Parse decodes one row. A rejected row returns the reason and an empty
// record; rejection is not an error.
func Parse(row []string) (types.SessionRecord, types.Reason) {
	if len(row) < minFields {
		return types.SessionRecord{}, types.RejectShortRow
	}
	length, err := strconv.Atoi(strings.TrimSpace(row[lengthField]))
	if err != nil {
		return types.SessionRecord{}, types.RejectBadNumber
	}
	// The row must hold the timestamps and at least one size after them.
	if length < 0 || dataStart+length > len(row) || minFields+length > len(row) {
		return types.SessionRecord{}, types.RejectLengthBounds
	}

	ts := make([]float64, length)
	for i, field := range row[dataStart : dataStart+length] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return types.SessionRecord{}, types.RejectBadNumber
		}
		ts[i] = v
	}

	tail := row[dataStart+length:]
	sizes := make([]int, len(tail))
	for i, field := range tail {
		v, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return types.SessionRecord{}, types.RejectBadNumber
		}
		sizes[i] = v
	}
	if len(sizes) != len(ts) {
		return types.SessionRecord{}, types.RejectSizeMismatch
	}

	meta := make([]string, lengthField)
	copy(meta, row[:lengthField])
	return types.SessionRecord{Meta: meta, Timestamps: ts, Sizes: sizes}, types.Accepted
}
