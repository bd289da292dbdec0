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
	"math"
	"sort"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
)

// ErrSplitTooSmall is returned when a split would leave the train or the
// test side empty.
var ErrSplitTooSmall = errors.New("dataset: too few rows to split")

// Split holds row indices of the two sides of a split.
type Split struct {
	Train []int
	Test  []int
}

// Apportion spreads nTest test rows over the classes in proportion to
// their sizes. Leftover rows go to the largest remainders; ties prefer the
// larger class, then the lower label.
func Apportion(counts map[int32]int, n, nTest int) map[int32]int {
	type share struct {
		label int32
		count int
		rem   int
	}
	shares := make([]share, 0, len(counts))
	quotas := make(map[int32]int, len(counts))
	if n <= 0 || nTest <= 0 {
		return quotas
	}
	given := 0
	for label, c := range counts {
		num := nTest * c
		quotas[label] = num / n
		given += num / n
		shares = append(shares, share{label: label, count: c, rem: num % n})
	}
	sort.Slice(shares, func(i, j int) bool {
		a, b := shares[i], shares[j]
		if a.rem != b.rem {
			return a.rem > b.rem
		}
		if a.count != b.count {
			return a.count > b.count
		}
		return a.label < b.label
	})
	for i := 0; given < nTest; i = (i + 1) % len(shares) {
		s := shares[i]
		if quotas[s.label] < s.count {
			quotas[s.label]++
			given++
		}
	}
	return quotas
}

// StratifiedSplit divides the rows labelled by labels into train and test
// sides. The test side holds ceil(testSize*n) rows and every class is
// represented in proportion to its size. The result depends only on labels,
// testSize and seed.
func StratifiedSplit(labels []int32, testSize float64, seed int64) (Split, error) {
	n := len(labels)
	if !(testSize > 0 && testSize < 1) {
		return Split{}, fmt.Errorf("dataset: test size must be in (0, 1), got %v", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest == 0 || nTest >= n {
		return Split{}, fmt.Errorf("%w: %d rows with test size %v", ErrSplitTooSmall, n, testSize)
	}

	members := make(map[int32][]int)
	counts := make(map[int32]int)
	for i, l := range labels {
		members[l] = append(members[l], i)
		counts[l]++
	}
	order := make([]int32, 0, len(members))
	for l := range members {
		order = append(order, l)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	quotas := Apportion(counts, n, nTest)
	src := rand.NewSource(uint64(seed))
	split := Split{Train: make([]int, 0, n-nTest), Test: make([]int, 0, nTest)}
	for _, l := range order {
		rows := members[l]
		q := quotas[l]
		picked := make([]bool, len(rows))
		if q > 0 {
			idx := make([]int, q)
			sampleuv.WithoutReplacement(idx, len(rows), src)
			for _, i := range idx {
				picked[i] = true
			}
		}
		for i, row := range rows {
			if picked[i] {
				split.Test = append(split.Test, row)
			} else {
				split.Train = append(split.Train, row)
			}
		}
	}

	rng := rand.New(src)
	rng.Shuffle(len(split.Train), func(i, j int) { split.Train[i], split.Train[j] = split.Train[j], split.Train[i] })
	rng.Shuffle(len(split.Test), func(i, j int) { split.Test[i], split.Test[j] = split.Test[j], split.Test[i] })
	return split, nil
}
