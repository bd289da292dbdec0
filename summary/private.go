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

package summary

import (
	"errors"
	"fmt"

	"github.com/google/differential-privacy/go/v2/dpagg"
)

// PrivateOptions bounds the contribution of each sample to a Private
// feature. Epsilon is split evenly between count, mean and deviation.
type PrivateOptions struct {
	Epsilon float64
	Lower   float64
	Upper   float64
}

// Private is a differentially private Distribution. Results can be read
// once the samples are in; further samples are rejected.
type Private struct {
	count    *dpagg.Count
	mean     *dpagg.BoundedMean
	standdev *dpagg.BoundedStandardDeviation
	epsilon  float64
	result   *PrivateStats
}

// PrivateStats is the noisy summary of a Private feature.
type PrivateStats struct {
	Epsilon float64 `json:"epsilon"`
	Count   int64   `json:"count"`
	Mean    float64 `json:"mean"`
	StdDev  float64 `json:"stddev"`
}

func NewPrivate(opts PrivateOptions) (*Private, error) {
	if !(opts.Epsilon > 0) {
		return nil, fmt.Errorf("summary: epsilon must be positive, got %v", opts.Epsilon)
	}
	eps := opts.Epsilon / 3
	count, err := dpagg.NewCount(&dpagg.CountOptions{
		Epsilon:                  eps,
		MaxPartitionsContributed: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	mean, err := dpagg.NewBoundedMean(&dpagg.BoundedMeanOptions{
		Epsilon:                      eps,
		MaxPartitionsContributed:     1,
		MaxContributionsPerPartition: 1,
		Lower:                        opts.Lower,
		Upper:                        opts.Upper,
	})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	standdev, err := dpagg.NewBoundedStandardDeviation(&dpagg.BoundedStandardDeviationOptions{
		Epsilon:                      eps,
		MaxPartitionsContributed:     1,
		MaxContributionsPerPartition: 1,
		Lower:                        opts.Lower,
		Upper:                        opts.Upper,
	})
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	return &Private{count: count, mean: mean, standdev: standdev, epsilon: opts.Epsilon}, nil
}

var errFinished = errors.New("summary: private feature already released")

// Add records one sample. It fails after Result has been called.
func (f *Private) Add(val int64) error {
	if f.result != nil {
		return errFinished
	}
	if err := f.count.Increment(); err != nil {
		return err
	}
	if err := f.mean.Add(float64(val)); err != nil {
		return err
	}
	return f.standdev.Add(float64(val))
}

// Result releases the noisy statistics. Later calls return the same values.
func (f *Private) Result() (PrivateStats, error) {
	if f.result != nil {
		return *f.result, nil
	}
	n, err := f.count.Result()
	if err != nil {
		return PrivateStats{}, fmt.Errorf("summary: count: %w", err)
	}
	mean, err := f.mean.Result()
	if err != nil {
		return PrivateStats{}, fmt.Errorf("summary: mean: %w", err)
	}
	sd, err := f.standdev.Result()
	if err != nil {
		return PrivateStats{}, fmt.Errorf("summary: stddev: %w", err)
	}
	if n < 0 {
		n = 0
	}
	f.result = &PrivateStats{Epsilon: f.epsilon, Count: n, Mean: mean, StdDev: sd}
	return *f.result, nil
}

// NoisyCount releases n with Laplace noise calibrated to epsilon, clamped
// at zero.
func NoisyCount(n int64, epsilon float64) (int64, error) {
	c, err := dpagg.NewCount(&dpagg.CountOptions{
		Epsilon:                  epsilon,
		MaxPartitionsContributed: 1,
	})
	if err != nil {
		return 0, fmt.Errorf("summary: %w", err)
	}
	if err := c.IncrementBy(n); err != nil {
		return 0, fmt.Errorf("summary: %w", err)
	}
	res, err := c.Result()
	if err != nil {
		return 0, fmt.Errorf("summary: %w", err)
	}
	if res < 0 {
		res = 0
	}
	return res, nil
}
