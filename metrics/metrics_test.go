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

package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glo-fi/flowpic/types"
)

func TestObserveTally(t *testing.T) {
	m := New()

	var tally types.Tally
	tally.Rows = 6
	tally.Sessions = 4
	tally.Segments = 3
	tally.Reject(types.RejectShortRow)
	tally.Reject(types.RejectBadNumber)
	tally.Reject(types.RejectShortSession)
	tally.Reject(types.RejectBuildFailed)
	tally.Reject(types.RejectSparseSegment)
	tally.Reject(types.RejectShortSpan)
	tally.Reject(types.RejectShortSpan)
	m.ObserveTally(tally)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rows.WithLabelValues("accepted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rows.WithLabelValues("short-row")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rows.WithLabelValues("short-session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Rows.WithLabelValues("build-failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Segments.WithLabelValues("accepted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Segments.WithLabelValues("short-span")))
}

func TestObserveFileAndPictures(t *testing.T) {
	m := New()
	m.ObserveFile(nil, 20*time.Millisecond)
	m.ObserveFile(errors.New("boom"), time.Second)
	m.AddPictures("chat", "vpn", 12)
	m.SetDatasetRows("vpn", "test", 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Files.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Files.WithLabelValues("error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.Pictures.WithLabelValues("chat", "vpn")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.DatasetRows.WithLabelValues("vpn", "test")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.FileDuration))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.AddPictures("voip", "tor", 2)

	path := filepath.Join(t.TempDir(), "flowpic.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `flowpic_pictures_total{class="voip",tunnel="tor"} 2`)
}

func TestObserveCapture(t *testing.T) {
	m := New()
	m.ObservePackets(10, 3)
	m.ObserveSessions("closed", 2)
	m.ObserveSessions("idle", 0)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.Packets.WithLabelValues("parsed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Packets.WithLabelValues("skipped")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Sessions.WithLabelValues("closed")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.Sessions), "zero counts are not created")
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTally(types.Tally{Sessions: 1})
		m.ObserveFile(nil, time.Second)
		m.AddPictures("a", "b", 1)
		m.SetDatasetRows("a", "test", 1)
		m.ObservePackets(1, 1)
		m.ObserveSessions("idle", 1)
		assert.NoError(t, m.WriteTextfile("ignored"))
		assert.Nil(t, m.Registry())
	})
}
