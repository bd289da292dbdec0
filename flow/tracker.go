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

package flow

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/glo-fi/flowpic/types"
)

// DefaultIdleTimeout ends a session after ten minutes without packets.
const DefaultIdleTimeout = 600 * time.Second

type Options struct {
	Capture     string // first metadata field of every emitted record
	IdleTimeout time.Duration
	Direction   types.DirectionFilter
	MinPackets  int // sessions keeping fewer packets are dropped, not emitted
	Anonymizer  Anonymizer
}

// Stats counts what a Tracker did.
type Stats struct {
	Packets int64
	Started int
	Closed  int // ended by RST or FIN exchange
	Idle    int // ended by the idle timeout
	Flushed int
	Emitted int
	Dropped int
}

// Tracker keeps the table of active sessions. It is not safe for
// concurrent use.
type Tracker struct {
	opts   Options
	emit   Emitter
	log    *zap.Logger
	active map[types.FlowKey]*Session
	stats  Stats
}

func NewTracker(opts Options, emit Emitter, log *zap.Logger) *Tracker {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Direction == "" {
		opts.Direction = types.KeepBoth
	}
	if opts.MinPackets < 1 {
		opts.MinPackets = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Tracker{
		opts:   opts,
		emit:   emit,
		log:    log,
		active: make(map[types.FlowKey]*Session),
	}
}

// Add routes pkt to its session, starting one when needed, and emits the
// session when pkt ends it.
func (t *Tracker) Add(pkt *types.ParsedPacket) error {
	t.stats.Packets++
	pkt.SequenceNum = t.stats.Packets

	key := pkt.GetFlowKey()
	s, exists := t.active[key]
	if !exists {
		t.start(key, pkt)
		return nil
	}

	switch s.Add(pkt, t.opts.IdleTimeout) {
	case AddClosed:
		t.stats.Closed++
		delete(t.active, key)
		return t.export(s)
	case AddIdle:
		t.stats.Idle++
		delete(t.active, key)
		t.start(key, pkt)
		return t.export(s)
	}
	return nil
}

func (t *Tracker) start(key types.FlowKey, pkt *types.ParsedPacket) {
	t.stats.Started++
	t.active[key] = newSession(pkt, t.opts.Direction)
}

// Sweep emits every session idle at now and returns how many it removed.
func (t *Tracker) Sweep(now time.Time) (int, error) {
	var expired []*Session
	for key, s := range t.active {
		if s.IsExpired(now, t.opts.IdleTimeout) {
			expired = append(expired, s)
			delete(t.active, key)
		}
	}
	t.stats.Idle += len(expired)
	t.log.Debug("removed idle sessions",
		zap.Int("removed", len(expired)), zap.Int("active", len(t.active)), zap.Time("at", now))
	return len(expired), t.exportAll(expired)
}

// Flush emits every remaining session, oldest first.
func (t *Tracker) Flush() error {
	rest := make([]*Session, 0, len(t.active))
	for key, s := range t.active {
		rest = append(rest, s)
		delete(t.active, key)
	}
	t.stats.Flushed += len(rest)
	return t.exportAll(rest)
}

func (t *Tracker) exportAll(sessions []*Session) error {
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].first.Equal(sessions[j].first) {
			return sessions[i].first.Before(sessions[j].first)
		}
		return sessions[i].Key.String() < sessions[j].Key.String()
	})
	for _, s := range sessions {
		if err := t.export(s); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) export(s *Session) error {
	if s.Kept() < t.opts.MinPackets {
		t.stats.Dropped++
		return nil
	}
	if err := t.emit.Write(s.Record(t.opts.Capture, t.opts.Anonymizer)); err != nil {
		return err
	}
	t.stats.Emitted++
	return nil
}

// Active returns the number of open sessions.
func (t *Tracker) Active() int {
	return len(t.active)
}

func (t *Tracker) Stats() Stats {
	return t.stats
}
