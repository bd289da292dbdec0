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

// Package flow groups parsed packets into bidirectional sessions and emits
// each finished session as a session record.
package flow

import (
	"github.com/glo-fi/flowpic/types"
)

// AddResult is the outcome of adding a packet to a session.
type AddResult int

const (
	// AddSuccess means the packet joined the session.
	AddSuccess AddResult = iota
	// AddClosed means the packet joined the session and ended it.
	AddClosed
	// AddIdle means the session had been idle too long; the packet was not
	// added and starts a new session.
	AddIdle
)

func (r AddResult) String() string {
	switch r {
	case AddSuccess:
		return "success"
	case AddClosed:
		return "closed"
	case AddIdle:
		return "idle"
	default:
		return "unknown"
	}
}

// Emitter receives finished sessions. record.Writer satisfies it.
type Emitter interface {
	Write(rec types.SessionRecord) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(rec types.SessionRecord) error

func (f EmitterFunc) Write(rec types.SessionRecord) error {
	return f(rec)
}

// Anonymizer rewrites textual IP addresses before they are emitted.
type Anonymizer interface {
	AnonymizeString(ip string) string
}
