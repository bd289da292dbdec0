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

package aggregate

import (
	"time"

	"github.com/glo-fi/flowpic/types"
)

// FileReport is the outcome of converting one CSV file.
type FileReport struct {
	Path  string
	Tally types.Tally
	Took  time.Duration
	Err   error // set when the file could not be read to the end
}

// DirReport is the outcome of one class directory.
type DirReport struct {
	Dir    string
	Class  string
	Tunnel string
	Output string // written array; empty when nothing was exported
	Files  []FileReport
	Tally  types.Tally
	Err    error
}

// Failed counts the files that could not be converted.
func (r DirReport) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Empty reports whether the directory produced no FlowPics.
func (r DirReport) Empty() bool {
	return r.Tally.FlowPics == 0
}

// RunReport is the outcome of a conversion over a whole tree.
type RunReport struct {
	Root  string
	Dirs  []DirReport
	Tally types.Tally
}

// Exported lists the arrays written by the run.
func (r RunReport) Exported() []string {
	var out []string
	for _, d := range r.Dirs {
		if d.Output != "" {
			out = append(out, d.Output)
		}
	}
	return out
}

// Empty reports whether no directory exported anything.
func (r RunReport) Empty() bool {
	return len(r.Exported()) == 0
}
