package types

import (
	"fmt"
	"strings"
)

// Reason records why a row, session or segment was dropped. Accepted is the
// zero value.
type Reason uint8

const (
	Accepted Reason = iota
	RejectShortRow
	RejectMalformedCSV
	RejectLengthBounds
	RejectBadNumber
	RejectSizeMismatch
	RejectShortSession
	RejectSparseSegment
	RejectShortSpan
	RejectBuildFailed
	numReasons
)

var reasonNames = [numReasons]string{
	Accepted:            "accepted",
	RejectShortRow:      "short-row",
	RejectMalformedCSV:  "malformed-csv",
	RejectLengthBounds:  "length-bounds",
	RejectBadNumber:     "bad-number",
	RejectSizeMismatch:  "size-mismatch",
	RejectShortSession:  "short-session",
	RejectSparseSegment: "sparse-segment",
	RejectShortSpan:     "short-span",
	RejectBuildFailed:   "build-failed",
}

func (r Reason) String() string {
	if r < numReasons {
		return reasonNames[r]
	}
	return fmt.Sprintf("unknown(%d)", uint8(r))
}

// RowLevel reports whether the reason is decided by the record parser.
func (r Reason) RowLevel() bool {
	return r >= RejectShortRow && r <= RejectSizeMismatch
}

// DropsSession reports whether the reason discards a whole parsed session
// rather than one of its windows.
func (r Reason) DropsSession() bool {
	return r == RejectShortSession || r == RejectBuildFailed
}

// Reasons lists every rejection reason in declaration order.
func Reasons() []Reason {
	out := make([]Reason, 0, numReasons-1)
	for r := RejectShortRow; r < numReasons; r++ {
		out = append(out, r)
	}
	return out
}

// Tally counts outcomes for a unit of work. Tallies of sibling units merge
// into the tally of their parent.
type Tally struct {
	Rows     int // rows read
	Sessions int // rows accepted by the parser
	Segments int // windows that passed validation
	FlowPics int
	rejected [numReasons]int
}

// Reject counts one rejection.
func (t *Tally) Reject(r Reason) {
	if r == Accepted || r >= numReasons {
		return
	}
	t.rejected[r]++
}

// Rejected returns the count for one reason.
func (t Tally) Rejected(r Reason) int {
	if r >= numReasons {
		return 0
	}
	return t.rejected[r]
}

// Skipped is the total number of rejections of any kind.
func (t Tally) Skipped() int {
	n := 0
	for _, c := range t.rejected {
		n += c
	}
	return n
}

// Merge adds o into t.
func (t *Tally) Merge(o Tally) {
	t.Rows += o.Rows
	t.Sessions += o.Sessions
	t.Segments += o.Segments
	t.FlowPics += o.FlowPics
	for i := range t.rejected {
		t.rejected[i] += o.rejected[i]
	}
}

func (t Tally) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "rows=%d sessions=%d segments=%d flowpics=%d", t.Rows, t.Sessions, t.Segments, t.FlowPics)
	for _, r := range Reasons() {
		if c := t.rejected[r]; c > 0 {
			fmt.Fprintf(&b, " %s=%d", r, c)
		}
	}
	return b.String()
}
