package types

import (
	"fmt"
	"strings"
)

// Direction of a packet relative to the host that opened the session.
type Direction int8

const (
	DirectionForward  Direction = 0
	DirectionBackward Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirectionForward:
		return "forward"
	case DirectionBackward:
		return "backward"
	default:
		return fmt.Sprintf("unknown(%d)", int(d))
	}
}

// DirectionFilter selects which packets of a session are kept.
type DirectionFilter string

const (
	KeepBoth     DirectionFilter = "both"
	KeepForward  DirectionFilter = "forward"
	KeepBackward DirectionFilter = "backward"
)

// ParseDirectionFilter accepts "both", "forward" or "backward"; the empty
// string means both.
func ParseDirectionFilter(s string) (DirectionFilter, error) {
	switch f := DirectionFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case "", KeepBoth:
		return KeepBoth, nil
	case KeepForward, KeepBackward:
		return f, nil
	default:
		return "", fmt.Errorf("unknown direction filter %q", s)
	}
}

// Keeps reports whether a packet travelling in d passes the filter.
func (f DirectionFilter) Keeps(d Direction) bool {
	switch f {
	case KeepForward:
		return d == DirectionForward
	case KeepBackward:
		return d == DirectionBackward
	default:
		return true
	}
}
