package types

// Number of metadata fields that precede the length column of a session row.
const MetaFields = 7

// SessionRecord is one raw traffic session: packet arrival times and sizes
// in capture order.
type SessionRecord struct {
	Meta       []string
	Timestamps []float64 // seconds
	Sizes      []int     // bytes
}

// Len returns the packet count.
func (r SessionRecord) Len() int {
	return len(r.Timestamps)
}

// Duration is the time between the first and last packet.
func (r SessionRecord) Duration() float64 {
	if len(r.Timestamps) == 0 {
		return 0
	}
	return r.Timestamps[len(r.Timestamps)-1] - r.Timestamps[0]
}

// Segment is the part of a SessionRecord that falls inside one time window.
type Segment struct {
	Index      int     // window number
	Start      float64 // window start in session time
	Timestamps []float64
	Sizes      []int
}

// Len returns the packet count.
func (s Segment) Len() int {
	return len(s.Timestamps)
}

// Span is the time between the first and last packet of the segment.
func (s Segment) Span() float64 {
	if len(s.Timestamps) == 0 {
		return 0
	}
	return s.Timestamps[len(s.Timestamps)-1] - s.Timestamps[0]
}
