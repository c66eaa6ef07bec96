package memory

import "fmt"

// Range is a span of Len bytes starting at address Start.
type Range struct {
	Start uint64
	Len   uint64
}

// End returns the address immediately after the range.
func (o Range) End() uint64 {
	return o.Start + o.Len
}

// Empty returns true if the range has no bytes.
func (o Range) Empty() bool {
	return o.Len == 0
}

// Overlaps returns true if the two ranges share at least one byte.
func (o Range) Overlaps(other Range) bool {
	if o.Empty() || other.Empty() {
		return false
	}

	return o.Start < other.End() && other.Start < o.End()
}

// ContainsRange returns true if other lies entirely within the range.
// An empty range is contained by any range that contains its start.
func (o Range) ContainsRange(other Range) bool {
	if other.Start < o.Start || other.Start > o.End() {
		return false
	}

	return other.Len <= o.End()-other.Start
}

func (o Range) String() string {
	return fmt.Sprintf("[0x%x, 0x%x)", o.Start, o.End())
}
