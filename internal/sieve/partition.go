package sieve

import (
	"fmt"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// Segment is the half-open integer range [Start, End).
type Segment struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of integers in the segment.
func (s Segment) Len() int {
	if s.End <= s.Start {
		return 0
	}
	return s.End - s.Start
}

// Empty reports whether the segment holds no integers.
func (s Segment) Empty() bool {
	return s.Len() == 0
}

// Contains reports whether i lies in the segment.
func (s Segment) Contains(i int) bool {
	return i >= s.Start && i < s.End
}

func (s Segment) String() string {
	return fmt.Sprintf("[%d, %d)", s.Start, s.End)
}

// Partition splits [0, r) into w contiguous segments. The first w-1 segments
// have size r/w and the last one absorbs the remainder.
func Partition(r, w int) ([]Segment, error) {
	if w <= 0 {
		return nil, apperrors.Newf(apperrors.CodeConfigError, "worker count must be positive, got %d", w)
	}
	if r <= 0 {
		return nil, apperrors.Newf(apperrors.CodeConfigError, "partition range must be positive, got %d", r)
	}

	size := r / w
	segs := make([]Segment, w)
	for i := 0; i < w-1; i++ {
		segs[i] = Segment{Start: i * size, End: (i + 1) * size}
	}
	segs[w-1] = Segment{Start: (w - 1) * size, End: r}
	return segs, nil
}

// PartitionSegment splits domain into w segments with Partition.
func PartitionSegment(domain Segment, w int) ([]Segment, error) {
	segs, err := Partition(domain.Len(), w)
	if err != nil {
		return nil, err
	}
	return Offset(segs, domain.Start), nil
}

// Offset shifts every segment by base, in place, and returns the slice.
func Offset(segs []Segment, base int) []Segment {
	for i := range segs {
		segs[i].Start += base
		segs[i].End += base
	}
	return segs
}
