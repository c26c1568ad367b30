package sieve

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/prime-sieve/pkg/errors"
)

func TestPartition_CoverAndSizes(t *testing.T) {
	for _, r := range []int{1, 2, 7, 10, 999, 1000, 1001} {
		for _, w := range []int{1, 2, 3, 4, 8, 16, 1500} {
			t.Run(fmt.Sprintf("r=%d/w=%d", r, w), func(t *testing.T) {
				segs, err := Partition(r, w)
				require.NoError(t, err)
				require.Len(t, segs, w)

				assert.Equal(t, 0, segs[0].Start)
				assert.Equal(t, r, segs[w-1].End)

				total := 0
				for i, s := range segs {
					total += s.Len()
					if i > 0 {
						assert.Equal(t, segs[i-1].End, s.Start, "segments are contiguous")
					}
				}
				assert.Equal(t, r, total)

				for i := 0; i < w-1; i++ {
					assert.Equal(t, r/w, segs[i].Len())
				}
				assert.GreaterOrEqual(t, segs[w-1].Len(), r/w)
			})
		}
	}
}

func TestPartition_EqualPartsDifferByAtMostOne(t *testing.T) {
	segs, err := Partition(10, 4)
	require.NoError(t, err)

	assert.Equal(t, []Segment{{0, 2}, {2, 4}, {4, 6}, {6, 10}}, segs)
	for i := 1; i < len(segs)-1; i++ {
		assert.LessOrEqual(t, abs(segs[i].Len()-segs[i-1].Len()), 1)
	}
}

func TestPartition_Invalid(t *testing.T) {
	tests := []struct {
		name string
		r, w int
	}{
		{"zero workers", 10, 0},
		{"negative workers", 10, -1},
		{"empty range", 0, 4},
		{"negative range", -3, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := Partition(tt.r, tt.w)
			assert.Nil(t, segs)
			assert.True(t, apperrors.IsConfigError(err))
		})
	}
}

func TestPartitionSegment(t *testing.T) {
	segs, err := PartitionSegment(ScanRange(1_000_000), 4)
	require.NoError(t, err)

	assert.Equal(t, Segment{Start: 2, End: 251}, segs[0])
	assert.Equal(t, Segment{Start: 749, End: 1001}, segs[3])

	_, err = PartitionSegment(ScanRange(3), 4)
	assert.True(t, apperrors.IsConfigError(err))
}

func TestSegment(t *testing.T) {
	s := Segment{Start: 5, End: 9}
	assert.Equal(t, 4, s.Len())
	assert.False(t, s.Empty())
	assert.True(t, s.Contains(5))
	assert.False(t, s.Contains(9))
	assert.Equal(t, "[5, 9)", s.String())

	assert.True(t, Segment{Start: 9, End: 5}.Empty())
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
