// Package sieve implements the segmented Sieve of Eratosthenes shared by all
// backends: the marking table, the work partitioner, the segment markers and
// the bounded prime collector.
package sieve

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/prime-sieve/pkg/collections"
	apperrors "github.com/prime-sieve/pkg/errors"
)

// MaxLimit is the largest bound a Buffer accepts.
const MaxLimit = 1 << 40

// Buffer is the marking table over [0, Limit). Bit i set means "i is still
// considered prime".
//
// A Buffer goes through two phases. While marking, any number of markers may
// call Strike concurrently. Strike only ever clears bits, so concurrent
// writers to one slot always write the same value and the table is monotone.
// Freeze ends the marking phase and hands out the read-only View used by the
// collector. Freeze must only be called after every marker has returned.
type Buffer struct {
	bits   *collections.AtomicBitset
	limit  int
	frozen atomic.Bool
}

// NewBuffer allocates a table for [0, limit) with every index >= 2 marked prime.
func NewBuffer(limit int) (buf *Buffer, err error) {
	if limit < 2 {
		return nil, apperrors.Newf(apperrors.CodeConfigError, "limit must be at least 2, got %d", limit)
	}
	if limit > MaxLimit {
		return nil, apperrors.Newf(apperrors.CodeResourceExhausted, "limit %d exceeds maximum %d", limit, MaxLimit)
	}

	defer func() {
		if r := recover(); r != nil {
			buf = nil
			err = apperrors.Wrap(apperrors.CodeResourceExhausted,
				fmt.Sprintf("cannot allocate sieve buffer for limit %d", limit), fmt.Errorf("%v", r))
		}
	}()

	bits := collections.NewAtomicBitset(limit)
	bits.SetAll()
	bits.Clear(0)
	bits.Clear(1)
	return &Buffer{bits: bits, limit: limit}, nil
}

// Limit returns the exclusive upper bound of the table.
func (b *Buffer) Limit() int {
	return b.limit
}

// IsPrime reports whether i is still marked prime. During marking the answer
// may be stale: a composite can still read as prime until its striker runs.
func (b *Buffer) IsPrime(i int) bool {
	return b.bits.Test(i)
}

// Strike marks i as composite. It is the only write a marker performs.
func (b *Buffer) Strike(i int) {
	b.bits.Clear(i)
}

// Marking reports whether the buffer still accepts strikes.
func (b *Buffer) Marking() bool {
	return !b.frozen.Load()
}

// Freeze ends the marking phase and returns the read-only view.
// Calling Freeze more than once returns equivalent views.
func (b *Buffer) Freeze() *View {
	b.frozen.Store(true)
	return &View{bits: b.bits, limit: b.limit}
}

func (b *Buffer) mustBeMarking() {
	if b.frozen.Load() {
		panic("sieve: strike on a frozen buffer")
	}
}

// View is the frozen, read-only form of a Buffer.
type View struct {
	bits  *collections.AtomicBitset
	limit int
}

// Limit returns the exclusive upper bound of the table.
func (v *View) Limit() int {
	return v.limit
}

// IsPrime reports whether i is prime.
func (v *View) IsPrime(i int) bool {
	return v.bits.Test(i)
}

// Count returns the number of primes below Limit.
func (v *View) Count() int {
	return v.bits.Count()
}

// Primes calls fn for each prime in increasing order until fn returns false.
func (v *View) Primes(fn func(p int) bool) {
	v.bits.Iterate(fn)
}

// Snapshot copies the table.
func (v *View) Snapshot() *collections.Bitset {
	return v.bits.Snapshot()
}

// SqrtLimit returns floor(sqrt(limit)), the largest candidate whose multiples
// can still fall below limit.
func SqrtLimit(limit int) int {
	if limit <= 0 {
		return 0
	}
	r := int(math.Sqrt(float64(limit)))
	for r*r > limit {
		r--
	}
	for (r+1)*(r+1) <= limit {
		r++
	}
	return r
}

// ScanRange returns the candidate range [2, SqrtLimit(limit)] as a half-open
// segment. It is empty when limit < 4.
func ScanRange(limit int) Segment {
	root := SqrtLimit(limit)
	if root < 2 {
		return Segment{Start: 2, End: 2}
	}
	return Segment{Start: 2, End: root + 1}
}
