// Package collections provides compact bit-level data structures used as sieve tables.
package collections

import (
	"math/bits"
	"sync/atomic"
)

// ============================================================================
// Bitset - single-owner boolean set
// ============================================================================

// Bitset is a fixed-size boolean set with one bit per element.
//
// Memory for 1M elements:
//   - []bool: ~1MB
//   - Bitset: ~128KB
//
// A Bitset is not safe for concurrent mutation; use AtomicBitset for tables
// shared by several goroutines.
type Bitset struct {
	words []uint64
	size  int
}

// NewBitset creates a cleared bitset holding size elements.
func NewBitset(size int) *Bitset {
	if size < 0 {
		size = 0
	}
	return &Bitset{
		words: make([]uint64, wordsFor(size)),
		size:  size,
	}
}

// Set sets the bit at index i. Out-of-range indices are ignored.
func (b *Bitset) Set(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.words[i>>6] |= 1 << (uint(i) & 63)
}

// Clear clears the bit at index i. Out-of-range indices are ignored.
func (b *Bitset) Clear(i int) {
	if i < 0 || i >= b.size {
		return
	}
	b.words[i>>6] &^= 1 << (uint(i) & 63)
}

// Test returns true if the bit at index i is set.
func (b *Bitset) Test(i int) bool {
	if i < 0 || i >= b.size {
		return false
	}
	return b.words[i>>6]&(1<<(uint(i)&63)) != 0
}

// SetAll sets every bit in [0, Size).
func (b *Bitset) SetAll() {
	for i := range b.words {
		b.words[i] = ^uint64(0)
	}
	b.maskTail()
}

// ClearAll clears all bits.
func (b *Bitset) ClearAll() {
	for i := range b.words {
		b.words[i] = 0
	}
}

// Count returns the number of set bits.
func (b *Bitset) Count() int {
	count := 0
	for _, w := range b.words {
		count += bits.OnesCount64(w)
	}
	return count
}

// Size returns the number of addressable bits.
func (b *Bitset) Size() int {
	return b.size
}

// Iterate calls fn for each set bit in increasing order until fn returns false.
func (b *Bitset) Iterate(fn func(i int) bool) {
	iterateWords(b.words, func(w int) uint64 { return b.words[w] }, fn)
}

// Equal reports whether both bitsets have the same size and contents.
func (b *Bitset) Equal(other *Bitset) bool {
	if other == nil || b.size != other.size {
		return false
	}
	for i := range b.words {
		if b.words[i] != other.words[i] {
			return false
		}
	}
	return true
}

// Clone creates a copy of the bitset.
func (b *Bitset) Clone() *Bitset {
	words := make([]uint64, len(b.words))
	copy(words, b.words)
	return &Bitset{words: words, size: b.size}
}

// ToSlice returns the indices of all set bits in increasing order.
func (b *Bitset) ToSlice() []int {
	result := make([]int, 0, b.Count())
	b.Iterate(func(i int) bool {
		result = append(result, i)
		return true
	})
	return result
}

func (b *Bitset) maskTail() {
	if rem := uint(b.size) & 63; rem != 0 && len(b.words) > 0 {
		b.words[len(b.words)-1] &= (1 << rem) - 1
	}
}

// ============================================================================
// AtomicBitset - shared table with monotone atomic clears
// ============================================================================

// AtomicBitset is a fixed-size bitset that many goroutines may read and
// clear concurrently without a lock.
//
// Bits are set once at construction (SetAll) and afterwards only ever
// cleared. Clear uses an atomic AND-NOT on the containing word, so two
// goroutines clearing different bits of the same word never lose each
// other's update, and no interleaving can turn a cleared bit back on.
type AtomicBitset struct {
	words []uint64
	size  int
}

// NewAtomicBitset creates a cleared atomic bitset holding size elements.
func NewAtomicBitset(size int) *AtomicBitset {
	if size < 0 {
		size = 0
	}
	return &AtomicBitset{
		words: make([]uint64, wordsFor(size)),
		size:  size,
	}
}

// SetAll sets every bit in [0, Size). It must be called before the bitset
// is shared.
func (b *AtomicBitset) SetAll() {
	for i := range b.words {
		b.words[i] = ^uint64(0)
	}
	if rem := uint(b.size) & 63; rem != 0 && len(b.words) > 0 {
		b.words[len(b.words)-1] &= (1 << rem) - 1
	}
}

// Clear atomically clears the bit at index i.
func (b *AtomicBitset) Clear(i int) {
	if i < 0 || i >= b.size {
		return
	}
	atomic.AndUint64(&b.words[i>>6], ^(uint64(1) << (uint(i) & 63)))
}

// Test atomically loads the bit at index i.
func (b *AtomicBitset) Test(i int) bool {
	if i < 0 || i >= b.size {
		return false
	}
	return atomic.LoadUint64(&b.words[i>>6])&(1<<(uint(i)&63)) != 0
}

// Count returns the number of set bits.
func (b *AtomicBitset) Count() int {
	count := 0
	for i := range b.words {
		count += bits.OnesCount64(atomic.LoadUint64(&b.words[i]))
	}
	return count
}

// Size returns the number of addressable bits.
func (b *AtomicBitset) Size() int {
	return b.size
}

// Iterate calls fn for each set bit in increasing order until fn returns false.
func (b *AtomicBitset) Iterate(fn func(i int) bool) {
	iterateWords(b.words, func(w int) uint64 { return atomic.LoadUint64(&b.words[w]) }, fn)
}

// Snapshot copies the current contents into a plain Bitset.
func (b *AtomicBitset) Snapshot() *Bitset {
	out := NewBitset(b.size)
	for i := range b.words {
		out.words[i] = atomic.LoadUint64(&b.words[i])
	}
	return out
}

func wordsFor(size int) int {
	return (size + 63) >> 6
}

func iterateWords(words []uint64, load func(w int) uint64, fn func(i int) bool) {
	for w := range words {
		word := load(w)
		base := w << 6
		for word != 0 {
			tz := bits.TrailingZeros64(word)
			if !fn(base + tz) {
				return
			}
			word &= word - 1
		}
	}
}
