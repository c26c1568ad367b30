package collections

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBitset_Basic(t *testing.T) {
	b := NewBitset(100)

	b.Set(0)
	b.Set(50)
	b.Set(99)

	assert.True(t, b.Test(0))
	assert.True(t, b.Test(50))
	assert.True(t, b.Test(99))
	assert.False(t, b.Test(1))
	assert.Equal(t, 3, b.Count())

	b.Clear(50)
	assert.False(t, b.Test(50))
	assert.Equal(t, 2, b.Count())
}

func TestBitset_OutOfRange(t *testing.T) {
	b := NewBitset(10)

	b.Set(-1)
	b.Set(10)
	b.Set(200)

	assert.Equal(t, 0, b.Count())
	assert.False(t, b.Test(10))
	assert.False(t, b.Test(-1))
	assert.Equal(t, 10, b.Size())
}

func TestBitset_SetAllMasksTail(t *testing.T) {
	for _, size := range []int{1, 63, 64, 65, 100, 128} {
		b := NewBitset(size)
		b.SetAll()
		assert.Equal(t, size, b.Count(), "size %d", size)

		b.ClearAll()
		assert.Equal(t, 0, b.Count(), "size %d", size)
	}
}

func TestBitset_Iterate(t *testing.T) {
	b := NewBitset(200)
	for _, i := range []int{3, 64, 65, 127, 199} {
		b.Set(i)
	}

	assert.Equal(t, []int{3, 64, 65, 127, 199}, b.ToSlice())

	var firstTwo []int
	b.Iterate(func(i int) bool {
		firstTwo = append(firstTwo, i)
		return len(firstTwo) < 2
	})
	assert.Equal(t, []int{3, 64}, firstTwo)
}

func TestBitset_CloneAndEqual(t *testing.T) {
	a := NewBitset(70)
	a.Set(5)
	a.Set(69)

	c := a.Clone()
	assert.True(t, a.Equal(c))

	c.Clear(5)
	assert.False(t, a.Equal(c))
	assert.True(t, a.Test(5), "clone must not share storage")
	assert.False(t, a.Equal(NewBitset(71)))
	assert.False(t, a.Equal(nil))
}

func TestAtomicBitset_SetAllAndClear(t *testing.T) {
	b := NewAtomicBitset(130)
	b.SetAll()
	require.Equal(t, 130, b.Count())

	b.Clear(0)
	b.Clear(129)
	b.Clear(129)
	b.Clear(500)

	assert.False(t, b.Test(0))
	assert.False(t, b.Test(129))
	assert.True(t, b.Test(64))
	assert.Equal(t, 128, b.Count())
}

func TestAtomicBitset_ConcurrentClearSameWord(t *testing.T) {
	b := NewAtomicBitset(64 * 4)
	b.SetAll()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(offset int) {
			defer wg.Done()
			for i := offset; i < b.Size(); i += 8 {
				b.Clear(i)
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 0, b.Count(), "no clear may be lost when goroutines share a word")
}

func TestAtomicBitset_ConcurrentClearNeverSets(t *testing.T) {
	b := NewAtomicBitset(1000)
	b.SetAll()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < b.Size(); i += 2 {
				b.Clear(i)
			}
		}()
	}
	wg.Wait()

	snap := b.Snapshot()
	for i := 0; i < snap.Size(); i++ {
		assert.Equal(t, i%2 == 1, snap.Test(i), "index %d", i)
	}
}

func BenchmarkAtomicBitset_Clear(b *testing.B) {
	bs := NewAtomicBitset(1 << 20)
	bs.SetAll()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bs.Clear(i & (1<<20 - 1))
	}
}

func BenchmarkBitset_Test(b *testing.B) {
	bs := NewBitset(1 << 20)
	bs.SetAll()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = bs.Test(i & (1<<20 - 1))
	}
}
