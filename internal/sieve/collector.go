package sieve

import (
	"context"
	"sync"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// ResultList is a bounded, strictly increasing list of primes that several
// collectors may append to concurrently.
type ResultList struct {
	mu       sync.Locker
	items    []int
	capacity int
}

// NewResultList creates an empty list holding at most k primes.
func NewResultList(k int) *ResultList {
	return NewResultListWithLocker(k, &sync.Mutex{})
}

// NewResultListWithLocker creates a list guarded by the given lock.
func NewResultListWithLocker(k int, l sync.Locker) *ResultList {
	if k < 0 {
		k = 0
	}
	return &ResultList{
		mu:       l,
		items:    make([]int, 0, k),
		capacity: k,
	}
}

// TryAppend appends p if the list has room and p is larger than the last
// element. The size check and the append happen in one critical section.
func (r *ResultList) TryAppend(p int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.items) >= r.capacity {
		return false
	}
	if n := len(r.items); n > 0 && p <= r.items[n-1] {
		return false
	}
	r.items = append(r.items, p)
	return true
}

// Full reports whether the list holds its maximum number of primes.
func (r *ResultList) Full() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items) >= r.capacity
}

// Len returns the number of primes in the list.
func (r *ResultList) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Cap returns the maximum number of primes the list accepts.
func (r *ResultList) Cap() int {
	return r.capacity
}

// Primes returns a copy of the list.
func (r *ResultList) Primes() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.items))
	copy(out, r.items)
	return out
}

// Collect scans the frozen view upward from 2 on the given number of
// collector goroutines and returns the first k primes.
//
// Every collector walks the same primes in increasing order and offers each
// one to the shared list. A collector that falls behind has its offers
// rejected by the p > last rule, so no prime is duplicated, none below the
// last accepted prime is skipped, and the list never grows past k. When the
// table holds fewer than k primes the shorter list is returned.
func Collect(ctx context.Context, view *View, k, collectors int) ([]int, error) {
	return CollectInto(ctx, view, NewResultList(k), collectors)
}

// CollectInto is Collect with a caller-supplied result list.
func CollectInto(ctx context.Context, view *View, list *ResultList, collectors int) ([]int, error) {
	if list.Cap() <= 0 {
		return nil, apperrors.Newf(apperrors.CodeConfigError, "prime count must be positive, got %d", list.Cap())
	}
	if collectors <= 0 {
		return nil, apperrors.Newf(apperrors.CodeConfigError, "collector count must be positive, got %d", collectors)
	}

	scan := func() {
		view.Primes(func(p int) bool {
			if list.Full() || ctx.Err() != nil {
				return false
			}
			list.TryAppend(p)
			return true
		})
	}

	if collectors == 1 {
		scan()
	} else {
		var wg sync.WaitGroup
		wg.Add(collectors)
		for c := 0; c < collectors; c++ {
			go func() {
				defer wg.Done()
				scan()
			}()
		}
		wg.Wait()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return list.Primes(), nil
}
