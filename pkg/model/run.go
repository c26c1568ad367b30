// Package model defines the core data structures used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"
)

// BackendType identifies the concurrency substrate a run executed on.
type BackendType string

const (
	BackendThreads      BackendType = "threads"      // Worker pool sharing one buffer
	BackendLocks        BackendType = "locks"        // Spawn/join goroutines with an explicit mutex
	BackendDataParallel BackendType = "dataparallel" // Parallel-for over disjoint write windows
	BackendDistributed  BackendType = "distributed"  // Isolated ranks joined by collectives
)

// AllBackends returns every supported backend in a stable order.
func AllBackends() []BackendType {
	return []BackendType{BackendThreads, BackendLocks, BackendDataParallel, BackendDistributed}
}

// String returns the string representation of BackendType.
func (b BackendType) String() string {
	return string(b)
}

// ParseBackendType parses a backend name.
func ParseBackendType(s string) (BackendType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "threads", "thread", "pool":
		return BackendThreads, nil
	case "locks", "lock", "pthreads":
		return BackendLocks, nil
	case "dataparallel", "data-parallel", "parfor", "omp":
		return BackendDataParallel, nil
	case "distributed", "mpi", "ranks":
		return BackendDistributed, nil
	default:
		return "", fmt.Errorf("unknown backend: %s (valid: threads, locks, dataparallel, distributed)", s)
	}
}

// Params are the inputs of a single sieve run.
type Params struct {
	Limit      int `json:"limit"`
	Count      int `json:"count"`
	Workers    int `json:"workers"`
	Collectors int `json:"collectors"`
}

// Phases records how long each stage of a run took.
type Phases struct {
	Mark    time.Duration `json:"mark"`
	Collect time.Duration `json:"collect"`
}

// Result is the output artifact of a run.
type Result struct {
	RunID     string        `json:"run_id"`
	Backend   BackendType   `json:"backend"`
	Params    Params        `json:"params"`
	Workers   int           `json:"workers"`
	Primes    []int         `json:"primes"`
	Phases    Phases        `json:"phases"`
	Elapsed   time.Duration `json:"elapsed"`
	CreatedAt time.Time     `json:"created_at"`
}

// Len returns the number of primes in the result.
func (r *Result) Len() int {
	return len(r.Primes)
}

// Last returns the largest prime in the result, or 0 when it is empty.
func (r *Result) Last() int {
	if len(r.Primes) == 0 {
		return 0
	}
	return r.Primes[len(r.Primes)-1]
}

// Complete reports whether the run found all requested primes.
func (r *Result) Complete() bool {
	return len(r.Primes) >= r.Params.Count
}
