package distributed

import (
	"context"
	"sync"
	"time"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// DefaultCollectiveTimeout bounds how long a rank waits for the others at
// one collective step.
const DefaultCollectiveTimeout = 30 * time.Second

// Hub is the rendezvous point of a world. Each collective step completes once
// every rank has contributed to it, and then every rank receives all
// contributions.
type Hub struct {
	size    int
	timeout time.Duration

	mu    sync.Mutex
	steps map[uint64]*step
}

type step struct {
	kind     string
	parts    [][]int
	arrived  []bool
	count    int
	seen     []bool
	consumed int
	done     chan struct{}
	finished bool
	err      error
}

// NewHub creates a hub for size ranks. A non-positive timeout uses
// DefaultCollectiveTimeout.
func NewHub(size int, timeout time.Duration) (*Hub, error) {
	if size <= 0 {
		return nil, apperrors.Newf(apperrors.CodeConfigError, "rank count must be positive, got %d", size)
	}
	if timeout <= 0 {
		timeout = DefaultCollectiveTimeout
	}
	return &Hub{
		size:    size,
		timeout: timeout,
		steps:   make(map[uint64]*step),
	}, nil
}

// Size returns the number of ranks.
func (h *Hub) Size() int {
	return h.size
}

// Timeout returns the collective timeout.
func (h *Hub) Timeout() time.Duration {
	return h.timeout
}

// Exchange contributes payload from rank to step seq and blocks until every
// rank has contributed, the step fails, the timeout elapses or ctx is done.
func (h *Hub) Exchange(ctx context.Context, rank int, seq uint64, kind string, payload []int) ([][]int, error) {
	if rank < 0 || rank >= h.size {
		return nil, apperrors.Newf(apperrors.CodeCollectiveError, "rank %d out of range [0, %d)", rank, h.size)
	}

	h.mu.Lock()
	s, ok := h.steps[seq]
	if !ok {
		s = &step{
			kind:    kind,
			parts:   make([][]int, h.size),
			arrived: make([]bool, h.size),
			seen:    make([]bool, h.size),
			done:    make(chan struct{}),
		}
		h.steps[seq] = s
	}
	switch {
	case s.finished:
	case s.kind != kind:
		s.fail(apperrors.Newf(apperrors.CodeCollectiveError,
			"step %d: rank %d called %s while other ranks called %s", seq, rank, kind, s.kind))
	case s.arrived[rank]:
		s.fail(apperrors.Newf(apperrors.CodeCollectiveError, "step %d: rank %d contributed twice", seq, rank))
	default:
		s.arrived[rank] = true
		s.parts[rank] = payload
		s.count++
		if s.count == h.size {
			s.finished = true
			close(s.done)
		}
	}
	h.mu.Unlock()

	timer := time.NewTimer(h.timeout)
	defer timer.Stop()

	select {
	case <-s.done:
	case <-timer.C:
		h.failStep(s, apperrors.Newf(apperrors.CodeCollectiveError,
			"step %d (%s): timed out after %v waiting for other ranks", seq, kind, h.timeout))
	case <-ctx.Done():
		h.failStep(s, apperrors.Wrap(apperrors.CodeCollectiveError,
			"step "+kind+" abandoned", ctx.Err()))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	// A step is released once every rank has seen its outcome, failed or not.
	if !s.seen[rank] {
		s.seen[rank] = true
		s.consumed++
		if s.consumed == h.size && h.steps[seq] == s {
			delete(h.steps, seq)
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.parts, nil
}

func (h *Hub) failStep(s *step, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.fail(err)
}

// fail must be called with the hub lock held. A step that already completed
// keeps its result.
func (s *step) fail(err error) {
	if s.finished {
		return
	}
	s.err = err
	s.finished = true
	close(s.done)
}

// pending returns the number of steps still held by the hub.
func (h *Hub) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.steps)
}
