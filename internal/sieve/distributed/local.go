package distributed

import (
	"context"
	"time"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// LocalWorld connects ranks living in one process through a shared Hub.
type LocalWorld struct {
	hub *Hub
}

// NewLocalWorld creates an in-process world of size ranks.
func NewLocalWorld(size int, timeout time.Duration) (*LocalWorld, error) {
	hub, err := NewHub(size, timeout)
	if err != nil {
		return nil, err
	}
	return &LocalWorld{hub: hub}, nil
}

// Size returns the number of ranks.
func (w *LocalWorld) Size() int {
	return w.hub.Size()
}

// Comm returns the communicator of rank.
func (w *LocalWorld) Comm(_ context.Context, rank int) (Communicator, error) {
	return NewHubComm(w.hub, rank)
}

// Close is a no-op; the hub holds no external resources.
func (w *LocalWorld) Close() error {
	return nil
}

// NewHubComm returns a communicator that talks to hub directly.
func NewHubComm(hub *Hub, rank int) (Communicator, error) {
	if rank < 0 || rank >= hub.Size() {
		return nil, apperrors.Newf(apperrors.CodeConfigError, "rank %d out of range [0, %d)", rank, hub.Size())
	}
	return &comm{
		rank: rank,
		size: hub.Size(),
		exchange: func(ctx context.Context, seq uint64, kind string, payload []int) ([][]int, error) {
			return hub.Exchange(ctx, rank, seq, kind, payload)
		},
	}, nil
}
