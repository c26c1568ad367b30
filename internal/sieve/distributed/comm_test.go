package distributed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/prime-sieve/pkg/errors"
)

// runWorld calls fn once per rank of world concurrently.
func runWorld(t *testing.T, world World, fn func(ctx context.Context, c Communicator) error) error {
	t.Helper()
	g, ctx := errgroup.WithContext(context.Background())
	for rank := 0; rank < world.Size(); rank++ {
		g.Go(func() error {
			c, err := world.Comm(ctx, rank)
			if err != nil {
				return err
			}
			defer c.Close()
			return fn(ctx, c)
		})
	}
	return g.Wait()
}

func testCollectives(t *testing.T, world World) {
	size := world.Size()
	broadcast := make([]int, size)
	sums := make([]int, size)
	gathered := make([][][]int, size)

	err := runWorld(t, world, func(ctx context.Context, c Communicator) error {
		v, err := c.Broadcast(ctx, 1, 100+c.Rank())
		if err != nil {
			return err
		}
		broadcast[c.Rank()] = v

		sum, err := c.ReduceSum(ctx, 0, c.Rank()+1)
		if err != nil {
			return err
		}
		sums[c.Rank()] = sum

		parts, err := c.Gather(ctx, 0, []int{c.Rank(), c.Rank() * 10})
		if err != nil {
			return err
		}
		gathered[c.Rank()] = parts
		return nil
	})
	require.NoError(t, err)

	for rank := 0; rank < size; rank++ {
		assert.Equal(t, 101, broadcast[rank], "rank %d broadcast", rank)
	}
	assert.Equal(t, size*(size+1)/2, sums[0])
	for rank := 1; rank < size; rank++ {
		assert.Equal(t, 0, sums[rank])
		assert.Nil(t, gathered[rank])
	}
	require.Len(t, gathered[0], size)
	for rank, part := range gathered[0] {
		assert.Equal(t, []int{rank, rank * 10}, part)
	}
}

func TestLocalWorld_Collectives(t *testing.T) {
	world, err := NewLocalWorld(4, time.Second)
	require.NoError(t, err)
	defer world.Close()

	testCollectives(t, world)
}

func TestLocalWorld_MismatchedRoot(t *testing.T) {
	world, err := NewLocalWorld(2, 5*time.Second)
	require.NoError(t, err)

	err = runWorld(t, world, func(ctx context.Context, c Communicator) error {
		_, err := c.Broadcast(ctx, c.Rank(), 1)
		return err
	})
	assert.True(t, apperrors.IsCollectiveError(err))
}

func TestLocalWorld_InvalidRankAndRoot(t *testing.T) {
	world, err := NewLocalWorld(2, time.Second)
	require.NoError(t, err)

	_, err = world.Comm(context.Background(), 5)
	assert.True(t, apperrors.IsConfigError(err))

	c, err := world.Comm(context.Background(), 0)
	require.NoError(t, err)
	_, err = c.Broadcast(context.Background(), 3, 1)
	assert.True(t, apperrors.IsCollectiveError(err))
}
