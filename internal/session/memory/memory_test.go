package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JosephRemingston/insightAI/internal/session"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClocked() (*Store, *fakeClock) {
	clk := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	return New(WithClock(clk.Now)), clk
}

func TestPutGetDelete(t *testing.T) {
	t.Parallel()

	s, _ := newClocked()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", "v1", time.Minute))
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v1", v)

	require.NoError(t, s.Put(ctx, "k", "v2", time.Minute))
	v, err = s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v2", v)

	require.NoError(t, s.Delete(ctx, "k"))
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, session.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "k"))
}

func TestGet_ExpiresAtTTL(t *testing.T) {
	t.Parallel()

	s, clk := newClocked()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", "v", 10*time.Second))

	clk.Advance(9 * time.Second)
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = s.Get(ctx, "k")
	require.ErrorIs(t, err, session.ErrNotFound)

	// lazily removed on read.
	require.Zero(t, s.Len())
}

func TestPut_RejectsNonPositiveTTL(t *testing.T) {
	t.Parallel()

	s, _ := newClocked()

	require.ErrorIs(t, s.Put(context.Background(), "k", "v", 0), session.ErrInvalidTTL)
	require.ErrorIs(t, s.Put(context.Background(), "k", "v", -time.Second), session.ErrInvalidTTL)
	require.Zero(t, s.Len())
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	s, _ := newClocked()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, s.Put(ctx, "k", "v", time.Minute), context.Canceled)
	_, err := s.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, s.Delete(ctx, "k"), context.Canceled)
}

func TestSweep(t *testing.T) {
	t.Parallel()

	s, clk := newClocked()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "short", "v", time.Second))
	require.NoError(t, s.Put(ctx, "long", "v", time.Hour))

	clk.Advance(2 * time.Second)
	require.Equal(t, 1, s.Sweep())
	require.Equal(t, 1, s.Len())

	_, err := s.Get(ctx, "long")
	require.NoError(t, err)
}

func TestStartJanitor_SweepsAndStopsOnClose(t *testing.T) {
	t.Parallel()

	s, clk := newClocked()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "k", "v", time.Second))
	clk.Advance(time.Minute)

	s.StartJanitor(ctx, nil, 10*time.Millisecond)
	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 10*time.Millisecond)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestConcurrentAccess(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%4)
			for j := 0; j < 200; j++ {
				_ = s.Put(ctx, key, "v", time.Minute)
				_, _ = s.Get(ctx, key)
				if j%10 == 0 {
					_ = s.Delete(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()
}
