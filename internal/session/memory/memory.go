// memory implements session.Store in process memory.
// Expired entries are dropped lazily on read and by a periodic sweep.
// Intended for local runs and tests: state is lost on restart and is not
// shared between replicas.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JosephRemingston/insightAI/internal/session"
)

type item struct {
	value     string
	expiresAt time.Time
}

// Store: in-memory session store.
type Store struct {
	mu    sync.RWMutex
	items map[string]item
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		items: make(map[string]item),
		now:   time.Now,
		stop:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Put stores value with expiry.
func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	const op = "session.memory.Put"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if ttl <= 0 {
		return fmt.Errorf("%s: %w", op, session.ErrInvalidTTL)
	}

	s.mu.Lock()
	s.items[key] = item{value: value, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()

	return nil
}

// Get returns the value or session.ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	const op = "session.memory.Get"

	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()

	s.mu.RLock()
	it, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%s: %w", op, session.ErrNotFound)
	}

	if !now.Before(it.expiresAt) {
		s.mu.Lock()
		// the entry may have been replaced meanwhile.
		if cur, ok := s.items[key]; ok && !now.Before(cur.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()

		return "", fmt.Errorf("%s: %w", op, session.ErrNotFound)
	}

	return it.value, nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	const op = "session.memory.Delete"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()

	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *Store) Sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for k, it := range s.items {
		if !now.Before(it.expiresAt) {
			delete(s.items, k)
			n++
		}
	}

	return n
}

// Len returns the number of stored entries, expired ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}

// StartJanitor sweeps expired entries every period until ctx is done or
// the store is closed.
func (s *Store) StartJanitor(ctx context.Context, log *slog.Logger, period time.Duration) {
	if period <= 0 {
		return
	}

	go func() {
		t := time.NewTicker(period)
		defer t.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-t.C:
				if n := s.Sweep(); n > 0 && log != nil {
					log.Debug("session_sweep", slog.Int("dropped", n))
				}
			}
		}
	}()
}

// Close stops the janitor. The store stays usable.
func (s *Store) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

var _ session.Store = (*Store)(nil)
