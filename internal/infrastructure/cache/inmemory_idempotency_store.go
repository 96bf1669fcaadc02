package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Jc7j/ProperlyOld-sub000/internal/domain/shared"
)

// janitorInterval is how often expired submission keys are swept out.
const janitorInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps processed submission keys in a map keyed by
// expiry time. State lives in one process only, so it suits single-instance
// deployments and tests.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	seen      map[string]time.Time
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore returns a store with a running janitor
// goroutine. Call Close to stop it.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		seen: make(map[string]time.Time),
		done: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.janitor()
	return s
}

// MarkProcessed records the submission key for ttl. It reports true when the
// key was fresh and false when a live entry already claimed it.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if expiry, ok := s.seen[key]; ok && now.Before(expiry) {
		return false, nil
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether the submission key has a live entry.
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiry, ok := s.seen[key]
	return ok && time.Now().Before(expiry), nil
}

// Close stops the janitor. Calling it more than once is safe.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) janitor() {
	defer s.wg.Done()

	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.purgeExpired()
		}
	}
}

// purgeExpired drops entries whose TTL has lapsed. Expired keys are already
// invisible to reads; this only bounds memory growth.
func (s *InMemoryIdempotencyStore) purgeExpired() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, expiry := range s.seen {
		if !now.Before(expiry) {
			delete(s.seen, key)
		}
	}
}

// Size returns the number of stored keys, counting expired entries the
// janitor has not swept yet.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
