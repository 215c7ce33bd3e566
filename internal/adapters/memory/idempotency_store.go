package memory

import (
	"BackOffice/internal/core/ports"
	"context"
	"sync"
	"time"
)

// idempotencyStore keeps claimed keys in process memory until they expire.
type idempotencyStore struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

var _ ports.IdempotencyStore = (*idempotencyStore)(nil)

// NewIdempotencyStore creates a store for single-process deployments.
func NewIdempotencyStore() ports.IdempotencyStore {
	return &idempotencyStore{
		keys: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (s *idempotencyStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expires, ok := s.keys[key]; ok && now.Before(expires) {
		return false, nil
	}
	s.keys[key] = now.Add(ttl)

	// Opportunistic sweep so the map does not grow forever.
	if len(s.keys)%256 == 0 {
		for k, exp := range s.keys {
			if !now.Before(exp) {
				delete(s.keys, k)
			}
		}
	}
	return true, nil
}
