package cache

import (
	"context"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
)

const sweepInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps processed markers in process memory. Suitable for a single
// instance and for tests.
type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	expiry map[string]time.Time
	now    func() time.Time

	done      chan struct{}
	sweeper   sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore starts a store whose expired markers are swept periodically
// until Close
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		expiry: make(map[string]time.Time),
		now:    time.Now,
		done:   make(chan struct{}),
	}
	s.sweeper.Add(1)
	go s.sweepLoop()
	return s
}

func (s *InMemoryIdempotencyStore) live(eventID string, at time.Time) bool {
	exp, ok := s.expiry[eventID]
	return ok && at.Before(exp)
}

func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.now()
	if s.live(eventID, at) {
		return false, nil
	}
	s.expiry[eventID] = at.Add(ttl)
	return true, nil
}

func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.live(eventID, s.now()), nil
}

func (s *InMemoryIdempotencyStore) Release(_ context.Context, eventID string) error {
	s.mu.Lock()
	delete(s.expiry, eventID)
	s.mu.Unlock()
	return nil
}

// Close stops the sweeper; calling it again is a no-op
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.sweeper.Wait()
	})
	return nil
}

// Len counts markers held, including expired ones not yet swept
func (s *InMemoryIdempotencyStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.expiry)
}

func (s *InMemoryIdempotencyStore) sweepLoop() {
	defer s.sweeper.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops expired markers and reports how many it removed
func (s *InMemoryIdempotencyStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	at := s.now()
	removed := 0
	for id, exp := range s.expiry {
		if !at.Before(exp) {
			delete(s.expiry, id)
			removed++
		}
	}
	return removed
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
