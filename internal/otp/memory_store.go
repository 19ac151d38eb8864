package otp

import (
	"context"
	"sync"
	"time"
)

type ticket struct {
	payload   Payload
	code      string
	expiresAt time.Time
}

// MemoryStore is an in-memory implementation of Store for single-process
// deployments. Expired tickets are evicted on access and by a periodic
// janitor so the map stays bounded under sustained registration load.
type MemoryStore struct {
	tickets map[string]ticket
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewMemoryStore creates a MemoryStore with the given code lifetime and
// starts its janitor. Call Close when the store is no longer needed.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	s := &MemoryStore{
		tickets: make(map[string]ticket),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

// Issue stores a fresh code for the email, replacing any live ticket.
func (s *MemoryStore) Issue(_ context.Context, email string, payload Payload) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickets[email] = ticket{
		payload:   payload,
		code:      code,
		expiresAt: s.now().Add(s.ttl),
	}
	return code, nil
}

// Verify checks the supplied code against the live ticket for the email.
// A matching code consumes the ticket; a mismatch leaves it in place.
func (s *MemoryStore) Verify(_ context.Context, email, code string) (Payload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[email]
	if !ok {
		return Payload{}, ErrNoTicket
	}
	if s.now().After(t.expiresAt) {
		delete(s.tickets, email)
		return Payload{}, ErrExpired
	}
	if t.code != code {
		return Payload{}, ErrCodeMismatch
	}
	delete(s.tickets, email)
	return t.payload, nil
}

// Evict discards any ticket for the email.
func (s *MemoryStore) Evict(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tickets, email)
	return nil
}

// Close stops the janitor goroutine.
func (s *MemoryStore) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *MemoryStore) janitor() {
	interval := s.ttl
	if interval <= 0 {
		interval = time.Minute
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-tick.C:
			now := s.now()
			s.mu.Lock()
			for email, t := range s.tickets {
				if now.After(t.expiresAt) {
					delete(s.tickets, email)
				}
			}
			s.mu.Unlock()
		}
	}
}
