package auth

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	appLog "confprog/internal/log"
)

// Sessions maps opaque bearer tokens to per-client values. Entries expire
// after ttl without use; each Lookup extends the lifetime.
type Sessions[T any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*sessionEntry[T]
}

type sessionEntry[T any] struct {
	value    T
	lastSeen time.Time
}

// NewSessions creates a table. ttl <= 0 disables expiry.
func NewSessions[T any](ttl time.Duration) *Sessions[T] {
	return &Sessions[T]{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]*sessionEntry[T]),
	}
}

// Issue stores v under a fresh random token.
func (s *Sessions[T]) Issue(v T) string {
	token := uuid.NewString()
	s.mu.Lock()
	s.entries[token] = &sessionEntry[T]{value: v, lastSeen: s.now()}
	s.mu.Unlock()
	return token
}

// Lookup returns the value for token if present and unexpired.
func (s *Sessions[T]) Lookup(token string) (T, bool) {
	var zero T
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[token]
	if !ok {
		return zero, false
	}
	if s.expired(e, now) {
		delete(s.entries, token)
		return zero, false
	}
	e.lastSeen = now
	return e.value, true
}

// Revoke forgets token.
func (s *Sessions[T]) Revoke(token string) {
	s.mu.Lock()
	delete(s.entries, token)
	s.mu.Unlock()
}

// Len returns the number of live and not-yet-purged entries.
func (s *Sessions[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// PurgeExpired drops every expired entry and returns how many were removed.
func (s *Sessions[T]) PurgeExpired() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for token, e := range s.entries {
		if s.expired(e, now) {
			delete(s.entries, token)
			n++
		}
	}
	return n
}

func (s *Sessions[T]) expired(e *sessionEntry[T], now time.Time) bool {
	return s.ttl > 0 && now.Sub(e.lastSeen) > s.ttl
}

// Purger is anything whose expired entries can be swept.
type Purger interface {
	PurgeExpired() int
}

// StartJanitor schedules p.PurgeExpired on the cron spec (standard five
// fields). The caller stops the returned scheduler.
func StartJanitor(spec string, p Purger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if n := p.PurgeExpired(); n > 0 {
			appLog.Info("expired client sessions purged", "count", n)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", spec, err)
	}
	c.Start()
	appLog.Debug("session janitor started", "spec", spec)
	return c, nil
}
