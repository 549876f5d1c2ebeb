// Package session is the explicit store for short-lived per-user
// conversational state: awaiting-input markers, browse position, admin
// wizard steps. Entries expire after a per-kind idle threshold and are
// swept by the cleanup job; acting on a missing entry surfaces
// ErrExpired, a recoverable condition.
package session

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

var ErrExpired = errors.New("session expired")

type Kind string

const (
	KindAwaitingProof   Kind = "awaiting_proof"
	KindAwaitingPattern Kind = "awaiting_pattern"
	KindPremiumFilter   Kind = "premium_filter"
	KindBrowse          Kind = "browse"
	KindAdminStep       Kind = "admin_step"
)

const (
	defaultTTL = time.Hour
	browseTTL  = 4 * time.Hour
)

func ttl(kind Kind) time.Duration {
	if kind == KindBrowse {
		return browseTTL
	}
	return defaultTTL
}

type key struct {
	userID int64
	kind   Kind
}

type entry struct {
	value    interface{}
	storedAt time.Time
}

type Store struct {
	mu      sync.Mutex
	entries map[key]entry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		entries: make(map[key]entry),
		now:     time.Now,
	}
}

func (s *Store) Set(userID int64, kind Kind, value interface{}) {
	s.mu.Lock()
	s.entries[key{userID, kind}] = entry{value: value, storedAt: s.now()}
	s.mu.Unlock()
}

// Get returns the stored value, or ErrExpired when the entry is absent or
// past its idle threshold. Expired entries are removed on access.
func (s *Store) Get(userID int64, kind Kind) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := key{userID, kind}
	e, ok := s.entries[k]
	if !ok {
		return nil, ErrExpired
	}
	if s.now().Sub(e.storedAt) > ttl(kind) {
		delete(s.entries, k)
		return nil, ErrExpired
	}
	return e.value, nil
}

func (s *Store) Clear(userID int64, kind Kind) {
	s.mu.Lock()
	delete(s.entries, key{userID, kind})
	s.mu.Unlock()
}

// GC evicts every expired entry and returns how many were removed.
func (s *Store) GC() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for k, e := range s.entries {
		if now.Sub(e.storedAt) > ttl(k.kind) {
			delete(s.entries, k)
			evicted++
		}
	}
	return evicted
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
