// Package memory implements db.Store in process memory with lazy TTL expiry.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/stacfed/internal/db"
)

var _ db.Store = (*Store)(nil)

type entry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store is a thread-safe map with per-key expiry. Expired keys are removed on access.
type Store struct {
	mu    sync.RWMutex
	items map[string]entry
	now   func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{items: make(map[string]entry), now: time.Now}
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops all entries.
func (s *Store) Close() {
	s.mu.Lock()
	s.items = make(map[string]entry)
	s.mu.Unlock()
}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(context.Context, time.Duration) error { return nil }

// Get returns a copy of the stored value.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		return nil, db.ErrKeyNotFound
	}
	if e.expired(s.now()) {
		s.mu.Lock()
		if cur, still := s.items[key]; still && cur.expired(s.now()) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores a value without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl. A non-positive ttl never expires.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
	return nil
}

// Del removes keys and returns how many live ones existed.
func (s *Store) Del(_ context.Context, keys ...string) (int, error) {
	now := s.now()
	removed := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		if e, ok := s.items[k]; ok {
			if !e.expired(now) {
				removed++
			}
			delete(s.items, k)
		}
	}
	return removed, nil
}

// Exists reports whether a live key is present.
func (s *Store) Exists(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()
	return ok && !e.expired(s.now()), nil
}

// Scan returns live keys matching a Redis MATCH style pattern. Only * and ? are
// special; * also spans '/' so URL-bearing keys match.
func (s *Store) Scan(_ context.Context, pattern string) ([]string, error) {
	now := s.now()
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k, e := range s.items {
		if !e.expired(now) && glob(pattern, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func glob(pattern, s string) bool {
	p, str := []rune(pattern), []rune(s)
	pi, si := 0, 0
	star, mark := -1, 0
	for si < len(str) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == str[si]):
			pi++
			si++
		case pi < len(p) && p[pi] == '*':
			star, mark = pi, si
			pi++
		case star >= 0:
			pi = star + 1
			mark++
			si = mark
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
