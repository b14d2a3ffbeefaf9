package doccache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stacfed/internal/db"
	"github.com/kailas-cloud/stacfed/internal/domain"
)

type mockFetcher struct {
	landing domain.Landing
	err     error
	calls   int
}

func (m *mockFetcher) Landing(_ context.Context, _ string) (domain.Landing, error) {
	m.calls++
	return m.landing, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn  func(ctx context.Context, key string) ([]byte, error)
	setFn  func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	delFn  func(ctx context.Context, keys ...string) (int, error)
	scanFn func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *mockKVStore) Del(ctx context.Context, keys ...string) (int, error) {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return len(keys), nil
}

func (m *mockKVStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}

func newTestCache(t *testing.T, inner *mockFetcher) (*CachedLandings, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	c := New(inner, ms, time.Minute, "test:", nil, zap.NewNop())
	return c, ms
}
