package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/stacfed/internal/db"
)

// delBatch bounds the number of keys per DEL command.
const delBatch = 500

// Get retrieves a value by key, through the client-side cache when enabled.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var res rueidis.RedisResult
	if s.localTTL > 0 {
		res = s.client.DoCache(ctx, s.client.B().Get().Key(key).Cache(), s.localTTL)
	} else {
		res = s.client.Do(ctx, s.client.B().Get().Key(key).Build())
	}

	data, err := res.AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a value at the given key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	cmd := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// SetWithTTL stores a value that expires after ttl.
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.client.B().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Del removes keys in batches and returns how many existed.
func (s *Store) Del(ctx context.Context, keys ...string) (int, error) {
	removed := 0
	for start := 0; start < len(keys); start += delBatch {
		end := min(start+delBatch, len(keys))
		n, err := s.client.Do(ctx, s.client.B().Del().Key(keys[start:end]...).Build()).AsInt64()
		if err != nil {
			return removed, &db.Error{Op: db.OpDel, Err: err}
		}
		removed += int(n)
	}
	return removed, nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	count, err := s.client.Do(ctx, s.client.B().Exists().Key(key).Build()).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return count > 0, nil
}

// Scan collects every key matching pattern with SCAN cursors.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.client.Do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			return keys, nil
		}
	}
}
