package redis

import (
	"time"

	"github.com/redis/rueidis"
)

// NewStoreForTest wraps a (mock) rueidis client. A positive localTTL routes Get
// through DoCache.
func NewStoreForTest(c rueidis.Client, localTTL time.Duration) *Store {
	return &Store{client: c, localTTL: localTTL}
}
