package memory

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/stacfed/internal/db"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestStore() (*Store, *clock) {
	c := &clock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewStore()
	s.now = c.now
	return s, c
}

func TestGetSet(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}

	got[0] = 'x'
	again, _ := s.Get(ctx, "k")
	if string(again) != "v" {
		t.Error("Get should return a copy")
	}
}

func TestSetWithTTL_Expires(t *testing.T) {
	s, c := newTestStore()
	ctx := context.Background()

	if err := s.SetWithTTL(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "k"); !ok {
		t.Fatal("expected key to exist")
	}

	c.t = c.t.Add(2 * time.Minute)

	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("expired key should not exist")
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, db.ErrKeyNotFound) {
		t.Errorf("expected ErrKeyNotFound after expiry, got %v", err)
	}
	if len(s.items) != 0 {
		t.Error("expired key should be removed on access")
	}
}

func TestDelAndScan(t *testing.T) {
	s, c := newTestStore()
	ctx := context.Background()

	_ = s.Set(ctx, "stacfed:doc:landing:https://a/stac", []byte("1"))
	_ = s.Set(ctx, "stacfed:doc:conformance:https://a/stac", []byte("2"))
	_ = s.SetWithTTL(ctx, "stacfed:doc:landing:b", []byte("3"), time.Second)
	_ = s.Set(ctx, "other", []byte("4"))

	c.t = c.t.Add(time.Hour)

	keys, err := s.Scan(ctx, "stacfed:doc:*")
	if err != nil {
		t.Fatal(err)
	}
	slices.Sort(keys)
	want := []string{"stacfed:doc:conformance:https://a/stac", "stacfed:doc:landing:https://a/stac"}
	if !slices.Equal(keys, want) {
		t.Errorf("Scan = %v, want %v", keys, want)
	}

	if n, _ := s.Del(ctx, "other", "missing"); n != 1 {
		t.Errorf("Del removed %d, want 1", n)
	}
	if ok, _ := s.Exists(ctx, "other"); ok {
		t.Error("deleted key still exists")
	}
}

func TestClose(t *testing.T) {
	s, _ := newTestStore()
	ctx := context.Background()
	_ = s.Set(ctx, "k", []byte("v"))
	s.Close()
	if ok, _ := s.Exists(ctx, "k"); ok {
		t.Error("Close should drop entries")
	}
	if err := s.Ping(ctx); err != nil {
		t.Error(err)
	}
}

func TestGlob(t *testing.T) {
	tests := []struct {
		pattern, s string
		want       bool
	}{
		{"*", "", true},
		{"a*", "abc/def", true},
		{"a?c", "abc", true},
		{"a?c", "ac", false},
		{"*:landing:*", "p:landing:https://x", true},
		{"*:landing:*", "p:conformance:https://x", false},
		{"exact", "exact", true},
		{"exact", "exactly", false},
	}
	for _, tc := range tests {
		if got := glob(tc.pattern, tc.s); got != tc.want {
			t.Errorf("glob(%q, %q) = %v, want %v", tc.pattern, tc.s, got, tc.want)
		}
	}
}
