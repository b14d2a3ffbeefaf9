package logger

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker", "test"} {
		if _, err := NewLogger(env, ""); err != nil {
			t.Errorf("%s: %v", env, err)
		}
	}
	if _, err := NewLogger("staging", ""); err == nil {
		t.Error("expected error for unknown env")
	}
	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Error("expected error for unknown level")
	}

	l, err := NewLogger("prod", "warn")
	if err != nil {
		t.Fatal(err)
	}
	if l.Core().Enabled(zap.InfoLevel) || !l.Core().Enabled(zap.WarnLevel) {
		t.Error("level override not applied")
	}
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a nop logger")
	}
	Annotate(context.Background(), zap.Int("ignored", 1))
	if got := Annotations(context.Background()); got != nil {
		t.Errorf("annotations outside a request = %v", got)
	}
}

func TestAnnotate_CollectsFieldsConcurrently(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Annotate(ctx, zap.Int("upstream", i))
		}()
	}
	wg.Wait()

	fields := Annotations(ctx)
	if len(fields) != 8 {
		t.Fatalf("got %d fields, want 8", len(fields))
	}

	FromContext(ctx).Info("http_request", fields...)
	if logs.Len() != 1 || len(logs.All()[0].Context) != 8 {
		t.Errorf("canonical line = %+v", logs.All())
	}
}
