package logger

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type ctxKey struct{}

// request carries the request-scoped logger and the fields handlers add to the
// canonical log line.
type request struct {
	logger *zap.Logger

	mu     sync.Mutex
	fields []zap.Field
}

// ContextWithLogger stores a request-scoped logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, &request{logger: logger})
}

// FromContext extracts the logger. Returns zap.NewNop() if none was stored.
func FromContext(ctx context.Context) *zap.Logger {
	if r, ok := ctx.Value(ctxKey{}).(*request); ok {
		return r.logger
	}
	return zap.NewNop()
}

// Annotate adds fields to the request's canonical log line. Safe from the
// goroutines of a federated fan-out; a no-op outside a request.
func Annotate(ctx context.Context, fields ...zap.Field) {
	r, ok := ctx.Value(ctxKey{}).(*request)
	if !ok {
		return
	}
	r.mu.Lock()
	r.fields = append(r.fields, fields...)
	r.mu.Unlock()
}

// Annotations returns a copy of the fields added with Annotate.
func Annotations(ctx context.Context) []zap.Field {
	r, ok := ctx.Value(ctxKey{}).(*request)
	if !ok {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]zap.Field(nil), r.fields...)
}
