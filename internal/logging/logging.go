// Package logging wraps the standard log package with the correlation id
// pulled from context, the way the teacher logs with fmt.Printf/log.Printf
// straight to stdout rather than through a structured logging library.
package logging

import (
	"context"
	"log"
)

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation id to ctx for later retrieval by
// Printf. Services never read ambient/thread-local state; the id flows
// through the context parameter explicitly, per the Design Notes.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationID returns the id attached by WithCorrelationID, or "" if none.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// Printf logs a line prefixed with the correlation id, if any.
func Printf(ctx context.Context, format string, args ...interface{}) {
	if id := CorrelationID(ctx); id != "" {
		log.Printf("[%s] "+format, append([]interface{}{id}, args...)...)
		return
	}
	log.Printf(format, args...)
}
