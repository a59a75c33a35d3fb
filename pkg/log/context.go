package log

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context.
// If no logger is found, the global logger is returned.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithConn derives a per-connection logger tagged with a fresh connection id
// and the peer address, and stores it in the context.
func WithConn(ctx context.Context, remoteAddr string) (context.Context, zerolog.Logger) {
	child := Ctx(ctx).With().
		Str(FieldConnID, uuid.NewString()).
		Str(FieldRemoteAddr, remoteAddr).
		Logger()
	return WithLogger(ctx, child), child
}
