package memory

import "context"

type contextKey struct{}

// WithStore binds the active per-user store to the call context. The
// host sets this up before dispatching a tool call and the binding
// travels with the context value, so concurrent calls for different
// users cannot observe each other's store.
func WithStore(ctx context.Context, s *Store) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// StoreFromContext returns the store bound to the context, if any.
func StoreFromContext(ctx context.Context) (*Store, bool) {
	s, ok := ctx.Value(contextKey{}).(*Store)
	return s, ok
}
