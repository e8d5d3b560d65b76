package identity

import (
	"context"

	"github.com/quickserve/pos-order/internal/apperr"
)

// Identity is the authenticated caller for the duration of one operation.
type Identity struct {
	ActorID int64
	Role    string
}

type ctxKey struct{}

// WithIdentity returns a context carrying the caller identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext resolves the caller identity. Lifecycle operations call this
// before any mutation; a missing identity fails the request up front.
func FromContext(ctx context.Context) (Identity, error) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok || id.ActorID <= 0 {
		return Identity{}, apperr.Unauthorized("caller identity is missing or invalid")
	}

	return id, nil
}
