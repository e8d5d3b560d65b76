package authn

import (
	"net/http"
	"strconv"

	"github.com/quickserve/pos-order/internal/service/models/identity"
)

const (
	actorHeader = "X-Actor-ID"
	roleHeader  = "X-Actor-Role"
)

// NewIdentityMiddleware resolves the authenticated caller from request
// headers into the context. Mutating operations resolve the identity again
// before any write and fail unauthorized when it is absent, so this
// middleware never rejects by itself: read endpoints stay open.
func NewIdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(actorHeader)
		if raw == "" {
			next.ServeHTTP(w, r)

			return
		}

		actorID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || actorID <= 0 {
			// An unparseable identity stays unresolved; the engine
			// rejects the mutation before any side effect.
			next.ServeHTTP(w, r)

			return
		}

		ctx := identity.WithIdentity(r.Context(), identity.Identity{
			ActorID: actorID,
			Role:    r.Header.Get(roleHeader),
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
