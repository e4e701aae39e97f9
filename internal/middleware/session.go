package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/auxillium/backend/internal/model/account"
	"github.com/auxillium/backend/pkg/utils"
)

type contextKey struct{}

var sessionKey contextKey

// SessionResolver turns a bearer token into a session variant.
type SessionResolver interface {
	Resolve(token string) (account.Session, error)
}

// RequireSession rejects requests whose identity or role cannot be
// resolved before any guarded handler runs. "Role unknown" is a 401,
// never a default role.
func RequireSession(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if token == "" || token == header {
				// Browsers cannot set headers on WebSocket/SSE requests.
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				utils.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			sess, err := resolver.Resolve(token)
			if err != nil {
				utils.RespondError(w, http.StatusUnauthorized, "invalid session")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFrom extracts the resolved session from the request context.
func SessionFrom(ctx context.Context) (account.Session, bool) {
	sess, ok := ctx.Value(sessionKey).(account.Session)
	return sess, ok
}
