package middleware

import (
	"net/http"
	"strings"

	"github.com/confabhq/confab/internal/handlers"
	"github.com/confabhq/confab/internal/services"
)

// AuthMiddleware resolves the bearer token on incoming requests. Verification
// is local (or against the provider's JWKS); no session state is stored on
// this server.
type AuthMiddleware struct {
	verifier services.TokenVerifier
}

func NewAuthMiddleware(verifier services.TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Authenticate attaches the caller's identity to the request context when a
// valid bearer token is present. Requests without one pass through
// unauthenticated; open endpoints keep working and protected handlers reject
// on the missing identity.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		identity, err := m.verifier.Verify(r.Context(), token)
		if err != nil {
			// A bad token is worse than no token: reject instead of
			// downgrading the request to anonymous.
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		ctx := handlers.SetUserInContext(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth gates a route on a resolved identity. Runs inside
// Authenticate, so a missing identity means no token was sent.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handlers.GetUserFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, prefix))
}
