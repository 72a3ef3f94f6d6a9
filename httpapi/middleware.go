package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/gatekit/gatekit"
)

type authResultContextKey struct{}

// AuthFromContext returns the auth result the bearer guard stored on the
// request context, if any.
func AuthFromContext(ctx context.Context) (*gatekit.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*gatekit.AuthResult)
	return res, ok
}

// guard validates the bearer token and injects the auth result into the
// request context. Missing, malformed, and rejected tokens all answer 401
// with the same body.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeError(w, s.log, gatekit.ErrUnauthorized)
			return
		}

		res, err := s.engine.Validate(r.Context(), token)
		if err != nil {
			writeError(w, s.log, gatekit.ErrUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireVerified layers on top of guard for routes that demand a
// verified email address.
func (s *Server) requireVerified(next http.Handler) http.Handler {
	return s.guard(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := AuthFromContext(r.Context())
		if !ok || !res.User.Verified {
			writeError(w, s.log, gatekit.ErrAccountUnverified)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
