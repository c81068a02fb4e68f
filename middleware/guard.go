package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/santokhan/authkit"
	"github.com/santokhan/authkit/permission"
)

// Authenticator verifies access tokens. *authkit.Engine implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*authkit.Claims, error)
}

type claimsContextKey struct{}

// ClaimsFromContext returns the claims Guard stored for the request.
func ClaimsFromContext(ctx context.Context) (*authkit.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*authkit.Claims)
	return claims, ok
}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, claims *authkit.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// Guard rejects requests without a valid bearer access token. Expired and
// invalid tokens answer 401; an engine outage answers 503.
func Guard(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth == nil {
				unauthorized(w)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			claims, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				status := authkit.HTTPStatus(err)
				if status == http.StatusUnauthorized {
					unauthorized(w)
					return
				}
				http.Error(w, http.StatusText(status), status)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole lets the request through only when the claims Guard stored
// carry one of allowed.
func RequireRole(allowed ...permission.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				unauthorized(w)
				return
			}

			role, err := permission.ParseRole(claims.Role)
			if err == nil {
				err = permission.Require(role, allowed...)
			}
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken extracts the token from an Authorization header value. The
// scheme is matched case-insensitively.
func BearerToken(value string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(value), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}

	return token, true
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="authkit"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
