package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// TokenHeader is the response/request header carrying the bearer token.
const TokenHeader = "x-auth-token"

// TokenCookie is the cookie set by the GitHub sign-in flow.
const TokenCookie = "token"

// contextKey is unexported so no other package can read or shadow the user id.
type contextKey string

const userIDKey contextKey = "userID"

var errNoToken = errors.New("auth: no token")

// RequireAuth rejects requests without a valid token with 401 and stores the
// authenticated user id in the request context otherwise.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"unauthorized","message":"valid authentication required"}`)) //nolint:errcheck
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// WithUserID returns a copy of ctx carrying userID. Handler tests use it to
// fake an authenticated request.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
// Returns ("", false) for anonymous requests.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// extractUserID looks for a token in, in order: the x-auth-token header, an
// "Authorization: Bearer" header, and the token cookie.
func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	if tok := strings.TrimSpace(r.Header.Get(TokenHeader)); tok != "" {
		return tokens.Validate(tok)
	}

	if h := r.Header.Get("Authorization"); h != "" {
		tok, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(tok) == "" {
			return "", errNoToken
		}
		return tokens.Validate(strings.TrimSpace(tok))
	}

	cookie, err := r.Cookie(TokenCookie)
	if err != nil {
		return "", errNoToken
	}
	return tokens.Validate(cookie.Value)
}
