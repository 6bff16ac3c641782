package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/reciperag/session-cache/internal/security"
	"github.com/reciperag/session-cache/internal/storage"
)

type contextKey string

const authStateKey contextKey = "authState"

const (
	// AccessTokenCookie is the credential the backend selector keys off.
	AccessTokenCookie = "access_token"
	// GuestIDCookie scopes anonymous visitors to their own session entry.
	GuestIDCookie = "reciperag_guest"
)

// AuthStateMiddleware observes the visitor's credential and attaches the
// resulting storage.AuthState to the request context. It is not a gate:
// guests pass through with a guest-scoped state.
type AuthStateMiddleware struct {
	jwtManager *security.JWTManager
}

// NewAuthStateMiddleware creates the auth-state detection middleware.
func NewAuthStateMiddleware(jwtManager *security.JWTManager) *AuthStateMiddleware {
	return &AuthStateMiddleware{jwtManager: jwtManager}
}

// Detect resolves the visitor's auth state. The credential check is
// deliberately lenient: a validation failure (or a stale cookie) degrades to
// guest mode rather than an error, which can route a write to the ephemeral
// backend mid-session.
func (m *AuthStateMiddleware) Detect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := storage.AuthState{}

		if token := bearerToken(r); token != "" {
			if claims, err := m.jwtManager.ValidateAccessToken(token); err == nil {
				state = storage.AuthState{
					Authenticated: true,
					Subject:       "user:" + claims.UserID.String(),
				}
			}
		}

		if !state.Authenticated {
			state.Subject = "guest:" + guestID(w, r)
		}

		ctx := context.WithValue(r.Context(), authStateKey, state)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken pulls the access token from the Authorization header or, for
// browser callers, the access-token cookie.
func bearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// guestID returns the visitor's guest id, minting one (and setting the
// cookie) on first contact.
func guestID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(GuestIDCookie); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     GuestIDCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// GetAuthState gets the detected auth state from context.
func GetAuthState(ctx context.Context) (storage.AuthState, bool) {
	state, ok := ctx.Value(authStateKey).(storage.AuthState)
	return state, ok
}
