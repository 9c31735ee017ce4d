package middleware

import (
	"context"
	"net/http"
	"strings"

	"kplays-api/internal/model"
	"kplays-api/pkg/apierror"
	"kplays-api/pkg/response"
)

// SessionKey is the key for storing the admin session in request context.
const SessionKey contextKey = "session"

// SessionHeader carries a session token for clients that cannot set Authorization.
const SessionHeader = "X-Session-Token"

// SessionValidator resolves session tokens. service.AuthService satisfies it.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (*model.Session, error)
	IsAdmin(sess *model.Session) bool
}

// TokenFromRequest extracts a session token from the Authorization bearer
// header or X-Session-Token.
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}

// NewSessionMiddleware attaches the caller's session to the context when the
// request carries a valid token. Requests without one pass through untouched.
func NewSessionMiddleware(auth SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" || auth == nil {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := auth.Validate(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminMiddleware rejects requests whose session is missing (401) or does
// not belong to the admin (403). It must run after the session middleware.
func NewAdminMiddleware(auth SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := GetSession(r.Context())
			if sess == nil {
				response.Error(w, apierror.Unauthorized("Sign in required"))
				return
			}
			if auth == nil || !auth.IsAdmin(sess) {
				Logger(r.Context()).Warn("admin access denied", "email", sess.Email, "path", r.URL.Path)
				response.Error(w, apierror.Forbidden("Admin access only"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetSession retrieves the session from request context.
func GetSession(ctx context.Context) *model.Session {
	if sess, ok := ctx.Value(SessionKey).(*model.Session); ok {
		return sess
	}
	return nil
}
