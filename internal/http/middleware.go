package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/auth"
	"github.com/kassandra-app/kassandra/internal/httputil"
	"github.com/kassandra-app/kassandra/internal/identity"
)

// SessionCookieName carries the opaque session token. HttpOnly, long-lived,
// unsigned (the token itself is the secret).
const SessionCookieName = "kassandra_session"

// ContextKey is a type for context keys to avoid collisions
type ContextKey string

const UserContextKey ContextKey = "session_user"

// SecurityHeaders adds security-related headers to all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")

		next.ServeHTTP(w, r)
	})
}

// SessionEngine is the slice of the engine the middleware resolves
// identities through.
type SessionEngine interface {
	ResolveSession(ctx context.Context, token string) (*identity.User, string, error)
	GetUser(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// TokenVerifier validates bearer access tokens. *auth.PasetoService is the
// production implementation.
type TokenVerifier interface {
	VerifyToken(token string) (*auth.TokenClaims, error)
}

// SessionMiddleware resolves the request identity: a bearer access token
// when presented, otherwise the session cookie, creating an anonymous
// identity on first contact.
type SessionMiddleware struct {
	engine       SessionEngine
	tokens       TokenVerifier
	maxAge       time.Duration
	isProduction bool
}

func NewSessionMiddleware(engine SessionEngine, tokens TokenVerifier, maxAge time.Duration, isProduction bool) *SessionMiddleware {
	return &SessionMiddleware{
		engine:       engine,
		tokens:       tokens,
		maxAge:       maxAge,
		isProduction: isProduction,
	}
}

// WithSession attaches the resolved user to the request context. A new or
// re-bound cookie token is written back; a presented Authorization header
// takes precedence over the cookie and must be valid.
func (m *SessionMiddleware) WithSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if header := r.Header.Get("Authorization"); header != "" {
			m.withBearer(w, r, next, header)
			return
		}

		var inbound string
		if c, err := r.Cookie(SessionCookieName); err == nil {
			inbound = c.Value
		}

		user, token, err := m.engine.ResolveSession(r.Context(), inbound)
		if err != nil {
			httputil.RespondAppError(w, err)
			return
		}

		if token != inbound {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    token,
				Path:     "/",
				HttpOnly: true,
				Secure:   m.isProduction,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   int(m.maxAge.Seconds()),
			})
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withBearer applies the identity named by a verified access token. Explicit
// credentials fail closed: a bad header is a 401, never a silent fallback to
// the cookie.
func (m *SessionMiddleware) withBearer(w http.ResponseWriter, r *http.Request, next http.Handler, header string) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		httputil.RespondErrorWithCode(w, "malformed authorization header", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	claims, err := m.tokens.VerifyToken(strings.TrimPrefix(header, prefix))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid or expired access token", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid or expired access token", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	user, err := m.engine.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			httputil.RespondErrorWithCode(w, "invalid or expired access token", httputil.CodeUnauthorized, http.StatusUnauthorized)
			return
		}
		httputil.RespondAppError(w, err)
		return
	}

	ctx := context.WithValue(r.Context(), UserContextKey, user)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// UserFromContext extracts the session user from the request context
func UserFromContext(ctx context.Context) (*identity.User, bool) {
	user, ok := ctx.Value(UserContextKey).(*identity.User)
	return user, ok
}

// getClientIP returns the request's client IP without the port. RealIP
// middleware has already rewritten RemoteAddr when behind a proxy.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
