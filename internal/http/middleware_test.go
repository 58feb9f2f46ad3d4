package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/kassandra-app/kassandra/internal/apperr"
	"github.com/kassandra-app/kassandra/internal/auth"
	"github.com/kassandra-app/kassandra/internal/identity"
)

type stubSessionEngine struct {
	users    map[uuid.UUID]*identity.User
	resolved *identity.User
	token    string
}

func (s *stubSessionEngine) ResolveSession(_ context.Context, token string) (*identity.User, string, error) {
	if token == "" {
		token = s.token
	}
	return s.resolved, token, nil
}

func (s *stubSessionEngine) GetUser(_ context.Context, id uuid.UUID) (*identity.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, apperr.NotFound("user %s", id)
}

func pasetoForTest(t *testing.T) *auth.PasetoService {
	t.Helper()
	svc, err := auth.NewPasetoService([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return svc
}

// captureUser records the context user the middleware hands downstream.
func captureUser(into **identity.User) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if u, ok := UserFromContext(r.Context()); ok {
			*into = u
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestWithSessionSetsCookieOnFirstContact(t *testing.T) {
	anon := &identity.User{ID: uuid.New(), Kind: identity.KindAnonymous}
	engine := &stubSessionEngine{resolved: anon, token: "fresh-token"}
	mw := NewSessionMiddleware(engine, pasetoForTest(t), 24*time.Hour, false)

	var seen *identity.User
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	mw.WithSession(captureUser(&seen)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, anon.ID, seen.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, SessionCookieName, cookies[0].Name)
	require.Equal(t, "fresh-token", cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)
}

func TestWithSessionBearerAppliesTokenIdentity(t *testing.T) {
	anon := &identity.User{ID: uuid.New(), Kind: identity.KindAnonymous}
	registered := &identity.User{ID: uuid.New(), Kind: identity.KindRegistered, Email: "jane@example.com"}
	engine := &stubSessionEngine{
		users:    map[uuid.UUID]*identity.User{registered.ID: registered},
		resolved: anon,
		token:    "cookie-token",
	}
	paseto := pasetoForTest(t)
	mw := NewSessionMiddleware(engine, paseto, 24*time.Hour, false)

	token, err := paseto.CreateToken(registered.ID, string(identity.KindRegistered), time.Minute)
	require.NoError(t, err)

	var seen *identity.User
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-token"})
	mw.WithSession(captureUser(&seen)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, registered.ID, seen.ID, "bearer token overrides the cookie identity")
	require.Empty(t, rec.Result().Cookies(), "bearer requests never rewrite the session cookie")
}

func TestWithSessionBearerInvalidToken(t *testing.T) {
	engine := &stubSessionEngine{resolved: &identity.User{ID: uuid.New()}, token: "t"}
	mw := NewSessionMiddleware(engine, pasetoForTest(t), 24*time.Hour, false)

	var seen *identity.User
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	mw.WithSession(captureUser(&seen)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Nil(t, seen, "no fallback to the cookie on a bad header")
}

func TestWithSessionBearerExpiredToken(t *testing.T) {
	user := &identity.User{ID: uuid.New(), Kind: identity.KindRegistered}
	engine := &stubSessionEngine{users: map[uuid.UUID]*identity.User{user.ID: user}}
	paseto := pasetoForTest(t)
	mw := NewSessionMiddleware(engine, paseto, 24*time.Hour, false)

	token, err := paseto.CreateToken(user.ID, string(identity.KindRegistered), -time.Minute)
	require.NoError(t, err)

	var seen *identity.User
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	mw.WithSession(captureUser(&seen)).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Nil(t, seen)
}

func TestWithSessionBearerUnknownUser(t *testing.T) {
	engine := &stubSessionEngine{users: map[uuid.UUID]*identity.User{}}
	paseto := pasetoForTest(t)
	mw := NewSessionMiddleware(engine, paseto, 24*time.Hour, false)

	token, err := paseto.CreateToken(uuid.New(), string(identity.KindRegistered), time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	mw.WithSession(captureUser(new(*identity.User))).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWithSessionMalformedAuthorizationHeader(t *testing.T) {
	engine := &stubSessionEngine{resolved: &identity.User{ID: uuid.New()}, token: "t"}
	mw := NewSessionMiddleware(engine, pasetoForTest(t), 24*time.Hour, false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	mw.WithSession(captureUser(new(*identity.User))).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
