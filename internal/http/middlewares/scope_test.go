package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mw "github.com/dropDatabas3/checkjohn/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/checkjohn/internal/jwt"
	"github.com/dropDatabas3/checkjohn/internal/rate"
)

func identityWithScope(scope string) *jwtx.Identity {
	return &jwtx.Identity{
		Subject: "user-42",
		Claims:  map[string]any{"scope": scope},
	}
}

// withIdentity simula RequireAuth ya aplicado.
func withIdentity(id *jwtx.Identity, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(mw.WithIdentity(r.Context(), id)))
	})
}

func TestRequireScopes_AllPresent(t *testing.T) {
	var called bool
	h := withIdentity(identityWithScope("profile api:read"),
		mw.RequireScopes("api:read", "profile")(echoSubject(t, &called)))

	rec := doRequest(h, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, called)
}

func TestRequireScopes_MissingScopeIs403(t *testing.T) {
	var called bool
	h := withIdentity(identityWithScope("profile"),
		mw.RequireScopes("api:write")(echoSubject(t, &called)))

	rec := doRequest(h, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, called)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "insufficient_scope")
}

func TestRequireScopes_NoIdentityIs401(t *testing.T) {
	var called bool
	h := mw.RequireScopes("profile")(echoSubject(t, &called))

	rec := doRequest(h, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequireScopes_InvalidConfigPanics(t *testing.T) {
	assert.Panics(t, func() { mw.RequireScopes("NO VALE") })
}

func TestWithRateLimit_DeniesOverLimit(t *testing.T) {
	l := rate.NewMemoryLimiter(2, time.Hour)
	var calls int
	h := mw.WithRateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/me", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, do().Code)
	require.Equal(t, http.StatusOK, do().Code)

	rec := do()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, 2, calls, "handler must not run for denied requests")
}

func TestWithRateLimit_SeparatesClients(t *testing.T) {
	l := rate.NewMemoryLimiter(1, time.Hour)
	h := mw.WithRateLimit(l)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote, xff string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if xff != "" {
			req.Header.Set("X-Forwarded-For", xff)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, do("10.0.0.1:1111", ""))
	require.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:2222", ""), "same IP, different port")
	require.Equal(t, http.StatusOK, do("10.0.0.2:1111", ""), "different IP")
	require.Equal(t, http.StatusOK, do("10.0.0.1:3333", "203.0.113.9, 10.0.0.1"), "XFF first hop wins")
}
