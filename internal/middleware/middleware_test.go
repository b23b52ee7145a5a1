package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"child-development-records/internal/platform/logger"
	"child-development-records/internal/platform/ratelimit"
	"child-development-records/internal/ports/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func claimsProbe(got *auth.Claims, ok *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, *ok = GetClaims(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthContext_DevHeaders(t *testing.T) {
	var (
		got auth.Claims
		ok  bool
	)
	h := AuthContext(nil)(claimsProbe(&got, &ok))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderDebugUserID, " user-1 ")
	req.Header.Set(HeaderDebugUserEmail, "a@example.com")
	req.Header.Set(HeaderDebugUserName, "Ana")
	h.ServeHTTP(httptest.NewRecorder(), req)

	require.True(t, ok)
	assert.Equal(t, auth.Claims{UserID: "user-1", Email: "a@example.com", Name: "Ana"}, got)

	ok = false
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}

func TestAuthContext_Bearer(t *testing.T) {
	var (
		got auth.Claims
		ok  bool
	)
	verifier := auth.VerifierFunc(func(ctx context.Context, token string) (auth.Claims, error) {
		if token != "good" {
			return auth.Claims{}, errors.New("bad token")
		}
		return auth.Claims{UserID: "user-2"}, nil
	})
	h := AuthContext(verifier)(claimsProbe(&got, &ok))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer good")
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.True(t, ok)
	assert.Equal(t, "user-2", got.UserID)

	// con verifier, los headers de debug se ignoran
	ok = false
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderDebugUserID, "user-1")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, ok)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, ok)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":             "",
		"Bearer":       "",
		"Basic abc":    "",
		"Bearer  abc ": "abc",
		"BEARER xyz":   "xyz",
	}
	for in, want := range cases {
		assert.Equal(t, want, bearerToken(in), "header %q", in)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := ratelimit.NewMemory(ratelimit.Rule{Limit: 1, Window: time.Minute})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := AuthContext(nil)(RateLimit(limiter, "test", logger.Nop())(next))

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set(HeaderDebugUserID, user)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("user-1").Code)

	rec := do("user-1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"RATE_LIMITED","message":"rate limit exceeded"}`, rec.Body.String())

	// el límite es por usuario
	assert.Equal(t, http.StatusOK, do("user-2").Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit_FailsOpen(t *testing.T) {
	h := RateLimit(failingLimiter{}, "test", logger.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
