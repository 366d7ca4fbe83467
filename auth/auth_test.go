package auth_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/solar-credits/auth"
)

var secret = []byte("test-secret")

func TestIssueAndParse(t *testing.T) {
	token, err := auth.IssueToken("alice", secret, time.Hour)
	require.NoError(t, err)

	subject, err := auth.ParseJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)

	_, err = auth.ParseJWT(token, []byte("other"))
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestParseJWT_Rejects(t *testing.T) {
	_, err := auth.ParseJWT("", secret)
	assert.ErrorIs(t, err, auth.ErrMissingToken)

	old := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "alice",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	signed, err := old.SignedString(secret)
	require.NoError(t, err)
	_, err = auth.ParseJWT(signed, secret)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{}).SignedString(secret)
	require.NoError(t, err)
	_, err = auth.ParseJWT(noSubject, secret)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.CallerFromContext(r.Context())
	})
	token, err := auth.IssueToken("bob", secret, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		secret     []byte
		header     string
		value      string
		wantCode   int
		wantCaller string
	}{
		{"bearer token", secret, "Authorization", "Bearer " + token, http.StatusOK, "bob"},
		{"no token", secret, "", "", http.StatusOK, ""},
		{"bad token", secret, "Authorization", "Bearer nope", http.StatusUnauthorized, ""},
		{"dev header ignored with secret", secret, auth.DevCallerHeader, "mallory", http.StatusOK, ""},
		{"dev header without secret", nil, auth.DevCallerHeader, "carol", http.StatusOK, "carol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			rec := httptest.NewRecorder()
			auth.NewMiddleware(tt.secret).Wrap(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantCaller, seen)
		})
	}
}

func TestMiddleware_InvalidTokenBody(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("next must not run for an invalid token")
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer nope")

	// Default: JSON error body
	rec := httptest.NewRecorder()
	auth.NewMiddleware(secret).Wrap(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Invalid token", body["error"])
	assert.Contains(t, body["details"], "invalid token")

	// Custom writer receives the parse error
	var got error
	m := auth.NewMiddleware(secret)
	m.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		got = err
		w.WriteHeader(http.StatusTeapot)
	}
	rec = httptest.NewRecorder()
	m.Wrap(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.True(t, errors.Is(got, auth.ErrInvalidToken))
}
