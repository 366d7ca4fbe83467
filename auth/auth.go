// Package auth resolves the calling member from an HS256 bearer token.
// The token subject is the caller identity passed to every ledger mutation.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DevCallerHeader carries the caller when no secret is configured.
const DevCallerHeader = "X-Caller"

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrEmptySecret  = errors.New("auth: empty secret")
)

// ParseJWT validates tokenString and returns its subject.
func ParseJWT(tokenString string, secret []byte) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return "", errors.Join(ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

// IssueToken signs a token for subject valid for ttl (no expiry when ttl is 0).
func IssueToken(subject string, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", ErrEmptySecret
	}
	claims := jwt.RegisteredClaims{
		Subject:  subject,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

type contextKey string

const contextKeyCaller contextKey = "auth.caller"

func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, contextKeyCaller, caller)
}

// CallerFromContext returns "" when no caller was resolved.
func CallerFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if caller, ok := ctx.Value(contextKeyCaller).(string); ok {
		return caller
	}
	return ""
}

// Middleware resolves the caller for every request. Requests without a
// usable identity pass through with no caller; handlers that mutate state
// reject them.
type Middleware struct {
	Secret []byte

	// OnError writes the response for a token that fails validation.
	// Defaults to a JSON {"error","details"} body with status 401.
	OnError func(w http.ResponseWriter, r *http.Request, err error)
}

func NewMiddleware(secret []byte) *Middleware {
	return &Middleware{Secret: secret}
}

func (m *Middleware) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(m.Secret) == 0 {
			if caller := r.Header.Get(DevCallerHeader); caller != "" {
				r = r.WithContext(WithCaller(r.Context(), caller))
			}
			next.ServeHTTP(w, r)
			return
		}

		token := extractBearer(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		subject, err := ParseJWT(token, m.Secret)
		if err != nil {
			if m.OnError != nil {
				m.OnError(w, r, err)
			} else {
				writeUnauthorized(w, err)
			}
			return
		}
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), subject)))
	})
}

func extractBearer(r *http.Request) string {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   "Invalid token",
		"details": err.Error(),
	})
}
