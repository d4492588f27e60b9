package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const OwnerKey contextKey = "owner"

// AnonymousOwner owns every study set when bearer auth is disabled.
const AnonymousOwner = "anonymous"

type JWTAuth struct {
	Secret []byte
}

// NewJWTAuth returns nil for an empty secret, which disables auth.
func NewJWTAuth(secret string) *JWTAuth {
	if secret == "" {
		return nil
	}
	return &JWTAuth{Secret: []byte(secret)}
}

// GenerateToken signs an HS256 token whose subject becomes the request owner.
func (j *JWTAuth) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.Secret)
}

// Middleware validates the bearer token and attaches its subject as the owner.
// A nil JWTAuth lets every request through as AnonymousOwner.
func (j *JWTAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if j == nil {
			ctx := context.WithValue(r.Context(), OwnerKey, AnonymousOwner)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing authorization header", r)
			return
		}

		// Must be Bearer format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid authorization format", r)
			return
		}

		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return j.Secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired", r)
			} else {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid token", r)
			}
			return
		}

		if claims.Subject == "" {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Token has no subject", r)
			return
		}

		ctx := context.WithValue(r.Context(), OwnerKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOwner extracts the owner from request context.
func GetOwner(ctx context.Context) string {
	owner, ok := ctx.Value(OwnerKey).(string)
	if !ok || owner == "" {
		return AnonymousOwner
	}
	return owner
}

func writeError(w http.ResponseWriter, status int, code, message string, r *http.Request) {
	requestID := r.Header.Get(RequestIDHeader)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":       code,
			"message":    message,
			"request_id": requestID,
		},
	})
}
