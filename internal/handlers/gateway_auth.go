package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	RoleAnon          = "anon"
	RoleAuthenticated = "authenticated"
	RoleServiceRole   = "service_role"
)

var ErrInvalidGatewayKey = errors.New("invalid gateway key")

type roleContextKey struct{}

// WithRole stores the caller's gateway role on the context.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleContextKey{}, role)
}

// RoleFromContext returns the gateway role, if the request passed GatewayAuth.
func RoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(roleContextKey{}).(string)
	return role, ok
}

// GatewayAuth requires an HS256 key signed with secret, taken from the
// Authorization bearer or the apikey header. An empty secret disables the check.
func GatewayAuth(secret string, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := gatewayKey(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing authorization header")
				return
			}

			role, err := VerifyGatewayKey(secret, key)
			if err != nil {
				log.Debug("gateway key rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid JWT")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithRole(r.Context(), role)))
		})
	}
}

// VerifyGatewayKey checks the signature and expiry of key and returns its role claim.
func VerifyGatewayKey(secret, key string) (string, error) {
	token, err := jwt.Parse(key, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", ErrInvalidGatewayKey
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidGatewayKey
	}

	role, _ := claims["role"].(string)
	switch role {
	case RoleAnon, RoleAuthenticated, RoleServiceRole:
		return role, nil
	default:
		return "", ErrInvalidGatewayKey
	}
}

// SignGatewayKey mints a key for role that expires after ttl. Used by tooling and tests.
func SignGatewayKey(secret, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"role": role,
		"iss":  "chatweet",
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}

func gatewayKey(r *http.Request) (string, bool) {
	parts := strings.SplitN(strings.TrimSpace(r.Header.Get("Authorization")), " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && strings.TrimSpace(parts[1]) != "" {
		return strings.TrimSpace(parts[1]), true
	}
	if key := strings.TrimSpace(r.Header.Get("apikey")); key != "" {
		return key, true
	}
	return "", false
}
