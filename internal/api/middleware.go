/**
 * @description
 * This file contains custom middleware for the HTTP router. Three identities
 * reach this service: students (campus-issued JWTs), operators (console
 * session tokens), and the payment gateway (shared internal key). Each gets
 * its own middleware that validates the credential and stashes the caller's
 * identity in the request context.
 *
 * @dependencies
 * - context, net/http, strings: Standard Go libraries.
 * - github.com/golang-jwt/jwt/v5: JWT parsing and validation.
 * - github.com/google/uuid: Account identifiers.
 */

package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/autoprint/print-service/internal/app"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	accountIDKey  contextKey = "accountID"
	operatorIDKey contextKey = "operatorID"
	sessionKey    contextKey = "sessionToken"
)

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return "", false
	}
	return token, true
}

// StudentAuthMiddleware validates the campus identity provider's HS256 JWT
// and puts the student's account id into the request context. The token's
// `sub` claim carries the account UUID.
func StudentAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			subject, ok := claims["sub"].(string)
			if !ok {
				http.Error(w, "Account ID not found in token", http.StatusUnauthorized)
				return
			}
			accountID, err := uuid.Parse(subject)
			if err != nil {
				http.Error(w, "Malformed account ID in token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAccountID retrieves the authenticated student's account id from the
// request context.
func GetAccountID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(accountIDKey).(uuid.UUID)
	return id, ok
}

// OperatorAuthMiddleware resolves the console session token against the
// session store. Resolution refreshes the sliding expiry as a side effect.
func OperatorAuthMiddleware(service *app.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			operatorID, err := service.ResolveOperator(r.Context(), token)
			if err != nil {
				http.Error(w, "Session expired or invalid", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), operatorIDKey, operatorID)
			ctx = context.WithValue(ctx, sessionKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOperatorID retrieves the authenticated operator's account id from the
// request context.
func GetOperatorID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(operatorIDKey).(uuid.UUID)
	return id, ok
}

// GetSessionToken retrieves the operator's session token from the request
// context. Used by logout.
func GetSessionToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(sessionKey).(string)
	return token, ok
}

// InternalKeyMiddleware guards server-to-server endpoints (the payment
// gateway callback) with a shared secret header.
func InternalKeyMiddleware(internalAPIKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get("X-Internal-Api-Key")
			if internalAPIKey == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(internalAPIKey)) != 1 {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
