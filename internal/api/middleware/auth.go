package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/edvin/backupvault/internal/api/response"
	"github.com/edvin/backupvault/internal/platform"
)

type contextKey string

const userIDKey contextKey = "user_id"

var errInvalidSession = errors.New("invalid session")

// Auth returns a middleware that verifies HS256 session tokens issued by the
// auth service and puts the token subject (the user id) in the context.
func Auth(secret []byte, issuer string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				response.WriteError(w, http.StatusUnauthorized, "missing session token")
				return
			}

			userID, err := verifySession(token, secret, issuer)
			if err != nil {
				response.WriteError(w, http.StatusUnauthorized, "invalid session token")
				return
			}

			ctx := WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func verifySession(tokenStr string, secret []byte, issuer string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidSession
		}
		return secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil || !token.Valid {
		return "", errInvalidSession
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || !platform.IsID(sub) {
		return "", errInvalidSession
	}
	return sub, nil
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(h, "Bearer ")
	if !found {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithUserID stores the authenticated user id in ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user id, or "" outside Auth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
