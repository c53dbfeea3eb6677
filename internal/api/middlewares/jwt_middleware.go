package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

type contextKey string

const userKey contextKey = "user"

// JWT validates the Authorization bearer token and attaches the resolved
// UserInformation to the request context. Claims: user_id (required),
// user_name, session_id, groups.
func JWT(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				http.Error(w, "missing or invalid token", http.StatusUnauthorized)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			user, ok := userFromClaims(claims)
			if !ok {
				http.Error(w, "invalid token claims", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userFromClaims(claims jwt.MapClaims) (models.UserInformation, bool) {
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return models.UserInformation{}, false
	}

	user := models.UserInformation{UserID: userID}
	if name, ok := claims["user_name"].(string); ok {
		user.UserName = name
	}
	if sid, ok := claims["session_id"].(string); ok {
		user.SessionID = sid
	}
	if raw, ok := claims["groups"].([]interface{}); ok {
		for _, g := range raw {
			if s, ok := g.(string); ok {
				user.Groups = append(user.Groups, s)
			}
		}
	}
	return user, true
}

// UserFrom returns the authenticated caller attached by JWT.
func UserFrom(ctx context.Context) (models.UserInformation, bool) {
	user, ok := ctx.Value(userKey).(models.UserInformation)
	return user, ok
}
