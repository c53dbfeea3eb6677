package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutzsco/custom-chat-copilot-go/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedEcho(t *testing.T, captured *models.UserInformation) http.Handler {
	return JWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFrom(r.Context())
		require.True(t, ok)
		*captured = user
		w.WriteHeader(http.StatusOK)
	}))
}

func TestJWTResolvesUserInformation(t *testing.T) {
	var user models.UserInformation
	h := protectedEcho(t, &user)

	token := signToken(t, testSecret, jwt.MapClaims{
		"user_id":    "u1",
		"user_name":  "Ada",
		"session_id": "sess-9",
		"groups":     []string{"ops", "dev"},
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "u1", user.UserID)
	assert.Equal(t, "Ada", user.UserName)
	assert.Equal(t, "sess-9", user.SessionID)
	assert.Equal(t, []string{"ops", "dev"}, user.Groups)
}

func TestJWTMissingHeader(t *testing.T) {
	var user models.UserInformation
	h := protectedEcho(t, &user)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJWTWrongSecret(t *testing.T) {
	var user models.UserInformation
	h := protectedEcho(t, &user)

	token := signToken(t, "other-secret", jwt.MapClaims{"user_id": "u1"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJWTMissingUserIDClaim(t *testing.T) {
	var user models.UserInformation
	h := protectedEcho(t, &user)

	token := signToken(t, testSecret, jwt.MapClaims{"user_name": "Ada"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
