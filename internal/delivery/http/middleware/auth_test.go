package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Pesokrava/review_engine/internal/domain"
	"github.com/Pesokrava/review_engine/internal/pkg/logger"
)

const testSecret = "test-secret-key-for-jwt-signing"

func generateToken(t *testing.T, secret string, claims jwt.Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return tokenString
}

func validClaims(userID uuid.UUID, role string) Claims {
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

// actorEcho writes the caller's id and role, or "anonymous"
func actorEcho() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := ActorFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(actor.UserID.String() + ":" + string(actor.Role)))
	}
}

func serve(handler http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/reviews/pending", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestAuthenticate_ValidToken(t *testing.T) {
	userID := uuid.New()
	token := generateToken(t, testSecret, validClaims(userID, "moderator"))

	rr := serve(Authenticate(testSecret, logger.Nop())(actorEcho()), "Bearer "+token)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, userID.String()+":moderator", rr.Body.String())
}

func TestAuthenticate_DefaultsToUserRole(t *testing.T) {
	userID := uuid.New()
	token := generateToken(t, testSecret, validClaims(userID, ""))

	rr := serve(Authenticate(testSecret, logger.Nop())(actorEcho()), "Bearer "+token)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, userID.String()+":user", rr.Body.String())
}

func TestAuthenticate_NoHeaderIsAnonymous(t *testing.T) {
	rr := serve(Authenticate(testSecret, logger.Nop())(actorEcho()), "")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anonymous", rr.Body.String())
}

func TestAuthenticate_Rejections(t *testing.T) {
	userID := uuid.New()

	expired := validClaims(userID, "user")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))

	tests := []struct {
		name   string
		header string
	}{
		{"wrong scheme", "Basic " + generateToken(t, testSecret, validClaims(userID, "user"))},
		{"missing token", "Bearer"},
		{"wrong secret", "Bearer " + generateToken(t, "other-secret", validClaims(userID, "user"))},
		{"expired", "Bearer " + generateToken(t, testSecret, expired)},
		{"unknown role", "Bearer " + generateToken(t, testSecret, validClaims(userID, "admin"))},
		{"subject is not a uuid", "Bearer " + generateToken(t, testSecret, jwt.MapClaims{"sub": "user-123"})},
		{"garbage", "Bearer not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(Authenticate(testSecret, logger.Nop())(actorEcho()), tt.header)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}
}

func TestAuthenticate_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims(uuid.New(), "moderator"))
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rr := serve(Authenticate(testSecret, logger.Nop())(actorEcho()), "Bearer "+tokenString)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequireActor(t *testing.T) {
	handler := Authenticate(testSecret, logger.Nop())(RequireActor(actorEcho()))

	rr := serve(handler, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	userID := uuid.New()
	rr = serve(handler, "Bearer "+generateToken(t, testSecret, validClaims(userID, "user")))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestWithActor(t *testing.T) {
	actor := domain.Actor{UserID: uuid.New(), Role: domain.RoleUser}

	got, ok := ActorFromContext(WithActor(httptest.NewRequest(http.MethodGet, "/", nil).Context(), actor))

	assert.True(t, ok)
	assert.Equal(t, actor, got)
}
