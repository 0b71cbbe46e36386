package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/merchant-review-api/internal/models"
	"github.com/noah-isme/merchant-review-api/pkg/config"
)

func signIdentityToken(t *testing.T, secret string, method jwt.SigningMethod, claims models.IdentityClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestIdentityServiceHeaders(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	assert.Equal(t, "", svc.Resolve(req))

	req.Header.Set("X-Forwarded-Email", "maker@maya.ph")
	assert.Equal(t, "maker@maya.ph", svc.Resolve(req))

	req.Header.Set("X-Forwarded-Preferred-Username", " checker@maya.ph ")
	assert.Equal(t, "checker@maya.ph", svc.Resolve(req))
}

func TestIdentityServiceSkipsNonEmailHeaders(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("X-Forwarded-Preferred-Username", "svc-reviewer")
	assert.Equal(t, "", svc.Resolve(req))

	req.Header.Set("X-Forwarded-Email", "maker@maya.ph")
	assert.Equal(t, "maker@maya.ph", svc.Resolve(req))
}

func TestIdentityServiceBearerToken(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{Headers: []string{"X-User"}, JWTSecret: "s3cret"}, nil)
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	token := signIdentityToken(t, "s3cret", jwt.SigningMethodHS256, models.IdentityClaims{
		PreferredUsername: "admin@maya.ph",
		RegisteredClaims:  jwt.RegisteredClaims{ExpiresAt: future},
	})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, "admin@maya.ph", svc.Resolve(req))

	req.Header.Set("X-User", "maker@maya.ph")
	assert.Equal(t, "maker@maya.ph", svc.Resolve(req), "proxy header wins over token")
}

func TestIdentityServiceRejectsBadTokens(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{JWTSecret: "s3cret"}, nil)

	wrongKey := signIdentityToken(t, "other", jwt.SigningMethodHS256, models.IdentityClaims{Email: "a@maya.ph"})
	expired := signIdentityToken(t, "s3cret", jwt.SigningMethodHS256, models.IdentityClaims{
		Email:            "a@maya.ph",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
	})
	wrongAlg := signIdentityToken(t, "s3cret", jwt.SigningMethodHS512, models.IdentityClaims{Email: "a@maya.ph"})

	for _, token := range []string{wrongKey, expired, wrongAlg, "garbage"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		assert.Equal(t, "", svc.Resolve(req))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", svc.Resolve(req))
}

func TestIdentityServiceTokenIgnoredWithoutSecret(t *testing.T) {
	svc := NewIdentityService(config.IdentityConfig{}, nil)
	token := signIdentityToken(t, "unused", jwt.SigningMethodHS256, models.IdentityClaims{Email: "a@maya.ph"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, "", svc.Resolve(req))
}
