package service

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/merchant-review-api/internal/models"
	"github.com/noah-isme/merchant-review-api/pkg/config"
)

var defaultIdentityHeaders = []string{"X-Forwarded-Preferred-Username", "X-Forwarded-Email"}

// IdentityService resolves the caller of a request. Identity is asserted by
// the fronting proxy headers or, failing that, by a signed bearer token.
type IdentityService struct {
	headers []string
	secret  []byte
	logger  *zap.Logger
}

// NewIdentityService constructs an IdentityService.
func NewIdentityService(cfg config.IdentityConfig, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	headers := cfg.Headers
	if len(headers) == 0 {
		headers = defaultIdentityHeaders
	}
	return &IdentityService{headers: headers, secret: []byte(cfg.JWTSecret), logger: logger}
}

// Resolve returns the caller identity or "" when none can be established.
// Only values that look like an email are taken; anything else falls through
// to the next source.
func (s *IdentityService) Resolve(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, header := range s.headers {
		if value := strings.TrimSpace(r.Header.Get(header)); looksLikeEmail(value) {
			return value
		}
	}

	token := bearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return ""
	}
	if len(s.secret) == 0 {
		s.logger.Debug("bearer token ignored, no identity secret configured")
		return ""
	}
	claims, err := s.ParseToken(token)
	if err != nil {
		s.logger.Warn("invalid identity token", zap.Error(err))
		return ""
	}
	identity := strings.TrimSpace(claims.Identity())
	if !looksLikeEmail(identity) {
		s.logger.Warn("identity token carries no email")
		return ""
	}
	return identity
}

func looksLikeEmail(value string) bool {
	return strings.Contains(value, "@")
}

// ParseToken validates an HS256 identity token.
func (s *IdentityService) ParseToken(tokenString string) (*models.IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.IdentityClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*models.IdentityClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid identity claims")
	}
	return claims, nil
}

func bearerToken(header string) string {
	parts := strings.SplitN(strings.TrimSpace(header), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
