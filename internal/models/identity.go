package models

import "github.com/golang-jwt/jwt/v5"

// IdentityClaims are the bearer token claims used to identify a caller.
type IdentityClaims struct {
	Email             string `json:"email,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the most specific identifier carried by the token.
func (c *IdentityClaims) Identity() string {
	if c == nil {
		return ""
	}
	if c.Email != "" {
		return c.Email
	}
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Subject
}
