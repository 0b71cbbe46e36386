package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merchant-review-api/internal/models"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
	"github.com/noah-isme/merchant-review-api/pkg/response"
)

// Context keys set by Identity.
const (
	ContextPrincipalKey = "principal"
	ContextEmailKey     = "email"
)

// IdentityResolver extracts the caller identity from a request.
type IdentityResolver interface {
	Resolve(r *http.Request) string
}

// PrincipalResolver maps an identity onto a principal.
type PrincipalResolver interface {
	Principal(identity string) *models.Principal
}

// Identity resolves the caller and stores the principal on the context.
// Requests without any identity are rejected.
func Identity(identities IdentityResolver, principals PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := identities.Resolve(c.Request)
		if raw == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "caller identity could not be resolved"))
			c.Abort()
			return
		}
		principal := principals.Principal(raw)
		c.Set(ContextPrincipalKey, principal)
		c.Set(ContextEmailKey, principal.Email)
		c.Next()
	}
}

// PrincipalFromContext returns the principal stored by Identity.
func PrincipalFromContext(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, ok := value.(*models.Principal)
	if !ok {
		return nil
	}
	return principal
}
