package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merchant-review-api/internal/models"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
	"github.com/noah-isme/merchant-review-api/pkg/response"
)

// RBAC enforces that the caller holds one of the allowed base roles. With no
// roles given any workflow role is accepted; UNAUTHORIZED callers never pass.
func RBAC(allowed ...models.Role) gin.HandlerFunc {
	allowedRoles := make(map[models.Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedRoles[r] = struct{}{}
	}
	return func(c *gin.Context) {
		principal := PrincipalFromContext(c)
		if principal == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !principal.Authorized() {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no review role is assigned to "+principal.Email))
			c.Abort()
			return
		}
		if len(allowedRoles) > 0 {
			if _, ok := allowedRoles[principal.Role]; !ok {
				response.Error(c, appErrors.ErrForbidden)
				c.Abort()
				return
			}
		}
		c.Next()
	}
}

// RequireReviewer admits any caller holding a workflow role.
func RequireReviewer() gin.HandlerFunc {
	return RBAC()
}
