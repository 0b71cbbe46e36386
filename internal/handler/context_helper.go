package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merchant-review-api/internal/middleware"
	"github.com/noah-isme/merchant-review-api/internal/models"
)

func principalFromContext(c *gin.Context) *models.Principal {
	return middleware.PrincipalFromContext(c)
}
