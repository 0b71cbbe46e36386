package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merchant-review-api/internal/dto"
	"github.com/noah-isme/merchant-review-api/internal/models"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
	"github.com/noah-isme/merchant-review-api/pkg/response"
)

type tableService interface {
	Tables() []models.ReviewTable
	DescribeTable(ctx context.Context, key string) ([]models.ColumnInfo, error)
}

// TableHandler exposes the caller profile and the table registry.
type TableHandler struct {
	service tableService
}

// NewTableHandler builds a TableHandler.
func NewTableHandler(service tableService) *TableHandler {
	return &TableHandler{service: service}
}

// Me godoc
// @Summary Current caller
// @Description Resolved identity, base role and capabilities of the caller.
// @Tags Identity
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me [get]
func (h *TableHandler) Me(c *gin.Context) {
	principal := principalFromContext(c)
	if principal == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	response.JSON(c, http.StatusOK, dto.MeResponse{
		Email:      principal.Email,
		Role:       principal.Role,
		CanSubmit:  principal.Role.CanSubmit(),
		CanApprove: principal.Role.CanApprove(),
	}, nil)
}

// List godoc
// @Summary List reviewable tables
// @Tags Tables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /tables [get]
func (h *TableHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Tables(), nil)
}

// Schema godoc
// @Summary Describe a reviewable table
// @Tags Tables
// @Produce json
// @Param key path string true "Table key"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /tables/{key}/schema [get]
func (h *TableHandler) Schema(c *gin.Context) {
	columns, err := h.service.DescribeTable(c.Request.Context(), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, columns, nil)
}
