package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/merchant-review-api/internal/dto"
	"github.com/noah-isme/merchant-review-api/internal/models"
	"github.com/noah-isme/merchant-review-api/internal/service"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
	"github.com/noah-isme/merchant-review-api/pkg/response"
)

type sessionService interface {
	OpenSession(ctx context.Context, principal *models.Principal, req dto.OpenSessionRequest) (*models.ReviewSession, error)
	GetSession(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, error)
	CloseSession(ctx context.Context, principal *models.Principal, id string) error
	LoadSnapshot(ctx context.Context, principal *models.Principal, id string, req dto.LoadSnapshotRequest) (*models.ReviewSession, error)
	Records(ctx context.Context, principal *models.Principal, id string, query dto.RecordQuery) ([]models.ReviewRecord, *models.Pagination, *models.SnapshotStats, error)
	Snapshot(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, models.ReviewTable, error)
}

type snapshotExporter interface {
	Render(session *models.ReviewSession, table models.ReviewTable, format string) (*service.ExportResult, error)
}

// SessionHandler manages review sessions and their snapshots.
type SessionHandler struct {
	service  sessionService
	exporter snapshotExporter
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(service sessionService, exporter snapshotExporter) *SessionHandler {
	return &SessionHandler{service: service, exporter: exporter}
}

// Open godoc
// @Summary Open a review session
// @Description Binds the caller to a table. ADMIN may choose an acting role.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.OpenSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	var req dto.OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid session payload"))
		return
	}
	session, err := h.service.OpenSession(c.Request.Context(), principalFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// Get godoc
// @Summary Get a review session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.service.GetSession(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	session.Snapshot = nil
	response.JSON(c, http.StatusOK, session, nil)
}

// Close godoc
// @Summary Close a review session
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Close(c *gin.Context) {
	if err := h.service.CloseSession(c.Request.Context(), principalFromContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Load godoc
// @Summary Load the session snapshot
// @Description Reads the working set from the table and freezes it for diffing.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.LoadSnapshotRequest false "Status filter and row limit"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /sessions/{id}/load [post]
func (h *SessionHandler) Load(c *gin.Context) {
	var req dto.LoadSnapshotRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid load payload"))
		return
	}
	session, err := h.service.LoadSnapshot(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	stats := service.SnapshotStats(session.Snapshot)
	session.Snapshot = nil
	response.JSON(c, http.StatusOK, session, nil, map[string]interface{}{"stats": stats})
}

// Records godoc
// @Summary Page through the session snapshot
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Param search query string false "Case-insensitive search across all columns"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sessions/{id}/records [get]
func (h *SessionHandler) Records(c *gin.Context) {
	var query dto.RecordQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record query"))
		return
	}
	records, pagination, stats, err := h.service.Records(c.Request.Context(), principalFromContext(c), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, records, pagination, map[string]interface{}{"stats": stats})
}

// Export godoc
// @Summary Export the session snapshot
// @Tags Sessions
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Session ID"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /sessions/{id}/export [get]
func (h *SessionHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	session, table, err := h.service.Snapshot(c.Request.Context(), principalFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	result, err := h.exporter.Render(session, table, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, result.ContentType, result.Payload)
}

// bindOptionalJSON binds a JSON body when one is sent.
func bindOptionalJSON(c *gin.Context, dest interface{}) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dest)
}
