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

type reviewService interface {
	Reconcile(ctx context.Context, principal *models.Principal, id string, req dto.BatchRequest) (*models.BatchResult, error)
	SubmitRecord(ctx context.Context, principal *models.Principal, id, identity string, req dto.SubmitRecordRequest) (*models.ReviewRecord, error)
	ApproveRecord(ctx context.Context, principal *models.Principal, id, identity string, req dto.ApproveRecordRequest) (*models.ReviewRecord, error)
	RejectRecord(ctx context.Context, principal *models.Principal, id, identity string, req dto.RejectRecordRequest) (*models.ReviewRecord, error)
	ApproveMany(ctx context.Context, principal *models.Principal, id string, req dto.ApproveManyRequest) (*models.BatchResult, error)
	RejectMany(ctx context.Context, principal *models.Principal, id string, req dto.RejectManyRequest) (*models.BatchResult, error)
}

// ReviewHandler exposes review actions on a session.
type ReviewHandler struct {
	service reviewService
}

// NewReviewHandler builds a ReviewHandler.
func NewReviewHandler(service reviewService) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// Batch godoc
// @Summary Reconcile an edited working copy
// @Description Diffs the rows against the session snapshot and applies one transition per changed row. MAKER sessions submit pending values, CHECKER sessions approve final values. Row problems are reported, not raised.
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.BatchRequest true "Working copy aligned with the snapshot"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/batch [post]
func (h *ReviewHandler) Batch(c *gin.Context) {
	var req dto.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid working copy"))
		return
	}
	result, err := h.service.Reconcile(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Submit godoc
// @Summary Submit values for one record
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param identity path string true "Identity value"
// @Param payload body dto.SubmitRecordRequest true "Proposed values"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /sessions/{id}/records/{identity}/submit [post]
func (h *ReviewHandler) Submit(c *gin.Context) {
	var req dto.SubmitRecordRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission"))
		return
	}
	record, err := h.service.SubmitRecord(c.Request.Context(), principalFromContext(c), c.Param("id"), c.Param("identity"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Approve godoc
// @Summary Approve one record
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param identity path string true "Identity value"
// @Param payload body dto.ApproveRecordRequest false "Optional overrides"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/records/{identity}/approve [post]
func (h *ReviewHandler) Approve(c *gin.Context) {
	var req dto.ApproveRecordRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval"))
		return
	}
	record, err := h.service.ApproveRecord(c.Request.Context(), principalFromContext(c), c.Param("id"), c.Param("identity"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Reject godoc
// @Summary Reject one record
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param identity path string true "Identity value"
// @Param payload body dto.RejectRecordRequest true "Rejection comment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions/{id}/records/{identity}/reject [post]
func (h *ReviewHandler) Reject(c *gin.Context) {
	var req dto.RejectRecordRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection"))
		return
	}
	record, err := h.service.RejectRecord(c.Request.Context(), principalFromContext(c), c.Param("id"), c.Param("identity"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// ApproveMany godoc
// @Summary Approve several records as proposed
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.ApproveManyRequest true "Identity values"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/approve [post]
func (h *ReviewHandler) ApproveMany(c *gin.Context) {
	var req dto.ApproveManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid approval list"))
		return
	}
	result, err := h.service.ApproveMany(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// RejectMany godoc
// @Summary Reject several records with one comment
// @Tags Review
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.RejectManyRequest true "Identity values and comment"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /sessions/{id}/reject [post]
func (h *ReviewHandler) RejectMany(c *gin.Context) {
	var req dto.RejectManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid rejection list"))
		return
	}
	result, err := h.service.RejectMany(c.Request.Context(), principalFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
