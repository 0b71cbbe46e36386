package dto

import "github.com/noah-isme/merchant-review-api/internal/models"

// OpenSessionRequest opens a review session on a configured table.
type OpenSessionRequest struct {
	Table      string `json:"table" validate:"required"`
	ActingRole string `json:"actingRole" validate:"omitempty,acting_role"`
}

// LoadSnapshotRequest reads and freezes the working set of a session.
type LoadSnapshotRequest struct {
	Statuses []string `json:"statuses" validate:"omitempty,dive,review_status"`
	Limit    int      `json:"limit" validate:"omitempty,min=1,max=100000"`
}

// RecordQuery pages and searches the frozen snapshot.
type RecordQuery struct {
	Search   string `form:"search"`
	Page     int    `form:"page" validate:"omitempty,min=1"`
	PageSize int    `form:"page_size" validate:"omitempty,min=1,max=1000"`
}

// BatchRequest carries the caller's edited working copy, aligned by index
// with the session snapshot.
type BatchRequest struct {
	Rows []models.EditedRow `json:"rows" validate:"required,dive"`
}

// SubmitRecordRequest proposes values for a single record.
type SubmitRecordRequest struct {
	Size   string `json:"size" validate:"omitempty,business_size"`
	Gender string `json:"gender" validate:"omitempty,gender"`
}

// ApproveRecordRequest approves a single record. Blank values keep the maker's
// proposal.
type ApproveRecordRequest struct {
	Size   string `json:"size" validate:"omitempty,business_size"`
	Gender string `json:"gender" validate:"omitempty,gender"`
}

// RejectRecordRequest rejects a single record.
type RejectRecordRequest struct {
	Comments string `json:"comments"`
}

// ApproveManyRequest approves the listed records as proposed.
type ApproveManyRequest struct {
	IdentityValues []string `json:"identityValues" validate:"required,min=1,dive,required"`
}

// RejectManyRequest rejects the listed records with one shared comment.
type RejectManyRequest struct {
	IdentityValues []string `json:"identityValues" validate:"required,min=1,dive,required"`
	Comments       string   `json:"comments"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// MeResponse describes the caller.
type MeResponse struct {
	Email      string      `json:"email"`
	Role       models.Role `json:"role"`
	CanSubmit  bool        `json:"canSubmit"`
	CanApprove bool        `json:"canApprove"`
}
