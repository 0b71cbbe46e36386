package models

import "time"

// BatchPass selects which field pair a reconciliation pass compares.
type BatchPass string

const (
	BatchPassSubmit  BatchPass = "SUBMIT"
	BatchPassApprove BatchPass = "APPROVE"
)

// ReviewSession is the per-user working context: chosen table, acting role
// and the frozen snapshot the reconciler diffs against.
type ReviewSession struct {
	ID            string         `json:"id"`
	Email         string         `json:"email"`
	BaseRole      Role           `json:"baseRole"`
	ActingRole    Role           `json:"actingRole,omitempty"`
	EffectiveRole Role           `json:"effectiveRole"`
	TableKey      string         `json:"tableKey"`
	Filter        RecordFilter   `json:"filter"`
	Snapshot      []ReviewRecord `json:"snapshot,omitempty"`
	Loaded        bool           `json:"loaded"`
	LoadedAt      *time.Time     `json:"loadedAt,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Pass returns the reconciliation pass for the session's effective role.
func (s *ReviewSession) Pass() (BatchPass, bool) {
	switch s.EffectiveRole {
	case RoleMaker:
		return BatchPassSubmit, true
	case RoleChecker:
		return BatchPassApprove, true
	default:
		return "", false
	}
}

// Invalidate drops the cached snapshot after a mutating action.
func (s *ReviewSession) Invalidate() {
	s.Snapshot = nil
	s.Loaded = false
	s.LoadedAt = nil
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// SnapshotStats summarises a working set.
type SnapshotStats struct {
	Total     int                  `json:"total"`
	Displayed int                  `json:"displayed"`
	Columns   int                  `json:"columns"`
	ByStatus  map[ReviewStatus]int `json:"byStatus"`
}
