package models

// EditedRow is one row of a caller-edited working copy. Size and Gender hold
// the edited values of the pair the pass compares.
type EditedRow struct {
	IdentityValue string `json:"identityValue" validate:"required"`
	Size          string `json:"size" validate:"omitempty,business_size"`
	Gender        string `json:"gender" validate:"omitempty,gender"`
}

// RowOutcome reports why a row failed or was skipped.
type RowOutcome struct {
	Index         int    `json:"index"`
	IdentityValue string `json:"identityValue"`
	Code          string `json:"code"`
	Reason        string `json:"reason"`
}

// BatchResult is the structured outcome of a reconciliation pass or a
// multi-row action.
type BatchResult struct {
	Pass         BatchPass    `json:"pass,omitempty"`
	Event        ReviewEvent  `json:"event,omitempty"`
	Rows         int          `json:"rows"`
	Candidates   int          `json:"candidates"`
	Succeeded    int          `json:"succeeded"`
	Applied      []string     `json:"applied"`
	Failures     []RowOutcome `json:"failures"`
	Skipped      []RowOutcome `json:"skipped"`
	NotAttempted int          `json:"notAttempted"`
	Aborted      bool         `json:"aborted"`
	Refreshed    bool         `json:"refreshed"`
}

// Attempted reports whether any update statement was issued.
func (r *BatchResult) Attempted() bool {
	return r.Succeeded > 0 || len(r.Failures) > 0
}
