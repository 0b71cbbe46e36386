package models

import "fmt"

// ReviewColumns names the review columns of a table.
type ReviewColumns struct {
	PendingSize   string `json:"pendingSize"`
	PendingGender string `json:"pendingGender"`
	FinalSize     string `json:"finalSize"`
	FinalGender   string `json:"finalGender"`
	Status        string `json:"status"`
	SubmittedBy   string `json:"submittedBy"`
	SubmittedAt   string `json:"submittedAt"`
	ReviewedBy    string `json:"reviewedBy"`
	ReviewedAt    string `json:"reviewedAt"`
	Comments      string `json:"comments"`
}

// DefaultReviewColumns returns the conventional column names.
func DefaultReviewColumns() ReviewColumns {
	return ReviewColumns{
		PendingSize:   "pending_size",
		PendingGender: "pending_gender",
		FinalSize:     "final_size",
		FinalGender:   "final_gender",
		Status:        "review_status",
		SubmittedBy:   "submitted_by",
		SubmittedAt:   "submitted_at",
		ReviewedBy:    "reviewed_by",
		ReviewedAt:    "reviewed_at",
		Comments:      "review_comments",
	}
}

// WithDefaults fills blank names from DefaultReviewColumns.
func (c ReviewColumns) WithDefaults() ReviewColumns {
	d := DefaultReviewColumns()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&c.PendingSize, d.PendingSize)
	fill(&c.PendingGender, d.PendingGender)
	fill(&c.FinalSize, d.FinalSize)
	fill(&c.FinalGender, d.FinalGender)
	fill(&c.Status, d.Status)
	fill(&c.SubmittedBy, d.SubmittedBy)
	fill(&c.SubmittedAt, d.SubmittedAt)
	fill(&c.ReviewedBy, d.ReviewedBy)
	fill(&c.ReviewedAt, d.ReviewedAt)
	fill(&c.Comments, d.Comments)
	return c
}

// All returns every review column name.
func (c ReviewColumns) All() []string {
	return []string{
		c.PendingSize, c.PendingGender, c.FinalSize, c.FinalGender, c.Status,
		c.SubmittedBy, c.SubmittedAt, c.ReviewedBy, c.ReviewedAt, c.Comments,
	}
}

// ReviewTable is a configured reviewable table.
type ReviewTable struct {
	Key            string        `json:"key"`
	Label          string        `json:"label"`
	Name           string        `json:"name"`
	IdentityColumn string        `json:"identityColumn"`
	RowLimit       int           `json:"rowLimit"`
	Columns        ReviewColumns `json:"columns"`
}

// RecordFromRow decodes the review fields of row.
func (t ReviewTable) RecordFromRow(row Row) (ReviewRecord, error) {
	cols := t.Columns
	if !row.Has(t.IdentityColumn) {
		return ReviewRecord{}, fmt.Errorf("identity column %s missing from row", t.IdentityColumn)
	}
	identity := row.String(t.IdentityColumn)
	status, err := ParseReviewStatus(row.String(cols.Status))
	if err != nil {
		return ReviewRecord{}, fmt.Errorf("row %s: %w", identity, err)
	}
	pending, err := ParseClassification(row.String(cols.PendingSize), row.String(cols.PendingGender))
	if err != nil {
		return ReviewRecord{}, fmt.Errorf("row %s pending values: %w", identity, err)
	}
	final, err := ParseClassification(row.String(cols.FinalSize), row.String(cols.FinalGender))
	if err != nil {
		return ReviewRecord{}, fmt.Errorf("row %s final values: %w", identity, err)
	}
	return ReviewRecord{
		IdentityValue: identity,
		Pending:       pending,
		Final:         final,
		Status:        status,
		SubmittedBy:   row.String(cols.SubmittedBy),
		SubmittedAt:   row.String(cols.SubmittedAt),
		ReviewedBy:    row.String(cols.ReviewedBy),
		ReviewedAt:    row.String(cols.ReviewedAt),
		Comments:      row.String(cols.Comments),
		Row:           row,
	}, nil
}
