package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/merchant-review-api/internal/models"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
)

// TransitionOutcomeApplied labels a transition that was persisted.
const TransitionOutcomeApplied = "applied"

type transitionKey struct {
	from  models.ReviewStatus
	event models.ReviewEvent
}

// reviewTransitions is the complete transition table; anything absent is
// rejected with ErrInvalidTransition.
var reviewTransitions = map[transitionKey]models.ReviewStatus{
	{models.ReviewStatusUntouched, models.ReviewEventSubmit}: models.ReviewStatusPending,
	{models.ReviewStatusRejected, models.ReviewEventSubmit}:  models.ReviewStatusPending,
	{models.ReviewStatusPending, models.ReviewEventApprove}:  models.ReviewStatusApproved,
	{models.ReviewStatusPending, models.ReviewEventReject}:   models.ReviewStatusRejected,
}

// NextStatus returns the target state of event fired from from.
func NextStatus(from models.ReviewStatus, event models.ReviewEvent) (models.ReviewStatus, error) {
	if to, ok := reviewTransitions[transitionKey{from: from, event: event}]; ok {
		return to, nil
	}
	return "", appErrors.Clone(appErrors.ErrInvalidTransition,
		fmt.Sprintf("cannot %s a record in status %s", strings.ToLower(string(event)), from))
}

// ReviewMachine turns review events into column updates for one table.
// It never touches the store; callers persist RecordUpdate.Fields.
type ReviewMachine struct {
	columns  models.ReviewColumns
	location *time.Location
	now      func() time.Time
}

// NewReviewMachine constructs a machine writing timestamps in loc.
func NewReviewMachine(columns models.ReviewColumns, loc *time.Location, now func() time.Time) *ReviewMachine {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &ReviewMachine{columns: columns.WithDefaults(), location: loc, now: now}
}

// Submit moves an UNTOUCHED or REJECTED record to PENDING with the proposed
// classification.
func (m *ReviewMachine) Submit(record models.ReviewRecord, actor string, role models.Role, proposal models.Classification) (*models.RecordUpdate, error) {
	if !role.CanSubmit() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot submit reviews", role))
	}
	to, err := NextStatus(record.Status, models.ReviewEventSubmit)
	if err != nil {
		return nil, err
	}
	if !proposal.Complete() {
		return nil, appErrors.ErrIncompleteSubmission
	}
	ts := m.timestamp()
	fields := []models.FieldValue{
		{Column: m.columns.PendingSize, Value: string(proposal.Size)},
		{Column: m.columns.PendingGender, Value: string(proposal.Gender)},
		{Column: m.columns.Status, Value: string(to)},
		{Column: m.columns.SubmittedBy, Value: actor},
		{Column: m.columns.SubmittedAt, Value: ts},
	}
	result := record
	result.Pending = proposal
	result.Status = to
	result.SubmittedBy = actor
	result.SubmittedAt = ts
	return m.update(record, result, fields), nil
}

// Approve moves a PENDING record to APPROVED. Each final value is the
// checker's override when given, otherwise the maker's pending value.
func (m *ReviewMachine) Approve(record models.ReviewRecord, actor string, role models.Role, override models.Classification) (*models.RecordUpdate, error) {
	if !role.CanApprove() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot approve reviews", role))
	}
	to, err := NextStatus(record.Status, models.ReviewEventApprove)
	if err != nil {
		return nil, err
	}
	final := ResolveFinal(record.Pending, override)
	if !final.Complete() {
		return nil, appErrors.Clone(appErrors.ErrIncompleteSubmission, "pending record has no value to approve")
	}
	ts := m.timestamp()
	fields := []models.FieldValue{
		{Column: m.columns.FinalSize, Value: string(final.Size)},
		{Column: m.columns.FinalGender, Value: string(final.Gender)},
		{Column: m.columns.Status, Value: string(to)},
		{Column: m.columns.ReviewedBy, Value: actor},
		{Column: m.columns.ReviewedAt, Value: ts},
	}
	result := record
	result.Final = final
	result.Status = to
	result.ReviewedBy = actor
	result.ReviewedAt = ts
	return m.update(record, result, fields), nil
}

// Reject moves a PENDING record to REJECTED. Final values are untouched.
func (m *ReviewMachine) Reject(record models.ReviewRecord, actor string, role models.Role, comments string) (*models.RecordUpdate, error) {
	if !role.CanApprove() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot reject reviews", role))
	}
	to, err := NextStatus(record.Status, models.ReviewEventReject)
	if err != nil {
		return nil, err
	}
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return nil, appErrors.ErrMissingComment
	}
	ts := m.timestamp()
	fields := []models.FieldValue{
		{Column: m.columns.Status, Value: string(to)},
		{Column: m.columns.ReviewedBy, Value: actor},
		{Column: m.columns.ReviewedAt, Value: ts},
		{Column: m.columns.Comments, Value: comments},
	}
	result := record
	result.Status = to
	result.ReviewedBy = actor
	result.ReviewedAt = ts
	result.Comments = comments
	return m.update(record, result, fields), nil
}

// ResolveFinal applies checker overrides on top of the pending values.
func ResolveFinal(pending, override models.Classification) models.Classification {
	final := pending
	if override.Size != "" {
		final.Size = override.Size
	}
	if override.Gender != "" {
		final.Gender = override.Gender
	}
	return final
}

func (m *ReviewMachine) timestamp() string {
	return models.FormatReviewTimestamp(m.now(), m.location)
}

func (m *ReviewMachine) update(before, after models.ReviewRecord, fields []models.FieldValue) *models.RecordUpdate {
	after.Row = applyFields(before.Row, fields)
	return &models.RecordUpdate{
		IdentityValue: before.IdentityValue,
		From:          before.Status,
		To:            after.Status,
		Fields:        fields,
		Result:        after,
	}
}

func applyFields(row models.Row, fields []models.FieldValue) models.Row {
	values := make(map[string]interface{}, len(row.Values)+len(fields))
	for k, v := range row.Values {
		values[k] = v
	}
	columns := append([]string(nil), row.Columns...)
	for _, f := range fields {
		if _, ok := values[f.Column]; !ok {
			columns = append(columns, f.Column)
		}
		values[f.Column] = f.Value
	}
	return models.Row{Columns: columns, Values: values}
}
