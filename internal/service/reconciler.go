package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/merchant-review-api/internal/models"
	"github.com/noah-isme/merchant-review-api/internal/repository"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
)

// Outcome codes used only in batch reports.
const (
	OutcomeNotPending       = "NOT_PENDING"
	OutcomeIdentityMismatch = "IDENTITY_MISMATCH"
)

const defaultQueryTimeout = 30 * time.Second

type recordWriter interface {
	ExecuteUpdate(ctx context.Context, table models.ReviewTable, fields []models.FieldValue, identityColumn, identityValue string) error
}

// BatchInput is one reconciliation request. Snapshot and Edits are aligned by
// index.
type BatchInput struct {
	Table    models.ReviewTable
	Snapshot []models.ReviewRecord
	Edits    []models.EditedRow
	Pass     models.BatchPass
	Actor    string
	Role     models.Role
}

// Reconciler diffs a working copy against a frozen snapshot and persists the
// resulting transitions one row at a time.
type Reconciler struct {
	store   recordWriter
	metrics *MetricsService
	logger  *zap.Logger
	timeout time.Duration
}

// NewReconciler constructs a Reconciler. Every store call is bounded by timeout.
func NewReconciler(store recordWriter, metrics *MetricsService, logger *zap.Logger, timeout time.Duration) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}
	return &Reconciler{store: store, metrics: metrics, logger: logger, timeout: timeout}
}

type batchCandidate struct {
	index    int
	record   models.ReviewRecord
	proposal models.Classification
}

// Run executes one pass. It never returns an error for a single row: row
// problems are reported in the result and the pass moves on. A cancelled ctx
// stops the pass between rows; rows already written stay written.
func (r *Reconciler) Run(ctx context.Context, machine *ReviewMachine, in BatchInput) *models.BatchResult {
	result := newBatchResult()
	result.Pass = in.Pass
	result.Event = passEvent(in.Pass)

	rows := len(in.Snapshot)
	if len(in.Edits) < rows {
		rows = len(in.Edits)
	}
	result.Rows = rows

	candidates := make([]batchCandidate, 0, rows)
	for i := 0; i < rows; i++ {
		record := in.Snapshot[i]
		edit := in.Edits[i]
		if edit.IdentityValue != record.IdentityValue {
			result.Failures = append(result.Failures, models.RowOutcome{
				Index:         i,
				IdentityValue: edit.IdentityValue,
				Code:          OutcomeIdentityMismatch,
				Reason:        fmt.Sprintf("working copy row %d does not match snapshot record %s", i, record.IdentityValue),
			})
			continue
		}
		edited, err := models.ParseClassification(edit.Size, edit.Gender)
		if err != nil {
			result.Skipped = append(result.Skipped, rowOutcome(i, record.IdentityValue, appErrors.ErrValidation.Code, err.Error()))
			continue
		}

		switch in.Pass {
		case models.BatchPassSubmit:
			if edited == record.Pending {
				continue
			}
			if !edited.Complete() {
				result.Skipped = append(result.Skipped, rowOutcome(i, record.IdentityValue,
					appErrors.ErrIncompleteSubmission.Code, appErrors.ErrIncompleteSubmission.Message))
				continue
			}
		case models.BatchPassApprove:
			if edited == record.Final {
				continue
			}
			if record.Status != models.ReviewStatusPending {
				result.Skipped = append(result.Skipped, rowOutcome(i, record.IdentityValue, OutcomeNotPending,
					fmt.Sprintf("record is %s, only PENDING records can be approved", record.Status)))
				continue
			}
		default:
			continue
		}
		candidates = append(candidates, batchCandidate{index: i, record: record, proposal: edited})
	}
	result.Candidates = len(candidates)

	for n, candidate := range candidates {
		if ctx.Err() != nil {
			result.Aborted = true
			result.NotAttempted = len(candidates) - n
			r.logger.Warn("batch pass aborted",
				zap.String("pass", string(in.Pass)),
				zap.Int("not_attempted", result.NotAttempted),
				zap.Error(ctx.Err()))
			break
		}

		var (
			update *models.RecordUpdate
			err    error
		)
		if in.Pass == models.BatchPassSubmit {
			update, err = machine.Submit(candidate.record, in.Actor, in.Role, candidate.proposal)
		} else {
			update, err = machine.Approve(candidate.record, in.Actor, in.Role, candidate.proposal)
		}
		if err == nil {
			err = r.Apply(ctx, in.Table, update)
		}
		r.collect(result, candidate.index, candidate.record.IdentityValue, err)
	}

	r.metrics.RecordBatch(result)
	r.logger.Info("batch pass finished",
		zap.String("table", in.Table.Key),
		zap.String("pass", string(in.Pass)),
		zap.String("actor", in.Actor),
		zap.Int("candidates", result.Candidates),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", len(result.Failures)),
		zap.Int("skipped", len(result.Skipped)),
		zap.Bool("aborted", result.Aborted))
	return result
}

// ApplyEach fires event on every record in order without comparing values.
// It backs multi-row approve and reject.
func (r *Reconciler) ApplyEach(ctx context.Context, machine *ReviewMachine, table models.ReviewTable, records []models.ReviewRecord, event models.ReviewEvent, actor string, role models.Role, comments string) *models.BatchResult {
	result := newBatchResult()
	result.Event = event
	result.Rows = len(records)
	result.Candidates = len(records)

	for i, record := range records {
		if ctx.Err() != nil {
			result.Aborted = true
			result.NotAttempted = len(records) - i
			break
		}
		var (
			update *models.RecordUpdate
			err    error
		)
		switch event {
		case models.ReviewEventApprove:
			update, err = machine.Approve(record, actor, role, models.Classification{})
		case models.ReviewEventReject:
			update, err = machine.Reject(record, actor, role, comments)
		default:
			err = appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("event %s cannot be applied to many records", event))
		}
		if err == nil {
			err = r.Apply(ctx, table, update)
		}
		r.collect(result, i, record.IdentityValue, err)
	}

	r.metrics.RecordBatch(result)
	r.logger.Info("multi-row action finished",
		zap.String("table", table.Key),
		zap.String("event", string(event)),
		zap.String("actor", actor),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", len(result.Failures)))
	return result
}

// Apply persists one update under the store timeout. Store errors are
// reported as ErrAdapterFailure; a missing row is ErrNotFound.
func (r *Reconciler) Apply(ctx context.Context, table models.ReviewTable, update *models.RecordUpdate) error {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err := r.store.ExecuteUpdate(callCtx, table, update.Fields, table.IdentityColumn, update.IdentityValue)
	switch {
	case err == nil:
		r.logger.Info("review transition applied",
			zap.String("table", table.Key),
			zap.String("identity", update.IdentityValue),
			zap.String("from", string(update.From)),
			zap.String("to", string(update.To)))
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status,
			fmt.Sprintf("record %s no longer exists", update.IdentityValue))
	case errors.Is(err, repository.ErrIdentityNotUnique):
		return appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status,
			fmt.Sprintf("identity %s is not unique", update.IdentityValue))
	default:
		return appErrors.Wrap(err, appErrors.ErrAdapterFailure.Code, appErrors.ErrAdapterFailure.Status,
			appErrors.ErrAdapterFailure.Message)
	}
}

func (r *Reconciler) collect(result *models.BatchResult, index int, identity string, err error) {
	event := result.Event
	if err == nil {
		result.Succeeded++
		result.Applied = append(result.Applied, identity)
		r.metrics.RecordTransition(event, TransitionOutcomeApplied)
		return
	}
	appErr := appErrors.FromError(err)
	result.Failures = append(result.Failures, rowOutcome(index, identity, appErr.Code, appErr.Error()))
	r.metrics.RecordTransition(event, appErr.Code)
	r.logger.Warn("review transition failed",
		zap.Int("index", index),
		zap.String("identity", identity),
		zap.String("event", string(event)),
		zap.String("code", appErr.Code),
		zap.Error(err))
}

func newBatchResult() *models.BatchResult {
	return &models.BatchResult{
		Applied:  []string{},
		Failures: []models.RowOutcome{},
		Skipped:  []models.RowOutcome{},
	}
}

func rowOutcome(index int, identity, code, reason string) models.RowOutcome {
	return models.RowOutcome{Index: index, IdentityValue: identity, Code: code, Reason: reason}
}

func passEvent(pass models.BatchPass) models.ReviewEvent {
	if pass == models.BatchPassApprove {
		return models.ReviewEventApprove
	}
	return models.ReviewEventSubmit
}
