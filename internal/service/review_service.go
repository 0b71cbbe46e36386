package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/merchant-review-api/internal/dto"
	"github.com/noah-isme/merchant-review-api/internal/models"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
)

const (
	defaultRecordPage     = 1
	defaultRecordPageSize = 50
)

type recordStore interface {
	Query(ctx context.Context, table models.ReviewTable, filter models.RecordFilter) ([]models.Row, error)
	Describe(ctx context.Context, table models.ReviewTable) ([]models.ColumnInfo, error)
	ExecuteUpdate(ctx context.Context, table models.ReviewTable, fields []models.FieldValue, identityColumn, identityValue string) error
}

// ReviewConfig tunes the review service.
type ReviewConfig struct {
	QueryTimeout time.Duration
	Location     *time.Location
}

// ReviewService runs review actions against a session's frozen snapshot.
type ReviewService struct {
	store      recordStore
	sessions   *SessionService
	tables     *TableRegistry
	reconciler *Reconciler
	validator  *validator.Validate
	logger     *zap.Logger
	timeout    time.Duration
	location   *time.Location
	now        func() time.Time
}

// ReviewOption customises the review service.
type ReviewOption func(*ReviewService)

// WithReviewClock overrides the clock used for review timestamps.
func WithReviewClock(now func() time.Time) ReviewOption {
	return func(s *ReviewService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReviewService constructs a ReviewService.
func NewReviewService(store recordStore, sessions *SessionService, tables *TableRegistry, metrics *MetricsService, validate *validator.Validate, cfg ReviewConfig, logger *zap.Logger, opts ...ReviewOption) *ReviewService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = defaultQueryTimeout
	}
	if cfg.Location == nil {
		cfg.Location = ResolveLocation("", logger)
	}
	svc := &ReviewService{
		store:      store,
		sessions:   sessions,
		tables:     tables,
		reconciler: NewReconciler(store, metrics, logger, cfg.QueryTimeout),
		validator:  validate,
		logger:     logger,
		timeout:    cfg.QueryTimeout,
		location:   cfg.Location,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	registerReviewValidations(svc.validator)
	return svc
}

// registerReviewValidations accepts enum values in any casing; the parsers
// normalise them later.
func registerReviewValidations(validate *validator.Validate) {
	validate.RegisterValidation("business_size", func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		_, err := models.ParseBusinessSize(value)
		return value != "" && err == nil
	})
	validate.RegisterValidation("gender", func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		_, err := models.ParseGender(value)
		return value != "" && err == nil
	})
	validate.RegisterValidation("review_status", func(fl validator.FieldLevel) bool {
		value := strings.TrimSpace(fl.Field().String())
		_, err := models.ParseReviewStatus(value)
		return value != "" && err == nil
	})
	validate.RegisterValidation("acting_role", func(fl validator.FieldLevel) bool {
		switch models.ParseRole(fl.Field().String()) {
		case models.RoleMaker, models.RoleChecker:
			return true
		default:
			return false
		}
	})
}

// Tables lists the configured tables.
func (s *ReviewService) Tables() []models.ReviewTable {
	return s.tables.List()
}

// DescribeTable returns the columns of a configured table.
func (s *ReviewService) DescribeTable(ctx context.Context, key string) ([]models.ColumnInfo, error) {
	table, err := s.tables.Get(key)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, table)
}

// OpenSession opens a session for principal.
func (s *ReviewService) OpenSession(ctx context.Context, principal *models.Principal, req dto.OpenSessionRequest) (*models.ReviewSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	return s.sessions.Open(ctx, principal, req.Table, req.ActingRole)
}

// GetSession returns the caller's session.
func (s *ReviewService) GetSession(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, error) {
	return s.sessions.Get(ctx, principal, id)
}

// CloseSession discards the caller's session.
func (s *ReviewService) CloseSession(ctx context.Context, principal *models.Principal, id string) error {
	return s.sessions.Close(ctx, principal, id)
}

// LoadSnapshot reads the working set for a session and freezes it. The
// identity column must exist and be unique within the set.
func (s *ReviewService) LoadSnapshot(ctx context.Context, principal *models.Principal, id string, req dto.LoadSnapshotRequest) (*models.ReviewSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid load payload")
	}
	session, table, err := s.sessionWithTable(ctx, principal, id)
	if err != nil {
		return nil, err
	}

	filter := models.RecordFilter{Limit: req.Limit}
	for _, raw := range req.Statuses {
		status, err := models.ParseReviewStatus(raw)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	session.Invalidate()
	session.Filter = filter
	if err := s.load(ctx, session, table); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Records returns a page of the snapshot filtered by search, with stats over
// the whole snapshot.
func (s *ReviewService) Records(ctx context.Context, principal *models.Principal, id string, query dto.RecordQuery) ([]models.ReviewRecord, *models.Pagination, *models.SnapshotStats, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid record query")
	}
	session, err := s.loadedSession(ctx, principal, id)
	if err != nil {
		return nil, nil, nil, err
	}

	matched := make([]models.ReviewRecord, 0, len(session.Snapshot))
	for _, record := range session.Snapshot {
		if record.Row.Contains(query.Search) {
			matched = append(matched, record)
		}
	}

	page := query.Page
	if page <= 0 {
		page = defaultRecordPage
	}
	size := query.PageSize
	if size <= 0 {
		size = defaultRecordPageSize
	}
	start := (page - 1) * size
	if start > len(matched) {
		start = len(matched)
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}

	stats := SnapshotStats(session.Snapshot)
	stats.Displayed = len(matched)
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: len(matched)}
	return matched[start:end], pagination, &stats, nil
}

// Snapshot returns the loaded session and its table, for export.
func (s *ReviewService) Snapshot(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, models.ReviewTable, error) {
	session, err := s.loadedSession(ctx, principal, id)
	if err != nil {
		return nil, models.ReviewTable{}, err
	}
	table, err := s.sessions.Table(session)
	if err != nil {
		return nil, models.ReviewTable{}, err
	}
	return session, table, nil
}

// Reconcile diffs the caller's working copy against the snapshot and applies
// the pass chosen by the session's effective role. After any attempted write
// the snapshot is re-read.
func (s *ReviewService) Reconcile(ctx context.Context, principal *models.Principal, id string, req dto.BatchRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid working copy")
	}
	session, table, err := s.loadedSessionWithTable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	pass, ok := session.Pass()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "session role cannot run a batch")
	}

	result := s.reconciler.Run(ctx, s.machine(table), BatchInput{
		Table:    table,
		Snapshot: session.Snapshot,
		Edits:    req.Rows,
		Pass:     pass,
		Actor:    session.Email,
		Role:     session.EffectiveRole,
	})
	if result.Attempted() {
		result.Refreshed = s.refresh(ctx, session, table)
	}
	return result, nil
}

// SubmitRecord proposes values for one record. Store failures stop the action.
func (s *ReviewService) SubmitRecord(ctx context.Context, principal *models.Principal, id, identity string, req dto.SubmitRecordRequest) (*models.ReviewRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission")
	}
	proposal, err := models.ParseClassification(req.Size, req.Gender)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return s.single(ctx, principal, id, identity, models.ReviewEventSubmit, func(m *ReviewMachine, record models.ReviewRecord, actor string, role models.Role) (*models.RecordUpdate, error) {
		return m.Submit(record, actor, role, proposal)
	})
}

// ApproveRecord approves one record, with optional overrides.
func (s *ReviewService) ApproveRecord(ctx context.Context, principal *models.Principal, id, identity string, req dto.ApproveRecordRequest) (*models.ReviewRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval")
	}
	override, err := models.ParseClassification(req.Size, req.Gender)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return s.single(ctx, principal, id, identity, models.ReviewEventApprove, func(m *ReviewMachine, record models.ReviewRecord, actor string, role models.Role) (*models.RecordUpdate, error) {
		return m.Approve(record, actor, role, override)
	})
}

// RejectRecord rejects one record with a comment.
func (s *ReviewService) RejectRecord(ctx context.Context, principal *models.Principal, id, identity string, req dto.RejectRecordRequest) (*models.ReviewRecord, error) {
	return s.single(ctx, principal, id, identity, models.ReviewEventReject, func(m *ReviewMachine, record models.ReviewRecord, actor string, role models.Role) (*models.RecordUpdate, error) {
		return m.Reject(record, actor, role, req.Comments)
	})
}

// ApproveMany approves the listed records as proposed, best effort per row.
func (s *ReviewService) ApproveMany(ctx context.Context, principal *models.Principal, id string, req dto.ApproveManyRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid approval list")
	}
	return s.many(ctx, principal, id, req.IdentityValues, models.ReviewEventApprove, "")
}

// RejectMany rejects the listed records with one comment. Without a comment
// nothing is written.
func (s *ReviewService) RejectMany(ctx context.Context, principal *models.Principal, id string, req dto.RejectManyRequest) (*models.BatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rejection list")
	}
	if strings.TrimSpace(req.Comments) == "" {
		return nil, appErrors.ErrMissingComment
	}
	return s.many(ctx, principal, id, req.IdentityValues, models.ReviewEventReject, req.Comments)
}

type transitionFunc func(m *ReviewMachine, record models.ReviewRecord, actor string, role models.Role) (*models.RecordUpdate, error)

func (s *ReviewService) single(ctx context.Context, principal *models.Principal, id, identity string, event models.ReviewEvent, fire transitionFunc) (*models.ReviewRecord, error) {
	session, table, err := s.loadedSessionWithTable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	record, ok := findRecord(session.Snapshot, identity)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("record %s is not in the session snapshot", identity))
	}

	update, err := fire(s.machine(table), record, session.Email, session.EffectiveRole)
	if err != nil {
		s.reconciler.metrics.RecordTransition(event, appErrors.FromError(err).Code)
		return nil, err
	}
	if err := s.reconciler.Apply(ctx, table, update); err != nil {
		s.reconciler.metrics.RecordTransition(event, appErrors.FromError(err).Code)
		s.logger.Error("review transition not persisted",
			zap.String("table", table.Key),
			zap.String("identity", identity),
			zap.String("event", string(event)),
			zap.Error(err))
		return nil, err
	}
	s.reconciler.metrics.RecordTransition(event, TransitionOutcomeApplied)

	if s.refresh(ctx, session, table) {
		if refreshed, ok := findRecord(session.Snapshot, identity); ok {
			return &refreshed, nil
		}
	}
	result := update.Result
	return &result, nil
}

func (s *ReviewService) many(ctx context.Context, principal *models.Principal, id string, identities []string, event models.ReviewEvent, comments string) (*models.BatchResult, error) {
	session, table, err := s.loadedSessionWithTable(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	records := make([]models.ReviewRecord, 0, len(identities))
	var unknown []string
	for _, identity := range identities {
		record, ok := findRecord(session.Snapshot, identity)
		if !ok {
			unknown = append(unknown, identity)
			continue
		}
		records = append(records, record)
	}
	if len(unknown) > 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("records not in the session snapshot: %s", strings.Join(unknown, ", ")))
	}

	result := s.reconciler.ApplyEach(ctx, s.machine(table), table, records, event, session.Email, session.EffectiveRole, comments)
	if result.Attempted() {
		result.Refreshed = s.refresh(ctx, session, table)
	}
	return result, nil
}

// refresh invalidates the snapshot and reads it again with the same filter.
// It runs detached from ctx: rows may already be written when the caller goes
// away, and the stored snapshot must not outlive them. If the session cannot
// be stored its key is dropped so the old snapshot is never diffed again.
func (s *ReviewService) refresh(ctx context.Context, session *models.ReviewSession, table models.ReviewTable) bool {
	refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	session.Invalidate()
	loadErr := s.load(refreshCtx, session, table)
	if loadErr != nil {
		s.logger.Warn("snapshot refetch failed", zap.String("session_id", session.ID), zap.Error(loadErr))
	}
	if err := s.sessions.Save(refreshCtx, session); err != nil {
		s.logger.Error("failed to store refreshed session, discarding it",
			zap.String("session_id", session.ID), zap.Error(err))
		if delErr := s.sessions.Discard(refreshCtx, session); delErr != nil {
			s.logger.Error("failed to discard stale session", zap.String("session_id", session.ID), zap.Error(delErr))
		}
		return false
	}
	return loadErr == nil
}

func (s *ReviewService) load(ctx context.Context, session *models.ReviewSession, table models.ReviewTable) error {
	columns, err := s.describe(ctx, table)
	if err != nil {
		return err
	}
	if len(columns) > 0 && !hasColumn(columns, table.IdentityColumn) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("identity column %s does not exist in %s", table.IdentityColumn, table.Name))
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	rows, err := s.store.Query(callCtx, table, session.Filter)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrAdapterFailure.Code, appErrors.ErrAdapterFailure.Status, "failed to read review records")
	}

	records := make([]models.ReviewRecord, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		record, err := table.RecordFromRow(row)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, err.Error())
		}
		if _, dup := seen[record.IdentityValue]; dup {
			return appErrors.Clone(appErrors.ErrConflict,
				fmt.Sprintf("identity value %s appears more than once in %s", record.IdentityValue, table.Name))
		}
		seen[record.IdentityValue] = struct{}{}
		records = append(records, record)
	}

	loadedAt := s.now().UTC()
	session.Snapshot = records
	session.Loaded = true
	session.LoadedAt = &loadedAt
	s.logger.Info("snapshot loaded",
		zap.String("session_id", session.ID),
		zap.String("table", table.Key),
		zap.Int("records", len(records)))
	return nil
}

func (s *ReviewService) describe(ctx context.Context, table models.ReviewTable) ([]models.ColumnInfo, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	columns, err := s.store.Describe(callCtx, table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrAdapterFailure.Code, appErrors.ErrAdapterFailure.Status, "failed to describe review table")
	}
	return columns, nil
}

func (s *ReviewService) sessionWithTable(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, models.ReviewTable, error) {
	session, err := s.sessions.Get(ctx, principal, id)
	if err != nil {
		return nil, models.ReviewTable{}, err
	}
	table, err := s.sessions.Table(session)
	if err != nil {
		return nil, models.ReviewTable{}, err
	}
	return session, table, nil
}

func (s *ReviewService) loadedSession(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, error) {
	session, err := s.sessions.Get(ctx, principal, id)
	if err != nil {
		return nil, err
	}
	if !session.Loaded {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "session snapshot is not loaded")
	}
	return session, nil
}

func (s *ReviewService) loadedSessionWithTable(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, models.ReviewTable, error) {
	session, err := s.loadedSession(ctx, principal, id)
	if err != nil {
		return nil, models.ReviewTable{}, err
	}
	table, err := s.sessions.Table(session)
	if err != nil {
		return nil, models.ReviewTable{}, err
	}
	return session, table, nil
}

func (s *ReviewService) machine(table models.ReviewTable) *ReviewMachine {
	return NewReviewMachine(table.Columns, s.location, s.now)
}

// SnapshotStats counts records per status.
func SnapshotStats(records []models.ReviewRecord) models.SnapshotStats {
	stats := models.SnapshotStats{
		Total:     len(records),
		Displayed: len(records),
		ByStatus: map[models.ReviewStatus]int{
			models.ReviewStatusUntouched: 0,
			models.ReviewStatusPending:   0,
			models.ReviewStatusApproved:  0,
			models.ReviewStatusRejected:  0,
		},
	}
	for _, record := range records {
		stats.ByStatus[record.Status]++
	}
	if len(records) > 0 {
		stats.Columns = len(records[0].Row.Columns)
	}
	return stats
}

func findRecord(records []models.ReviewRecord, identity string) (models.ReviewRecord, bool) {
	for _, record := range records {
		if record.IdentityValue == identity {
			return record, true
		}
	}
	return models.ReviewRecord{}, false
}

// hasColumn matches exactly: identifiers are quoted in SQL and rows are keyed
// by the names the store reports.
func hasColumn(columns []models.ColumnInfo, name string) bool {
	for _, col := range columns {
		if col.Name == name {
			return true
		}
	}
	return false
}
