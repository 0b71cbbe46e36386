package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/merchant-review-api/internal/models"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
)

const sessionKeyPrefix = "review:session:"

// SessionService stores review sessions. A session is owned by the identity
// that opened it and expires after the configured TTL of inactivity. A caller
// holds one live session: opening a new one closes the previous ones, so a
// table switch never leaves an old snapshot behind.
type SessionService struct {
	cache     *CacheService
	directory *RoleDirectory
	tables    *TableRegistry
	ttl       time.Duration
	logger    *zap.Logger
	now       func() time.Time
	newID     func() string
}

// SessionOption customises the session service.
type SessionOption func(*SessionService)

// WithSessionClock overrides the clock used for timestamps.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionIDGenerator overrides session id generation.
func WithSessionIDGenerator(fn func() string) SessionOption {
	return func(s *SessionService) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewSessionService constructs a SessionService.
func NewSessionService(cache *CacheService, directory *RoleDirectory, tables *TableRegistry, ttl time.Duration, logger *zap.Logger, opts ...SessionOption) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	svc := &SessionService{
		cache:     cache,
		directory: directory,
		tables:    tables,
		ttl:       ttl,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Open creates a session for principal on tableKey. The effective role is
// fixed for the lifetime of the session.
func (s *SessionService) Open(ctx context.Context, principal *models.Principal, tableKey string, actingRole string) (*models.ReviewSession, error) {
	if !principal.Authorized() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller has no review role")
	}
	table, err := s.tables.Get(strings.TrimSpace(tableKey))
	if err != nil {
		return nil, err
	}
	acting := models.Role("")
	if strings.TrimSpace(actingRole) != "" {
		acting = models.ParseRole(actingRole)
	}
	effective, err := s.directory.EffectiveRole(principal.Role, acting)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Invalidate(ctx, ownerPattern(principal.Email)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close previous review sessions")
	}

	session := &models.ReviewSession{
		ID:            s.newID(),
		Email:         principal.Email,
		BaseRole:      principal.Role,
		ActingRole:    acting,
		EffectiveRole: effective,
		TableKey:      table.Key,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.Save(ctx, session); err != nil {
		return nil, err
	}
	s.logger.Info("review session opened",
		zap.String("session_id", session.ID),
		zap.String("email", session.Email),
		zap.String("table", session.TableKey),
		zap.String("base_role", string(session.BaseRole)),
		zap.String("effective_role", string(session.EffectiveRole)))
	return session, nil
}

// Get returns the session when it exists and belongs to principal.
func (s *SessionService) Get(ctx context.Context, principal *models.Principal, id string) (*models.ReviewSession, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthorized
	}
	var session models.ReviewSession
	hit, err := s.cache.Get(ctx, sessionKey(principal.Email, id), &session)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read review session")
	}
	if !hit || !strings.EqualFold(session.Email, principal.Email) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "review session not found")
	}
	return &session, nil
}

// Save persists session and renews its TTL.
func (s *SessionService) Save(ctx context.Context, session *models.ReviewSession) error {
	if err := s.cache.Set(ctx, sessionKey(session.Email, session.ID), session, s.ttl); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store review session")
	}
	return nil
}

// Close removes the session.
func (s *SessionService) Close(ctx context.Context, principal *models.Principal, id string) error {
	session, err := s.Get(ctx, principal, id)
	if err != nil {
		return err
	}
	if err := s.Discard(ctx, session); err != nil {
		return err
	}
	s.logger.Info("review session closed", zap.String("session_id", id))
	return nil
}

// Discard removes a stored session without an ownership check.
func (s *SessionService) Discard(ctx context.Context, session *models.ReviewSession) error {
	if err := s.cache.Delete(ctx, sessionKey(session.Email, session.ID)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discard review session")
	}
	return nil
}

// Table returns the table a session is bound to.
func (s *SessionService) Table(session *models.ReviewSession) (models.ReviewTable, error) {
	return s.tables.Get(session.TableKey)
}

// ownerSegment maps an email onto a key segment free of glob characters.
func ownerSegment(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+normalizeEmail(email))).String()
}

func sessionKey(email, id string) string {
	return fmt.Sprintf("%s%s:%s", sessionKeyPrefix, ownerSegment(email), id)
}

func ownerPattern(email string) string {
	return fmt.Sprintf("%s%s:*", sessionKeyPrefix, ownerSegment(email))
}
