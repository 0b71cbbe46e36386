package service

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/merchant-review-api/internal/models"
	"github.com/noah-isme/merchant-review-api/pkg/config"
	appErrors "github.com/noah-isme/merchant-review-api/pkg/errors"
)

// RoleDirectory maps caller emails to workflow roles.
type RoleDirectory struct {
	admins           map[string]struct{}
	makers           map[string]struct{}
	checkers         map[string]struct{}
	adminDefaultRole models.Role
	logger           *zap.Logger
}

// NewRoleDirectory builds the lookup sets from configuration. An invalid
// admin default acting role falls back to MAKER.
func NewRoleDirectory(cfg config.RolesConfig, logger *zap.Logger) *RoleDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	adminDefault := models.ParseRole(cfg.AdminDefaultRole)
	if adminDefault != models.RoleMaker && adminDefault != models.RoleChecker {
		logger.Warn("invalid admin default acting role, using MAKER", zap.String("configured", cfg.AdminDefaultRole))
		adminDefault = models.RoleMaker
	}
	return &RoleDirectory{
		admins:           emailSet(cfg.Admins),
		makers:           emailSet(cfg.Makers),
		checkers:         emailSet(cfg.Checkers),
		adminDefaultRole: adminDefault,
		logger:           logger,
	}
}

// RoleFor returns the caller's base role, checking ADMIN, MAKER then CHECKER.
// Identifiers that are not email addresses are UNAUTHORIZED.
func (d *RoleDirectory) RoleFor(identity string) models.Role {
	email := normalizeEmail(identity)
	if email == "" {
		return models.RoleUnauthorized
	}
	if !strings.Contains(email, "@") {
		d.logger.Warn("identity is not an email, treating as unauthorized", zap.String("identity", identity))
		return models.RoleUnauthorized
	}
	if _, ok := d.admins[email]; ok {
		return models.RoleAdmin
	}
	if _, ok := d.makers[email]; ok {
		return models.RoleMaker
	}
	if _, ok := d.checkers[email]; ok {
		return models.RoleChecker
	}
	return models.RoleUnauthorized
}

// Principal resolves identity into a Principal.
func (d *RoleDirectory) Principal(identity string) *models.Principal {
	return &models.Principal{Email: normalizeEmail(identity), Role: d.RoleFor(identity)}
}

// AdminDefaultRole is the acting role given to ADMIN sessions without an
// explicit choice.
func (d *RoleDirectory) AdminDefaultRole() models.Role {
	return d.adminDefaultRole
}

// EffectiveRole combines the base role with an optional acting role chosen
// for the session. Only ADMIN may act as another role.
func (d *RoleDirectory) EffectiveRole(base, acting models.Role) (models.Role, error) {
	switch base {
	case models.RoleAdmin:
		switch acting {
		case "":
			d.logger.Info("admin session without acting role, applying default",
				zap.String("acting_role", string(d.adminDefaultRole)))
			return d.adminDefaultRole, nil
		case models.RoleMaker, models.RoleChecker:
			return acting, nil
		default:
			return "", appErrors.Clone(appErrors.ErrValidation, "acting role must be MAKER or CHECKER")
		}
	case models.RoleMaker, models.RoleChecker:
		if acting == "" || acting == base {
			return base, nil
		}
		return "", appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("role %s cannot act as %s", base, acting))
	default:
		return "", appErrors.ErrForbidden
	}
}

func emailSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, item := range list {
		if email := normalizeEmail(item); email != "" {
			set[email] = struct{}{}
		}
	}
	return set
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
