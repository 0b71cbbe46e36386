package models

import "strings"

// Role represents a review workflow role.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleMaker        Role = "MAKER"
	RoleChecker      Role = "CHECKER"
	RoleUnauthorized Role = "UNAUTHORIZED"
)

// ParseRole normalises raw into a Role; unknown values become RoleUnauthorized.
func ParseRole(raw string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleMaker:
		return RoleMaker
	case RoleChecker:
		return RoleChecker
	default:
		return RoleUnauthorized
	}
}

// CanSubmit reports whether the role may propose values.
func (r Role) CanSubmit() bool {
	return r == RoleAdmin || r == RoleMaker
}

// CanApprove reports whether the role may approve or reject.
func (r Role) CanApprove() bool {
	return r == RoleAdmin || r == RoleChecker
}

// Principal is the resolved caller of a request.
type Principal struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Authorized reports whether the principal holds any workflow role.
func (p *Principal) Authorized() bool {
	return p != nil && p.Role != RoleUnauthorized && p.Role != ""
}
