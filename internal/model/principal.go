package model

import "github.com/google/uuid"

const (
	RoleAdmin     = "ADMIN"
	RoleDeveloper = "DEVELOPER"
)

type Principal struct {
	UserID uuid.UUID
	OrgID  *uuid.UUID
	Role   string
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) IsDeveloper() bool {
	return p.Role == RoleDeveloper
}

// CanManageContracts covers issuing, countersigning and payment bookkeeping.
func (p Principal) CanManageContracts() bool {
	return p.IsAdmin() || p.IsDeveloper()
}
