// internal/models/identity.go
package models

import "placement-core/internal/roles"

// RoleAssignment is the single role a user holds.
type RoleAssignment struct {
	Role         roles.Role         `json:"role" db:"role"`
	Approved     bool               `json:"approved" db:"approved"`
	ApproverID   string             `json:"approverId,omitempty" db:"approver_id"`
	Jurisdiction roles.Jurisdiction `json:"jurisdiction"`
}

// Identity is a portal user together with their role assignment.
type Identity struct {
	UserID     string         `json:"userId" db:"user_id"`
	Assignment RoleAssignment `json:"assignment"`
}

// Caller returns the per-call identity context for id.
func (id Identity) Caller() Caller {
	return Caller{
		ID:           id.UserID,
		Role:         id.Assignment.Role,
		Jurisdiction: id.Assignment.Jurisdiction,
	}
}

// Caller is the identity context supplied by the auth layer on every call.
// It is trusted as given.
type Caller struct {
	ID           string             `json:"callerId"`
	Role         roles.Role         `json:"callerRole"`
	Jurisdiction roles.Jurisdiction `json:"callerJurisdiction"`
}
