// internal/models/entity.go
package models

import (
	"fmt"
	"time"

	"placement-core/internal/roles"
)

type EntityKind string

const (
	KindRoleGrant        EntityKind = "role_grant"
	KindCollege          EntityKind = "college"
	KindDepartment       EntityKind = "department"
	KindRecruiterAccount EntityKind = "recruiter_account"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Terminal reports whether s can no longer change.
func (s ApprovalStatus) Terminal() bool {
	return s == ApprovalApproved || s == ApprovalRejected
}

// RoleGrant asks for a role to be granted to the entity's subject.
type RoleGrant struct {
	Role        roles.Role `json:"role"`
	ABCID       string     `json:"abcId,omitempty"`
	EmployeeID  string     `json:"employeeId,omitempty"`
	Designation string     `json:"designation,omitempty"`
}

// College registers an institution. Its placement officer is the subject.
type College struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Department registers a department of an approved college.
type Department struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// RecruiterAccount registers a hiring company. InvitedByCollege is set when a
// college placement officer invited the recruiter.
type RecruiterAccount struct {
	CompanyName      string `json:"companyName"`
	Website          string `json:"website,omitempty"`
	InvitedByCollege string `json:"invitedByCollege,omitempty"`
}

// ApprovableEntity is a closed union over the four approvable kinds. Exactly one
// of the variant pointers is set and it matches Kind.
type ApprovableEntity struct {
	ID           string             `json:"id" db:"id"`
	Kind         EntityKind         `json:"kind" db:"kind"`
	Status       ApprovalStatus     `json:"status" db:"status"`
	Version      int64              `json:"version" db:"version"`
	Jurisdiction roles.Jurisdiction `json:"jurisdiction"`
	SubjectID    string             `json:"subjectId" db:"subject_id"`
	SubmittedBy  string             `json:"submittedBy" db:"submitted_by"`
	ApproverID   string             `json:"approverId,omitempty" db:"approver_id"`
	Reason       string             `json:"reason,omitempty" db:"reason"`
	DecidedAt    *time.Time         `json:"decidedAt,omitempty" db:"decided_at"`
	CreatedAt    time.Time          `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time          `json:"updatedAt" db:"updated_at"`

	RoleGrant  *RoleGrant        `json:"roleGrant,omitempty"`
	College    *College          `json:"college,omitempty"`
	Department *Department       `json:"department,omitempty"`
	Recruiter  *RecruiterAccount `json:"recruiter,omitempty"`
}

// CheckVariant verifies that the variant payload matches Kind.
func (e *ApprovableEntity) CheckVariant() error {
	set := 0
	for _, p := range []bool{e.RoleGrant != nil, e.College != nil, e.Department != nil, e.Recruiter != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("entity must carry exactly one variant, got %d", set)
	}

	switch e.Kind {
	case KindRoleGrant:
		if e.RoleGrant == nil {
			return fmt.Errorf("kind %s requires a role grant payload", e.Kind)
		}
		if !e.RoleGrant.Role.Valid() {
			return fmt.Errorf("unknown role %q", e.RoleGrant.Role)
		}
	case KindCollege:
		if e.College == nil {
			return fmt.Errorf("kind %s requires a college payload", e.Kind)
		}
	case KindDepartment:
		if e.Department == nil {
			return fmt.Errorf("kind %s requires a department payload", e.Kind)
		}
	case KindRecruiterAccount:
		if e.Recruiter == nil {
			return fmt.Errorf("kind %s requires a recruiter payload", e.Kind)
		}
	default:
		return fmt.Errorf("unknown entity kind %q", e.Kind)
	}
	return nil
}

// TargetRole is the role whose approver decides on this entity.
func (e *ApprovableEntity) TargetRole() roles.Role {
	switch e.Kind {
	case KindRoleGrant:
		if e.RoleGrant != nil {
			return e.RoleGrant.Role
		}
	case KindCollege:
		return roles.CollegePlacement
	case KindDepartment:
		return roles.DeptCoordinator
	case KindRecruiterAccount:
		return roles.Recruiter
	}
	return ""
}

// Invited reports whether the entity is a recruiter registered through a college invitation.
func (e *ApprovableEntity) Invited() bool {
	return e.Kind == KindRecruiterAccount && e.Recruiter != nil && e.Recruiter.InvitedByCollege != ""
}

// RequiredLevel is the jurisdiction depth the entity must carry to be submitted.
// Invited recruiters are scoped to the inviting college.
func (e *ApprovableEntity) RequiredLevel() (roles.Level, error) {
	if e.Invited() {
		return roles.LevelCollege, nil
	}
	return roles.RequiredLevel(e.TargetRole())
}

// Approvers lists the roles allowed to decide on the entity, required approver first.
func (e *ApprovableEntity) Approvers() ([]roles.Role, error) {
	target := e.TargetRole()
	approver, ok, err := roles.RequiredApprover(target)
	if err != nil {
		return nil, err
	}
	var out []roles.Role
	if ok {
		out = append(out, approver)
	}
	if e.Invited() {
		if delegated, ok := roles.DelegatedApprover(target); ok {
			out = append(out, delegated)
		}
	}
	return out, nil
}

// Assignment is the role assignment a role grant or recruiter account confers on its subject.
func (e *ApprovableEntity) Assignment() (RoleAssignment, bool) {
	var role roles.Role
	switch {
	case e.Kind == KindRoleGrant && e.RoleGrant != nil:
		role = e.RoleGrant.Role
	case e.Kind == KindRecruiterAccount && e.Recruiter != nil:
		role = roles.Recruiter
	default:
		return RoleAssignment{}, false
	}
	return RoleAssignment{
		Role:         role,
		Approved:     e.Status == ApprovalApproved,
		ApproverID:   e.ApproverID,
		Jurisdiction: e.Jurisdiction,
	}, true
}

// Clone returns a deep copy so stores never share variant pointers with callers.
func (e *ApprovableEntity) Clone() *ApprovableEntity {
	if e == nil {
		return nil
	}
	out := *e
	if e.DecidedAt != nil {
		t := *e.DecidedAt
		out.DecidedAt = &t
	}
	if e.RoleGrant != nil {
		v := *e.RoleGrant
		out.RoleGrant = &v
	}
	if e.College != nil {
		v := *e.College
		out.College = &v
	}
	if e.Department != nil {
		v := *e.Department
		out.Department = &v
	}
	if e.Recruiter != nil {
		v := *e.Recruiter
		out.Recruiter = &v
	}
	return &out
}
