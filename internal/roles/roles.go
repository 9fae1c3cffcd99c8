// Package roles is the static role registry: who approves whom, and which
// jurisdiction each role acts within.
package roles

import (
	"fmt"
	"strings"

	apperrors "placement-core/internal/common/errors"
)

// Role is a portal role.
type Role string

const (
	Student          Role = "student"
	DeptCoordinator  Role = "dept_coordinator"
	CollegePlacement Role = "college_placement"
	DTO              Role = "dto"
	STO              Role = "sto"
	NTO              Role = "nto"
	Admin            Role = "admin"
	Recruiter        Role = "recruiter"
)

// Level is the depth of a jurisdiction in the state > district > college > department tree.
type Level int

const (
	LevelNone Level = iota
	LevelState
	LevelDistrict
	LevelCollege
	LevelDepartment
)

func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelState:
		return "state"
	case LevelDistrict:
		return "district"
	case LevelCollege:
		return "college"
	case LevelDepartment:
		return "department"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

type roleSpec struct {
	approver Role // empty for admin
	level    Level
}

// registry is the approver -> approvee table.
//
//	admin -> nto -> sto -> dto -> college_placement -> dept_coordinator
//	college_placement -> student
//	admin -> recruiter (college_placement for invited recruiters)
var registry = map[Role]roleSpec{
	Admin:            {approver: "", level: LevelNone},
	NTO:              {approver: Admin, level: LevelNone},
	STO:              {approver: NTO, level: LevelState},
	DTO:              {approver: STO, level: LevelDistrict},
	CollegePlacement: {approver: DTO, level: LevelCollege},
	DeptCoordinator:  {approver: CollegePlacement, level: LevelDepartment},
	Student:          {approver: CollegePlacement, level: LevelCollege},
	Recruiter:        {approver: Admin, level: LevelNone},
}

// All returns every known role in hierarchy order.
func All() []Role {
	return []Role{Admin, NTO, STO, DTO, CollegePlacement, DeptCoordinator, Student, Recruiter}
}

// Parse normalises s and checks it against the registry.
func Parse(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", apperrors.NewUnknownRoleError(s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	_, ok := registry[r]
	return ok
}

func (r Role) String() string { return string(r) }

// RequiredApprover returns the role that must approve a grant of r.
// ok is false for admin, which is bootstrapped outside the core.
func RequiredApprover(r Role) (approver Role, ok bool, err error) {
	spec, found := registry[r]
	if !found {
		return "", false, apperrors.NewUnknownRoleError(string(r))
	}
	if spec.approver == "" {
		return "", false, nil
	}
	return spec.approver, true, nil
}

// DelegatedApprover returns the role that may approve r in place of the
// required approver when the grant was issued through an invitation.
func DelegatedApprover(r Role) (Role, bool) {
	if r == Recruiter {
		return CollegePlacement, true
	}
	return "", false
}

// Approvees lists the roles approver decides on, delegated ones included.
func Approvees(approver Role) []Role {
	var out []Role
	for _, r := range All() {
		if registry[r].approver == approver && approver != "" {
			out = append(out, r)
			continue
		}
		if delegated, ok := DelegatedApprover(r); ok && delegated == approver {
			out = append(out, r)
		}
	}
	return out
}

// RequiredLevel is the jurisdiction depth a grant of r must carry.
func RequiredLevel(r Role) (Level, error) {
	spec, found := registry[r]
	if !found {
		return LevelNone, apperrors.NewUnknownRoleError(string(r))
	}
	return spec.level, nil
}
