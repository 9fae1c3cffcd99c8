package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"placement-core/internal/roles"
)

func TestApprovableEntity_CheckVariant(t *testing.T) {
	tests := []struct {
		name    string
		entity  ApprovableEntity
		wantErr bool
	}{
		{"role grant", ApprovableEntity{Kind: KindRoleGrant, RoleGrant: &RoleGrant{Role: roles.DTO}}, false},
		{"college", ApprovableEntity{Kind: KindCollege, College: &College{Code: "C1"}}, false},
		{"department", ApprovableEntity{Kind: KindDepartment, Department: &Department{Code: "CS"}}, false},
		{"recruiter", ApprovableEntity{Kind: KindRecruiterAccount, Recruiter: &RecruiterAccount{CompanyName: "Acme"}}, false},
		{"no variant", ApprovableEntity{Kind: KindCollege}, true},
		{"two variants", ApprovableEntity{Kind: KindCollege, College: &College{}, Department: &Department{}}, true},
		{"kind mismatch", ApprovableEntity{Kind: KindCollege, Department: &Department{}}, true},
		{"unknown role", ApprovableEntity{Kind: KindRoleGrant, RoleGrant: &RoleGrant{Role: "dean"}}, true},
		{"unknown kind", ApprovableEntity{Kind: "campus", College: &College{}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.CheckVariant()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestApprovableEntity_Approvers(t *testing.T) {
	college := &ApprovableEntity{Kind: KindCollege, College: &College{Code: "C1"}}
	approvers, err := college.Approvers()
	require.NoError(t, err)
	assert.Equal(t, []roles.Role{roles.DTO}, approvers)

	dept := &ApprovableEntity{Kind: KindDepartment, Department: &Department{Code: "CS"}}
	approvers, err = dept.Approvers()
	require.NoError(t, err)
	assert.Equal(t, []roles.Role{roles.CollegePlacement}, approvers)

	direct := &ApprovableEntity{Kind: KindRecruiterAccount, Recruiter: &RecruiterAccount{CompanyName: "Acme"}}
	approvers, err = direct.Approvers()
	require.NoError(t, err)
	assert.Equal(t, []roles.Role{roles.Admin}, approvers)
	level, err := direct.RequiredLevel()
	require.NoError(t, err)
	assert.Equal(t, roles.LevelNone, level)

	invited := &ApprovableEntity{Kind: KindRecruiterAccount, Recruiter: &RecruiterAccount{CompanyName: "Acme", InvitedByCollege: "COEP"}}
	approvers, err = invited.Approvers()
	require.NoError(t, err)
	assert.Equal(t, []roles.Role{roles.Admin, roles.CollegePlacement}, approvers)
	level, err = invited.RequiredLevel()
	require.NoError(t, err)
	assert.Equal(t, roles.LevelCollege, level)

	admin := &ApprovableEntity{Kind: KindRoleGrant, RoleGrant: &RoleGrant{Role: roles.Admin}}
	approvers, err = admin.Approvers()
	require.NoError(t, err)
	assert.Empty(t, approvers)
}

func TestApprovableEntity_Assignment(t *testing.T) {
	j := roles.Jurisdiction{State: "Maharashtra", District: "Pune"}
	e := &ApprovableEntity{
		Kind:         KindRoleGrant,
		Status:       ApprovalApproved,
		ApproverID:   "sto-1",
		Jurisdiction: j,
		RoleGrant:    &RoleGrant{Role: roles.DTO},
	}
	a, ok := e.Assignment()
	require.True(t, ok)
	assert.Equal(t, RoleAssignment{Role: roles.DTO, Approved: true, ApproverID: "sto-1", Jurisdiction: j}, a)

	rec, ok := (&ApprovableEntity{Kind: KindRecruiterAccount, Recruiter: &RecruiterAccount{CompanyName: "Acme"}}).Assignment()
	require.True(t, ok)
	assert.Equal(t, roles.Recruiter, rec.Role)
	assert.False(t, rec.Approved)

	_, ok = (&ApprovableEntity{Kind: KindCollege, College: &College{}}).Assignment()
	assert.False(t, ok)
}

func TestApprovableEntity_CloneIsDeep(t *testing.T) {
	now := time.Now()
	e := &ApprovableEntity{Kind: KindRoleGrant, RoleGrant: &RoleGrant{Role: roles.Student}, DecidedAt: &now}
	c := e.Clone()
	c.RoleGrant.Role = roles.DTO
	*c.DecidedAt = now.Add(time.Hour)

	assert.Equal(t, roles.Student, e.RoleGrant.Role)
	assert.Equal(t, now, *e.DecidedAt)
	assert.Nil(t, (*ApprovableEntity)(nil).Clone())
}

func TestIdentity_Caller(t *testing.T) {
	id := Identity{UserID: "u1", Assignment: RoleAssignment{Role: roles.STO, Jurisdiction: roles.Jurisdiction{State: "Goa"}}}
	assert.Equal(t, Caller{ID: "u1", Role: roles.STO, Jurisdiction: roles.Jurisdiction{State: "Goa"}}, id.Caller())
}

func TestApplicationStatus(t *testing.T) {
	assert.True(t, StatusAccepted.Terminal())
	assert.True(t, StatusWithdrawn.Terminal())
	assert.False(t, StatusOffered.Terminal())

	assert.True(t, StatusAccepted.Live())
	assert.True(t, StatusApplied.Live())
	assert.False(t, StatusRejected.Live())
	assert.False(t, StatusWithdrawn.Live())
}

func TestSnapshot_SkillCount(t *testing.T) {
	p := StudentProfileSnapshot{Skills: []string{"Go", "go ", "SQL", "", "  ", "Docker"}}
	assert.Equal(t, 3, p.SkillCount())
}

func TestApplicationQuery_Valid(t *testing.T) {
	assert.True(t, ApplicationQuery{StudentID: "s"}.Valid())
	assert.True(t, ApplicationQuery{OpportunityID: "o"}.Valid())
	assert.False(t, ApplicationQuery{}.Valid())
	assert.False(t, ApplicationQuery{StudentID: "s", OpportunityID: "o"}.Valid())
}
