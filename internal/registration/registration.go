// Package registration turns role-specific registration forms into approvable
// entities. Each role has its own JSON Schema; the "role" field picks it.
package registration

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	apperrors "placement-core/internal/common/errors"
	"placement-core/internal/models"
	"placement-core/internal/roles"
)

// Form is the union of every field a registration may carry.
type Form struct {
	Role             string `json:"role"`
	SubjectID        string `json:"subjectId,omitempty"`
	State            string `json:"state,omitempty"`
	District         string `json:"district,omitempty"`
	College          string `json:"college,omitempty"`
	Department       string `json:"department,omitempty"`
	EmployeeID       string `json:"employeeId,omitempty"`
	Designation      string `json:"designation,omitempty"`
	ABCID            string `json:"abcId,omitempty"`
	CompanyName      string `json:"companyName,omitempty"`
	Website          string `json:"website,omitempty"`
	InvitedByCollege string `json:"invitedByCollege,omitempty"`
}

type Decoder struct {
	schemas map[roles.Role]*gojsonschema.Schema
}

// NewDecoder compiles the per-role schemas.
func NewDecoder() (*Decoder, error) {
	d := &Decoder{schemas: make(map[roles.Role]*gojsonschema.Schema, len(forms))}
	for r, form := range forms {
		s, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schemaFor(r, form)))
		if err != nil {
			return nil, fmt.Errorf("compile %s registration schema: %w", r, err)
		}
		d.schemas[r] = s
	}
	return d, nil
}

// Roles lists the roles that can register, sorted.
func (d *Decoder) Roles() []roles.Role {
	out := make([]roles.Role, 0, len(d.schemas))
	for r := range d.schemas {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Decode validates raw against the schema of its role and builds the entity to submit.
func (d *Decoder) Decode(raw []byte) (*models.ApprovableEntity, error) {
	var head struct {
		Role *string `json:"role"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, apperrors.NewInvalidPayloadError("malformed registration: " + err.Error())
	}
	if head.Role == nil {
		return nil, apperrors.NewInvalidPayloadError("role is required")
	}
	role, err := roles.Parse(*head.Role)
	if err != nil {
		return nil, err
	}
	schema, ok := d.schemas[role]
	if !ok {
		return nil, apperrors.NewInvalidPayloadError(fmt.Sprintf("role %s cannot be registered", role))
	}

	// the schema pins role to its canonical spelling
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.NewInvalidPayloadError("malformed registration: " + err.Error())
	}
	doc["role"] = string(role)

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, apperrors.NewInvalidPayloadError("validation error: " + err.Error())
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, apperrors.NewInvalidPayloadError(strings.Join(errs, "; ")).
			WithMetadata("errors", errs)
	}

	var form Form
	if err := json.Unmarshal(raw, &form); err != nil {
		return nil, apperrors.NewInvalidPayloadError("malformed registration: " + err.Error())
	}
	return build(role, form), nil
}

func build(role roles.Role, f Form) *models.ApprovableEntity {
	e := &models.ApprovableEntity{
		SubjectID: strings.TrimSpace(f.SubjectID),
		Jurisdiction: roles.Jurisdiction{
			State:      f.State,
			District:   f.District,
			College:    f.College,
			Department: f.Department,
		}.Trimmed(),
	}

	if role == roles.Recruiter {
		invitedBy := strings.TrimSpace(f.InvitedByCollege)
		e.Kind = models.KindRecruiterAccount
		e.Recruiter = &models.RecruiterAccount{
			CompanyName:      strings.TrimSpace(f.CompanyName),
			Website:          strings.TrimSpace(f.Website),
			InvitedByCollege: invitedBy,
		}
		if invitedBy == "" {
			e.Jurisdiction = roles.Jurisdiction{}
		} else {
			e.Jurisdiction.College = invitedBy
		}
		return e
	}

	e.Kind = models.KindRoleGrant
	e.RoleGrant = &models.RoleGrant{
		Role:        role,
		ABCID:       strings.TrimSpace(f.ABCID),
		EmployeeID:  strings.TrimSpace(f.EmployeeID),
		Designation: strings.TrimSpace(f.Designation),
	}
	return e
}
