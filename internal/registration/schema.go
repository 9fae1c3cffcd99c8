package registration

import (
	"placement-core/internal/roles"
)

var fieldSchemas = map[string]map[string]interface{}{
	"role":             {"type": "string"},
	"subjectId":        {"type": "string", "minLength": 1, "maxLength": 128},
	"state":            segment(),
	"district":         segment(),
	"college":          segment(),
	"department":       segment(),
	"employeeId":       {"type": "string", "pattern": `\S`, "maxLength": 64},
	"designation":      {"type": "string", "maxLength": 128},
	"abcId":            {"type": "string", "pattern": `^[0-9]{12}$`},
	"companyName":      {"type": "string", "pattern": `\S`, "maxLength": 256},
	"website":          {"type": "string", "format": "uri"},
	"invitedByCollege": segment(),
}

func segment() map[string]interface{} {
	return map[string]interface{}{"type": "string", "pattern": `\S`, "maxLength": 128}
}

type roleForm struct {
	fields       []string
	required     []string
	dependencies map[string][]string
}

// forms lists, per registrable role, the fields it may carry and the ones it must.
// Admin is bootstrapped outside the portal and has no form.
var forms = map[roles.Role]roleForm{
	roles.Student: {
		fields:   []string{"state", "district", "college", "department", "abcId"},
		required: []string{"state", "district", "college", "abcId"},
	},
	roles.DeptCoordinator: {
		fields:   []string{"state", "district", "college", "department", "employeeId", "designation"},
		required: []string{"state", "district", "college", "department", "employeeId"},
	},
	roles.CollegePlacement: {
		fields:   []string{"state", "district", "college", "employeeId", "designation"},
		required: []string{"state", "district", "college", "employeeId"},
	},
	roles.DTO: {
		fields:   []string{"state", "district", "employeeId", "designation"},
		required: []string{"state", "district", "employeeId"},
	},
	roles.STO: {
		fields:   []string{"state", "employeeId", "designation"},
		required: []string{"state", "employeeId"},
	},
	roles.NTO: {
		fields:   []string{"employeeId", "designation"},
		required: []string{"employeeId"},
	},
	roles.Recruiter: {
		fields:       []string{"companyName", "website", "invitedByCollege", "state", "district"},
		required:     []string{"companyName"},
		dependencies: map[string][]string{"invitedByCollege": {"state", "district"}},
	},
}

// schemaFor builds the JSON Schema document for one role's form.
func schemaFor(r roles.Role, form roleForm) map[string]interface{} {
	props := map[string]interface{}{
		"role":      map[string]interface{}{"type": "string", "enum": []interface{}{string(r)}},
		"subjectId": fieldSchemas["subjectId"],
	}
	for _, f := range form.fields {
		props[f] = fieldSchemas[f]
	}

	required := []interface{}{"role"}
	for _, f := range form.required {
		required = append(required, f)
	}

	schema := map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
	if len(form.dependencies) > 0 {
		deps := map[string]interface{}{}
		for k, v := range form.dependencies {
			list := make([]interface{}, len(v))
			for i, f := range v {
				list[i] = f
			}
			deps[k] = list
		}
		schema["dependencies"] = deps
	}
	return schema
}
