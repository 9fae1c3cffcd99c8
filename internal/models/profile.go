// internal/models/profile.go
package models

import "strings"

// StudentProfileSnapshot is the read-only input to score computation.
type StudentProfileSnapshot struct {
	StudentID        string   `json:"studentId" db:"student_id"`
	ProfileCompleted bool     `json:"profileCompleted" db:"profile_completed"`
	Skills           []string `json:"skills" db:"skills"`
	Certificates     int      `json:"certificates" db:"certificates"`
	EducationEntries int      `json:"educationEntries" db:"education_entries"`
	HasResume        bool     `json:"hasResume" db:"has_resume"`
}

// SkillCount counts distinct non-blank skills, ignoring case.
func (p StudentProfileSnapshot) SkillCount() int {
	seen := make(map[string]struct{}, len(p.Skills))
	for _, s := range p.Skills {
		k := strings.ToLower(strings.TrimSpace(s))
		if k == "" {
			continue
		}
		seen[k] = struct{}{}
	}
	return len(seen)
}
