// Package score computes the employability score of a student from a profile
// snapshot and keeps the latest result per student.
package score

import "placement-core/internal/models"

// FormulaVersion identifies the weighting below. Bump it whenever a constant changes
// so stored results can be told apart.
const FormulaVersion = "v1"

const (
	profileCompletedPoints = 30

	pointsPerSkill = 3
	maxSkills      = 10

	pointsPerCertificate = 4
	maxCertificates      = 5

	pointsPerEducation = 5
	maxEducation       = 2

	resumePoints = 10

	minScore = 0
	maxScore = 100
)

// Qualification levels.
const (
	LevelExcellent = "excellent"
	LevelHigh      = "high"
	LevelMedium    = "medium"
	LevelLow       = "low"
)

type Breakdown struct {
	Profile      int `json:"profile"`
	Skills       int `json:"skills"`
	Certificates int `json:"certificates"`
	Education    int `json:"education"`
	Resume       int `json:"resume"`
}

func (b Breakdown) total() int {
	return b.Profile + b.Skills + b.Certificates + b.Education + b.Resume
}

// Result is one computation of the score.
type Result struct {
	StudentID      string    `json:"studentId"`
	Score          int       `json:"score"`
	Level          string    `json:"level"`
	Breakdown      Breakdown `json:"breakdown"`
	FormulaVersion string    `json:"formulaVersion"`
	ComputedAt     int64     `json:"computedAt"` // unix seconds, set by Service
}

// Score returns the employability score in [0, 100] for p.
func Score(p models.StudentProfileSnapshot) int {
	return Compute(p).Score
}

// Compute applies the v1 formula:
//
//	30 if the profile is complete
//	3 per distinct skill, up to 10 skills
//	4 per certificate, up to 5
//	5 per education entry, up to 2
//	10 if a resume is present
func Compute(p models.StudentProfileSnapshot) Result {
	var b Breakdown
	if p.ProfileCompleted {
		b.Profile = profileCompletedPoints
	}
	b.Skills = capped(p.SkillCount(), maxSkills) * pointsPerSkill
	b.Certificates = capped(p.Certificates, maxCertificates) * pointsPerCertificate
	b.Education = capped(p.EducationEntries, maxEducation) * pointsPerEducation
	if p.HasResume {
		b.Resume = resumePoints
	}

	total := clamp(b.total(), minScore, maxScore)
	return Result{
		StudentID:      p.StudentID,
		Score:          total,
		Level:          ClassifyLevel(total),
		Breakdown:      b,
		FormulaVersion: FormulaVersion,
	}
}

func ClassifyLevel(score int) string {
	switch {
	case score >= 81:
		return LevelExcellent
	case score >= 61:
		return LevelHigh
	case score >= 41:
		return LevelMedium
	default:
		return LevelLow
	}
}

// capped treats negative counts as zero.
func capped(n, limit int) int {
	return clamp(n, 0, limit)
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
