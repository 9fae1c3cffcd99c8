package roles

import (
	"strings"

	apperrors "placement-core/internal/common/errors"
)

// Jurisdiction is a path in the state > district > college > department tree.
// Empty trailing segments mean "everything below".
type Jurisdiction struct {
	State      string `json:"state,omitempty"`
	District   string `json:"district,omitempty"`
	College    string `json:"college,omitempty"`
	Department string `json:"department,omitempty"`
}

func (j Jurisdiction) segments() [4]string {
	return [4]string{
		strings.TrimSpace(j.State),
		strings.TrimSpace(j.District),
		strings.TrimSpace(j.College),
		strings.TrimSpace(j.Department),
	}
}

// Level is the depth of the deepest set segment.
func (j Jurisdiction) Level() Level {
	segs := j.segments()
	for i := len(segs) - 1; i >= 0; i-- {
		if segs[i] != "" {
			return Level(i + 1)
		}
	}
	return LevelNone
}

// WellFormed reports whether no segment is set below an empty one.
func (j Jurisdiction) WellFormed() bool {
	segs := j.segments()
	for i := 0; i < int(j.Level()); i++ {
		if segs[i] == "" {
			return false
		}
	}
	return true
}

func (j Jurisdiction) String() string {
	segs := j.segments()
	parts := make([]string, 0, 4)
	for i := 0; i < int(j.Level()); i++ {
		parts = append(parts, segs[i])
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, "/")
}

// Trimmed returns j with surrounding whitespace removed from every segment.
func (j Jurisdiction) Trimmed() Jurisdiction {
	segs := j.segments()
	return Jurisdiction{State: segs[0], District: segs[1], College: segs[2], Department: segs[3]}
}

// JurisdictionContains reports whether approver is an ancestor of, or equal to, target.
// Segments compare case-insensitively. A malformed jurisdiction contains nothing and
// is contained by nothing except the root.
func JurisdictionContains(approver, target Jurisdiction) bool {
	if !approver.WellFormed() {
		return false
	}
	depth := approver.Level()
	if depth == LevelNone {
		return true
	}
	if !target.WellFormed() || target.Level() < depth {
		return false
	}
	a, t := approver.segments(), target.segments()
	for i := 0; i < int(depth); i++ {
		if !strings.EqualFold(a[i], t[i]) {
			return false
		}
	}
	return true
}

var segmentNames = [4]string{"state", "district", "college", "department"}

// ValidateJurisdiction checks that j carries every segment r requires.
// Segments deeper than the required level are allowed (a student may name a department).
func ValidateJurisdiction(r Role, j Jurisdiction) error {
	required, err := RequiredLevel(r)
	if err != nil {
		return err
	}
	if !j.WellFormed() {
		return apperrors.NewIncompleteJurisdictionError(string(r), "gap in jurisdiction path "+j.String())
	}
	segs := j.segments()
	var missing []string
	for i := 0; i < int(required); i++ {
		if segs[i] == "" {
			missing = append(missing, segmentNames[i])
		}
	}
	if len(missing) > 0 {
		return apperrors.NewIncompleteJurisdictionError(string(r), strings.Join(missing, ","))
	}
	return nil
}
