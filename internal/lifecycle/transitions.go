package lifecycle

import (
	"placement-core/internal/models"
)

// edges is the application status graph. Terminal statuses have no outgoing edges
// and no edge leads back into applied.
var edges = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.StatusApplied:            {models.StatusUnderReview, models.StatusRejected, models.StatusWithdrawn},
	models.StatusUnderReview:        {models.StatusInterviewScheduled, models.StatusRejected, models.StatusWithdrawn},
	models.StatusInterviewScheduled: {models.StatusInterviewed, models.StatusRejected},
	models.StatusInterviewed:        {models.StatusOffered, models.StatusRejected},
	models.StatusOffered:            {models.StatusAccepted, models.StatusRejected},
}

// IsEdge reports whether from -> to is in the status graph.
func IsEdge(from, to models.ApplicationStatus) bool {
	for _, next := range edges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next lists the statuses reachable from s in one step.
func Next(s models.ApplicationStatus) []models.ApplicationStatus {
	return append([]models.ApplicationStatus(nil), edges[s]...)
}

type actor int

const (
	actorNone actor = iota
	actorStudent
	actorRecruiter
)

func (a actor) String() string {
	switch a {
	case actorStudent:
		return "owning student"
	case actorRecruiter:
		return "opportunity recruiter"
	default:
		return "nobody"
	}
}

// drivers says who may move an application into each status.
var drivers = map[models.ApplicationStatus]actor{
	models.StatusUnderReview:        actorRecruiter,
	models.StatusInterviewScheduled: actorRecruiter,
	models.StatusInterviewed:        actorRecruiter,
	models.StatusOffered:            actorRecruiter,
	models.StatusRejected:           actorRecruiter,
	models.StatusWithdrawn:          actorStudent,
	models.StatusAccepted:           actorStudent,
}

func driverOf(target models.ApplicationStatus) actor {
	return drivers[target]
}
