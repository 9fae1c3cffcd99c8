// internal/models/application.go
package models

import "time"

type ApplicationStatus string

const (
	StatusApplied            ApplicationStatus = "applied"
	StatusUnderReview        ApplicationStatus = "under_review"
	StatusInterviewScheduled ApplicationStatus = "interview_scheduled"
	StatusInterviewed        ApplicationStatus = "interviewed"
	StatusOffered            ApplicationStatus = "offered"
	StatusAccepted           ApplicationStatus = "accepted"
	StatusRejected           ApplicationStatus = "rejected"
	StatusWithdrawn          ApplicationStatus = "withdrawn"
)

// ApplicationStatuses lists every status in lifecycle order.
func ApplicationStatuses() []ApplicationStatus {
	return []ApplicationStatus{
		StatusApplied, StatusUnderReview, StatusInterviewScheduled, StatusInterviewed,
		StatusOffered, StatusAccepted, StatusRejected, StatusWithdrawn,
	}
}

func (s ApplicationStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusWithdrawn
}

// Live reports whether an application in s blocks a new application for the
// same student and opportunity.
func (s ApplicationStatus) Live() bool {
	return s != StatusRejected && s != StatusWithdrawn
}

// Application is a student's application to an opportunity.
type Application struct {
	ID            string            `json:"id" db:"id"`
	StudentID     string            `json:"studentId" db:"student_id"`
	OpportunityID string            `json:"opportunityId" db:"opportunity_id"`
	RecruiterID   string            `json:"recruiterId" db:"recruiter_id"`
	Status        ApplicationStatus `json:"status" db:"status"`
	AppliedAt     time.Time         `json:"appliedAt" db:"applied_at"`
	InterviewID   string            `json:"interviewId,omitempty" db:"interview_id"`
	Feedback      string            `json:"feedback,omitempty" db:"feedback"`
	Version       int64             `json:"version" db:"version"`
	UpdatedAt     time.Time         `json:"updatedAt" db:"updated_at"`
}

type InterviewStatus string

const (
	InterviewScheduled InterviewStatus = "scheduled"
	InterviewCompleted InterviewStatus = "completed"
	InterviewCancelled InterviewStatus = "cancelled"
)

// Interview belongs to one application. Only non-cancelled interviews are active.
type Interview struct {
	ID            string          `json:"id" db:"id"`
	ApplicationID string          `json:"applicationId" db:"application_id"`
	ScheduledAt   time.Time       `json:"scheduledAt" db:"scheduled_at"`
	Status        InterviewStatus `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time       `json:"updatedAt" db:"updated_at"`
}

func (i *Interview) Active() bool {
	return i != nil && i.Status != InterviewCancelled
}

// Opportunity is the job or internship a student applies to.
type Opportunity struct {
	ID          string `json:"id" db:"id"`
	RecruiterID string `json:"recruiterId" db:"recruiter_id"`
	Title       string `json:"title" db:"title"`
	Open        bool   `json:"open" db:"open"`
}

// ApplicationQuery selects applications by student or by opportunity. Exactly one field is set.
type ApplicationQuery struct {
	StudentID     string `json:"studentId,omitempty"`
	OpportunityID string `json:"opportunityId,omitempty"`
}

func (q ApplicationQuery) Valid() bool {
	return (q.StudentID == "") != (q.OpportunityID == "")
}
