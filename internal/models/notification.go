// internal/models/notification.go
package models

import "time"

type NotificationKind string

const (
	NotifyApplicationSubmitted NotificationKind = "application_submitted"
	NotifyApplicationStatus    NotificationKind = "application_status_changed"
	NotifyInterviewScheduled   NotificationKind = "interview_scheduled"
	NotifyInterviewCancelled   NotificationKind = "interview_cancelled"
	NotifyApprovalApproved     NotificationKind = "approval_approved"
	NotifyApprovalRejected     NotificationKind = "approval_rejected"
)

// NotificationEvent is handed to the notification sink after a successful mutation.
type NotificationEvent struct {
	ID         string                 `json:"id"`
	UserID     string                 `json:"userId"`
	Kind       NotificationKind       `json:"kind"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurredAt"`
}
