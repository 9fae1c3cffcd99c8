// Package errors defines the typed failures returned by every exposed operation of the core.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Error Codes
// ==========================

// ErrorCode identifies one failure kind of the core.
type ErrorCode string

// Domain failures. All are permanent except VersionConflict.
const (
	ErrCodeNotFound               ErrorCode = "NOT_FOUND"
	ErrCodeIncompleteJurisdiction ErrorCode = "INCOMPLETE_JURISDICTION"
	ErrCodeUnauthorizedRole       ErrorCode = "UNAUTHORIZED_ROLE"
	ErrCodeOutOfJurisdiction      ErrorCode = "OUT_OF_JURISDICTION"
	ErrCodeAlreadyFinalized       ErrorCode = "ALREADY_FINALIZED"
	ErrCodeVersionConflict        ErrorCode = "VERSION_CONFLICT"
	ErrCodeIllegalTransition      ErrorCode = "ILLEGAL_TRANSITION"
	ErrCodeForbiddenActor         ErrorCode = "FORBIDDEN_ACTOR"
	ErrCodeDuplicateApplication   ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeProfileIncomplete      ErrorCode = "PROFILE_INCOMPLETE"
	ErrCodeInterviewAlreadyActive ErrorCode = "INTERVIEW_ALREADY_ACTIVE"
	ErrCodeUnknownRole            ErrorCode = "UNKNOWN_ROLE"
	ErrCodeOpportunityClosed      ErrorCode = "OPPORTUNITY_CLOSED"
)

// Infrastructure failures.
const (
	ErrCodeStoreFailure   ErrorCode = "STORE_FAILURE"
	ErrCodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// StandardError is the single error shape handed back to callers of the core.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Is matches any *StandardError carrying the same code, so sentinels work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// Sentinels for errors.Is comparisons.
var (
	ErrNotFound               = &StandardError{Code: ErrCodeNotFound}
	ErrIncompleteJurisdiction = &StandardError{Code: ErrCodeIncompleteJurisdiction}
	ErrUnauthorizedRole       = &StandardError{Code: ErrCodeUnauthorizedRole}
	ErrOutOfJurisdiction      = &StandardError{Code: ErrCodeOutOfJurisdiction}
	ErrAlreadyFinalized       = &StandardError{Code: ErrCodeAlreadyFinalized}
	ErrVersionConflict        = &StandardError{Code: ErrCodeVersionConflict}
	ErrIllegalTransition      = &StandardError{Code: ErrCodeIllegalTransition}
	ErrForbiddenActor         = &StandardError{Code: ErrCodeForbiddenActor}
	ErrDuplicateApplication   = &StandardError{Code: ErrCodeDuplicateApplication}
	ErrProfileIncomplete      = &StandardError{Code: ErrCodeProfileIncomplete}
	ErrInterviewAlreadyActive = &StandardError{Code: ErrCodeInterviewAlreadyActive}
	ErrUnknownRole            = &StandardError{Code: ErrCodeUnknownRole}
	ErrOpportunityClosed      = &StandardError{Code: ErrCodeOpportunityClosed}
	ErrStoreFailure           = &StandardError{Code: ErrCodeStoreFailure}
	ErrInvalidPayload         = &StandardError{Code: ErrCodeInvalidPayload}
)

// ==========================
// 2. Constructors
// ==========================

func NewNotFoundError(kind, id string) *StandardError {
	return newError(ErrCodeNotFound, fmt.Sprintf("%s not found", kind), fmt.Sprintf("id: %s", id), false)
}

func NewIncompleteJurisdictionError(role, missing string) *StandardError {
	return newError(ErrCodeIncompleteJurisdiction, "Jurisdiction is not fully specified",
		fmt.Sprintf("role: %s, missing: %s", role, missing), false)
}

func NewUnauthorizedRoleError(actual, required string) *StandardError {
	return newError(ErrCodeUnauthorizedRole, "Role may not approve this entity",
		fmt.Sprintf("role: %s, required: %s", actual, required), false)
}

func NewOutOfJurisdictionError(approver, target string) *StandardError {
	return newError(ErrCodeOutOfJurisdiction, "Target is outside the approver's jurisdiction",
		fmt.Sprintf("approver: %s, target: %s", approver, target), false)
}

func NewAlreadyFinalizedError(id, status string) *StandardError {
	return newError(ErrCodeAlreadyFinalized, "Entity is already finalized",
		fmt.Sprintf("id: %s, status: %s", id, status), false)
}

// NewVersionConflictError is the only domain failure callers are expected to retry,
// after re-reading the record.
func NewVersionConflictError(id string, expected, actual int64) *StandardError {
	return newError(ErrCodeVersionConflict, "Record was modified concurrently",
		fmt.Sprintf("id: %s, expectedVersion: %d, currentVersion: %d", id, expected, actual), true)
}

func NewIllegalTransitionError(from, to string) *StandardError {
	return newError(ErrCodeIllegalTransition, "Status transition is not allowed",
		fmt.Sprintf("from: %s, to: %s", from, to), false)
}

func NewForbiddenActorError(actor, target string) *StandardError {
	return newError(ErrCodeForbiddenActor, "Actor may not perform this transition",
		fmt.Sprintf("actor: %s, target: %s", actor, target), false)
}

func NewDuplicateApplicationError(studentID, opportunityID string) *StandardError {
	return newError(ErrCodeDuplicateApplication, "Application already exists",
		fmt.Sprintf("studentId: %s, opportunityId: %s", studentID, opportunityID), false)
}

func NewProfileIncompleteError(studentID string) *StandardError {
	return newError(ErrCodeProfileIncomplete, "Student profile is incomplete",
		fmt.Sprintf("studentId: %s", studentID), false)
}

func NewInterviewAlreadyActiveError(applicationID string) *StandardError {
	return newError(ErrCodeInterviewAlreadyActive, "An interview is already active for this application",
		fmt.Sprintf("applicationId: %s", applicationID), false)
}

func NewUnknownRoleError(role string) *StandardError {
	return newError(ErrCodeUnknownRole, "Role is not defined", fmt.Sprintf("role: %s", role), false)
}

func NewOpportunityClosedError(opportunityID string) *StandardError {
	return newError(ErrCodeOpportunityClosed, "Opportunity is not accepting applications",
		fmt.Sprintf("opportunityId: %s", opportunityID), false)
}

func NewStoreFailureError(op string, err error) *StandardError {
	e := newError(ErrCodeStoreFailure, "Store operation failed", fmt.Sprintf("op: %s, error: %v", op, err), true)
	e.cause = err
	return e
}

func NewInvalidPayloadError(details string) *StandardError {
	return newError(ErrCodeInvalidPayload, "Payload failed validation", details, false)
}

// ==========================
// 3. Utility Functions
// ==========================

// CodeOf returns the code of the first StandardError in err's chain, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ErrCodeInternal
}

func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether the caller should re-read and try again.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return false
}

// GetErrorCategory groups codes for metrics labels and UI messaging.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeVersionConflict:
		return "CONCURRENCY"
	case ErrCodeUnauthorizedRole, ErrCodeOutOfJurisdiction, ErrCodeForbiddenActor:
		return "AUTHORIZATION"
	case ErrCodeAlreadyFinalized, ErrCodeIllegalTransition, ErrCodeInterviewAlreadyActive,
		ErrCodeDuplicateApplication, ErrCodeOpportunityClosed:
		return "STATE"
	case ErrCodeNotFound:
		return "LOOKUP"
	case ErrCodeStoreFailure, ErrCodeInternal:
		return "INFRASTRUCTURE"
	}
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "INCOMPLETE"), strings.Contains(codeStr, "INVALID"),
		strings.Contains(codeStr, "UNKNOWN"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
