// Package store is the persistence contract of the placement core: plain
// reads plus compare-and-swap writes keyed on a per-record version.
package store

import (
	"context"
	"errors"

	"placement-core/internal/models"
	"placement-core/internal/roles"
)

var (
	ErrNotFound             = errors.New("store: record not found")
	ErrDuplicateApplication = errors.New("store: live application already exists")
	ErrInterviewActive      = errors.New("store: application already has an active interview")
	ErrAlreadyExists        = errors.New("store: record id already exists")
)

// EntityStore persists approvable entities.
type EntityStore interface {
	// CreateEntity inserts e as given. e.Version must already be set.
	CreateEntity(ctx context.Context, e *models.ApprovableEntity) error
	GetEntity(ctx context.Context, id string) (*models.ApprovableEntity, error)
	// CompareAndSwapEntity replaces the stored entity with next when its version equals
	// expectedVersion. On success next.Version is expectedVersion+1.
	CompareAndSwapEntity(ctx context.Context, expectedVersion int64, next *models.ApprovableEntity) (bool, error)
	// QueryByJurisdiction returns entities targeting role whose jurisdiction lies within j.
	QueryByJurisdiction(ctx context.Context, role roles.Role, j roles.Jurisdiction) ([]*models.ApprovableEntity, error)
}

// ApplicationStore persists applications and their interviews.
type ApplicationStore interface {
	// CreateApplication fails with ErrDuplicateApplication when a live application
	// for the same student and opportunity exists. The check and insert are atomic.
	CreateApplication(ctx context.Context, a *models.Application) error
	GetApplication(ctx context.Context, id string) (*models.Application, error)
	// CompareAndSwapApplication replaces the application when its version equals
	// expectedVersion and, in the same unit, upserts iv when it is non-nil.
	// Upserting a second active interview fails with ErrInterviewActive and
	// leaves the application untouched.
	CompareAndSwapApplication(ctx context.Context, expectedVersion int64, next *models.Application, iv *models.Interview) (bool, error)
	QueryApplications(ctx context.Context, q models.ApplicationQuery) ([]*models.Application, error)
	// GetActiveInterview returns ErrNotFound when the application has no active interview.
	GetActiveInterview(ctx context.Context, applicationID string) (*models.Interview, error)
}

// ProfileReader reads the score inputs of a student.
type ProfileReader interface {
	GetProfile(ctx context.Context, studentID string) (*models.StudentProfileSnapshot, error)
}

// ProfileWriter saves a student's score inputs.
type ProfileWriter interface {
	SaveProfile(ctx context.Context, p models.StudentProfileSnapshot) error
}

// OpportunityReader resolves opportunities students apply to.
type OpportunityReader interface {
	GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error)
}

// Store is everything the core needs from persistence.
type Store interface {
	EntityStore
	ApplicationStore
	ProfileReader
	ProfileWriter
	OpportunityReader
	Ping(ctx context.Context) error
	Close() error
}
