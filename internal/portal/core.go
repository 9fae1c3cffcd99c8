// Package portal is the single entry point the UI and API layers call. It
// wires the approval workflow, the application lifecycle and the score engine
// over one store and one notification sink.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"placement-core/internal/approval"
	apperrors "placement-core/internal/common/errors"
	"placement-core/internal/common/logger"
	"placement-core/internal/common/observability"
	"placement-core/internal/lifecycle"
	"placement-core/internal/models"
	"placement-core/internal/notify"
	"placement-core/internal/registration"
	"placement-core/internal/roles"
	"placement-core/internal/score"
	"placement-core/internal/store"
)

// Deps are the collaborators a Core is built from. Only Store is required.
type Deps struct {
	Store         store.Store
	ScoreCache    score.Cache
	Sink          notify.Sink
	Observability *observability.Observability
	Logger        logger.Logger
}

// Core is the placement core facade.
type Core struct {
	store     store.Store
	approvals *approval.Workflow
	lifecycle *lifecycle.Service
	scores    *score.Service
	forms     *registration.Decoder
	obs       *observability.Observability
	logger    logger.Logger
}

// New creates a Core from deps.
func New(deps Deps) (*Core, error) {
	if deps.Store == nil {
		return nil, errors.New("portal: store is required")
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	obs := deps.Observability
	if obs == nil {
		obs = observability.NewNoop()
	}
	forms, err := registration.NewDecoder()
	if err != nil {
		return nil, fmt.Errorf("portal: %w", err)
	}

	dispatcher := notify.NewDispatcher(deps.Sink, log)
	return &Core{
		store:     deps.Store,
		approvals: approval.NewWorkflow(deps.Store, dispatcher, obs, log),
		lifecycle: lifecycle.NewService(deps.Store, dispatcher, obs, log),
		scores:    score.NewService(deps.Store, deps.ScoreCache, log),
		forms:     forms,
		obs:       obs,
		logger:    logger.ForComponent(log, "portal"),
	}, nil
}

// Register decodes a role registration form and submits it for approval.
func (c *Core) Register(ctx context.Context, caller models.Caller, form []byte) (string, error) {
	e, err := c.forms.Decode(form)
	if err != nil {
		c.logger.Warn("registration rejected", map[string]interface{}{
			"callerId":  caller.ID,
			"errorCode": string(apperrors.CodeOf(err)),
			"error":     err,
		})
		return "", err
	}
	return c.approvals.Submit(ctx, caller, e)
}

func (c *Core) Submit(ctx context.Context, caller models.Caller, e *models.ApprovableEntity) (string, error) {
	return c.approvals.Submit(ctx, caller, e)
}

func (c *Core) Approve(ctx context.Context, caller models.Caller, entityID string, expectedVersion int64) (*models.ApprovableEntity, error) {
	return c.approvals.Approve(ctx, caller, entityID, expectedVersion)
}

func (c *Core) Reject(ctx context.Context, caller models.Caller, entityID, reason string, expectedVersion int64) (*models.ApprovableEntity, error) {
	return c.approvals.Reject(ctx, caller, entityID, reason, expectedVersion)
}

func (c *Core) ListPending(ctx context.Context, caller models.Caller) ([]*models.ApprovableEntity, error) {
	return c.approvals.ListPending(ctx, caller)
}

func (c *Core) GetEntity(ctx context.Context, entityID string) (*models.ApprovableEntity, error) {
	return c.approvals.Get(ctx, entityID)
}

// IdentityOf reads back the role assignment an entity grants. ok is false
// for colleges, departments and entities that are not approved yet.
func (c *Core) IdentityOf(ctx context.Context, entityID string) (models.Identity, bool, error) {
	e, err := c.approvals.Get(ctx, entityID)
	if err != nil {
		return models.Identity{}, false, err
	}
	if e.Status != models.ApprovalApproved {
		return models.Identity{}, false, nil
	}
	a, ok := e.Assignment()
	if !ok {
		return models.Identity{}, false, nil
	}
	return models.Identity{UserID: e.SubjectID, Assignment: a}, true, nil
}

func (c *Core) Apply(ctx context.Context, caller models.Caller, opportunityID string) (*models.Application, error) {
	return c.lifecycle.Apply(ctx, caller, opportunityID)
}

func (c *Core) Transition(ctx context.Context, caller models.Caller, applicationID string, target models.ApplicationStatus, expectedVersion int64, feedback string) (*models.Application, error) {
	return c.lifecycle.Transition(ctx, caller, applicationID, target, expectedVersion, feedback)
}

func (c *Core) ScheduleInterview(ctx context.Context, caller models.Caller, applicationID string, scheduledAt time.Time, expectedVersion int64) (*models.Interview, error) {
	return c.lifecycle.ScheduleInterview(ctx, caller, applicationID, scheduledAt, expectedVersion)
}

func (c *Core) CancelInterview(ctx context.Context, caller models.Caller, applicationID string, expectedVersion int64) (*models.Application, error) {
	return c.lifecycle.CancelInterview(ctx, caller, applicationID, expectedVersion)
}

func (c *Core) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	return c.lifecycle.Get(ctx, applicationID)
}

func (c *Core) ListApplications(ctx context.Context, q models.ApplicationQuery) ([]*models.Application, error) {
	return c.lifecycle.List(ctx, q)
}

// Score is the pure score of a snapshot; nothing is stored.
func (c *Core) Score(snapshot models.StudentProfileSnapshot) score.Result {
	return score.Compute(snapshot)
}

// SaveProfile stores a student's own profile snapshot and recomputes the score
// from it.
func (c *Core) SaveProfile(ctx context.Context, caller models.Caller, snapshot models.StudentProfileSnapshot) (r *score.Result, err error) {
	ctx, done := c.obs.Track(ctx, "portal.save_profile", attribute.String("student.id", caller.ID))
	defer func() { done(err) }()

	if caller.Role != roles.Student || caller.ID == "" {
		return nil, apperrors.NewForbiddenActorError(caller.ID, "save profile")
	}
	snapshot.StudentID = caller.ID
	snapshot.Skills = trimSkills(snapshot.Skills)

	if err := c.store.SaveProfile(ctx, snapshot); err != nil {
		c.logger.Error("failed to save profile", map[string]interface{}{
			"studentId": caller.ID,
			"error":     err,
		})
		return nil, apperrors.NewStoreFailureError("save profile", err)
	}
	return c.scores.Recompute(ctx, caller.ID)
}

func (c *Core) RecomputeScore(ctx context.Context, studentID string) (*score.Result, error) {
	return c.scores.Recompute(ctx, studentID)
}

func (c *Core) CurrentScore(ctx context.Context, studentID string) (*score.Result, error) {
	return c.scores.Current(ctx, studentID)
}

// Ready reports whether the store answers.
func (c *Core) Ready(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func trimSkills(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
