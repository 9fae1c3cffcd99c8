// Package approval runs the pending -> approved | rejected state machine shared
// by role grants, colleges, departments and recruiter accounts.
package approval

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	apperrors "placement-core/internal/common/errors"
	"placement-core/internal/common/logger"
	"placement-core/internal/common/metrics"
	"placement-core/internal/common/observability"
	"placement-core/internal/models"
	"placement-core/internal/notify"
	"placement-core/internal/roles"
	"placement-core/internal/store"
)

// Workflow runs the approval state machine for approvable entities.
type Workflow struct {
	store  store.EntityStore
	notify *notify.Dispatcher
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
}

// NewWorkflow creates a Workflow over the given entity store.
func NewWorkflow(st store.EntityStore, d *notify.Dispatcher, obs *observability.Observability, log logger.Logger) *Workflow {
	if obs == nil {
		obs = observability.NewNoop()
	}
	if d == nil {
		d = notify.NewDispatcher(nil, log)
	}
	return &Workflow{
		store:  st,
		notify: d,
		obs:    obs,
		logger: logger.ForComponent(log, "approval"),
		now:    time.Now,
	}
}

// Submit stores e as a new pending entity on behalf of caller and returns its id.
// The subject defaults to the caller.
func (w *Workflow) Submit(ctx context.Context, caller models.Caller, e *models.ApprovableEntity) (id string, err error) {
	if e == nil {
		return "", w.reject("submit", "", apperrors.NewInvalidPayloadError("entity is required"))
	}
	ctx, done := w.obs.Track(ctx, "approval.submit", attribute.String("entity.kind", string(e.Kind)))
	defer func() { done(err) }()

	if err := e.CheckVariant(); err != nil {
		return "", w.reject("submit", "", apperrors.NewInvalidPayloadError(err.Error()))
	}
	approvers, err := e.Approvers()
	if err != nil {
		return "", w.reject("submit", "", err)
	}
	if len(approvers) == 0 {
		return "", w.reject("submit", "", apperrors.NewInvalidPayloadError(
			"role "+string(e.TargetRole())+" has no approver and cannot be submitted"))
	}
	if err := checkScope(e); err != nil {
		return "", w.reject("submit", "", err)
	}

	now := w.now().UTC()
	entity := e.Clone()
	entity.Jurisdiction = entity.Jurisdiction.Trimmed()
	entity.ID = uuid.New().String()
	entity.Status = models.ApprovalPending
	entity.Version = 1
	entity.SubmittedBy = caller.ID
	if entity.SubjectID == "" {
		entity.SubjectID = caller.ID
	}
	entity.ApproverID = ""
	entity.Reason = ""
	entity.DecidedAt = nil
	entity.CreatedAt = now
	entity.UpdatedAt = now

	if err := w.store.CreateEntity(ctx, entity); err != nil {
		return "", w.reject("submit", entity.ID, apperrors.NewStoreFailureError("create entity", err))
	}

	metrics.ApprovalSubmissions.WithLabelValues(string(entity.Kind)).Inc()
	w.logger.Info("entity submitted for approval", map[string]interface{}{
		"entityId":     entity.ID,
		"kind":         string(entity.Kind),
		"targetRole":   string(entity.TargetRole()),
		"jurisdiction": entity.Jurisdiction.String(),
		"submittedBy":  caller.ID,
	})
	return entity.ID, nil
}

// checkScope requires the entity's jurisdiction to name every segment its role needs.
// Invited recruiters are scoped to the inviting college.
func checkScope(e *models.ApprovableEntity) error {
	if !e.Invited() {
		return roles.ValidateJurisdiction(e.TargetRole(), e.Jurisdiction)
	}
	level, err := e.RequiredLevel()
	if err != nil {
		return err
	}
	if !e.Jurisdiction.WellFormed() || e.Jurisdiction.Level() < level {
		return apperrors.NewIncompleteJurisdictionError(string(roles.Recruiter), "state,district,college")
	}
	if !strings.EqualFold(strings.TrimSpace(e.Jurisdiction.College), strings.TrimSpace(e.Recruiter.InvitedByCollege)) {
		return apperrors.NewIncompleteJurisdictionError(string(roles.Recruiter),
			"college must match inviting college "+e.Recruiter.InvitedByCollege)
	}
	return nil
}

// Approve finalizes a pending entity as approved.
func (w *Workflow) Approve(ctx context.Context, caller models.Caller, entityID string, expectedVersion int64) (e *models.ApprovableEntity, err error) {
	ctx, done := w.obs.Track(ctx, "approval.approve", attribute.String("entity.id", entityID))
	defer func() { done(err) }()
	return w.decide(ctx, caller, entityID, expectedVersion, models.ApprovalApproved, "")
}

// Reject finalizes a pending entity as rejected and keeps reason for audit.
func (w *Workflow) Reject(ctx context.Context, caller models.Caller, entityID, reason string, expectedVersion int64) (e *models.ApprovableEntity, err error) {
	ctx, done := w.obs.Track(ctx, "approval.reject", attribute.String("entity.id", entityID))
	defer func() { done(err) }()
	return w.decide(ctx, caller, entityID, expectedVersion, models.ApprovalRejected, strings.TrimSpace(reason))
}

func (w *Workflow) decide(ctx context.Context, caller models.Caller, entityID string, expectedVersion int64, to models.ApprovalStatus, reason string) (*models.ApprovableEntity, error) {
	op := "approve"
	if to == models.ApprovalRejected {
		op = "reject"
	}

	cur, err := w.store.GetEntity(ctx, entityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, w.reject(op, entityID, apperrors.NewNotFoundError("entity", entityID))
	}
	if err != nil {
		return nil, w.reject(op, entityID, apperrors.NewStoreFailureError("get entity", err))
	}

	if cur.Status.Terminal() {
		return nil, w.reject(op, entityID, apperrors.NewAlreadyFinalizedError(entityID, string(cur.Status)))
	}
	if cur.Version != expectedVersion {
		return nil, w.reject(op, entityID, apperrors.NewVersionConflictError(entityID, expectedVersion, cur.Version))
	}
	if err := authorize(caller, cur); err != nil {
		return nil, w.reject(op, entityID, err)
	}

	now := w.now().UTC()
	next := cur.Clone()
	next.Status = to
	next.ApproverID = caller.ID
	next.Reason = reason
	next.DecidedAt = &now
	next.UpdatedAt = now

	swapped, err := w.store.CompareAndSwapEntity(ctx, expectedVersion, next)
	if err != nil {
		return nil, w.reject(op, entityID, apperrors.NewStoreFailureError("update entity", err))
	}
	if !swapped {
		actual := expectedVersion + 1
		if latest, err := w.store.GetEntity(ctx, entityID); err == nil {
			actual = latest.Version
		}
		return nil, w.reject(op, entityID, apperrors.NewVersionConflictError(entityID, expectedVersion, actual))
	}

	metrics.ApprovalDecisions.WithLabelValues(string(next.Kind), string(to)).Inc()
	w.logger.Info("approval decision recorded", map[string]interface{}{
		"entityId":   next.ID,
		"kind":       string(next.Kind),
		"decision":   string(to),
		"approverId": caller.ID,
		"version":    next.Version,
	})

	kind := models.NotifyApprovalApproved
	if to == models.ApprovalRejected {
		kind = models.NotifyApprovalRejected
	}
	payload := map[string]interface{}{
		"entityId":   next.ID,
		"entityKind": string(next.Kind),
		"targetRole": string(next.TargetRole()),
	}
	if reason != "" {
		payload["reason"] = reason
	}
	w.notify.Emit(ctx, next.SubjectID, kind, payload)

	return next, nil
}

// authorize checks the caller's role against the entity's approvers and then the
// caller's jurisdiction against the entity's.
func authorize(caller models.Caller, e *models.ApprovableEntity) error {
	approvers, err := e.Approvers()
	if err != nil {
		return err
	}
	allowed := false
	names := make([]string, 0, len(approvers))
	for _, r := range approvers {
		names = append(names, string(r))
		if r == caller.Role {
			allowed = true
		}
	}
	if !allowed {
		return apperrors.NewUnauthorizedRoleError(string(caller.Role), strings.Join(names, "|"))
	}

	if err := roles.ValidateJurisdiction(caller.Role, caller.Jurisdiction); err != nil {
		return err
	}
	if !roles.JurisdictionContains(caller.Jurisdiction, e.Jurisdiction) {
		return apperrors.NewOutOfJurisdictionError(caller.Jurisdiction.String(), e.Jurisdiction.String())
	}
	return nil
}

// ListPending returns the pending entities caller may decide on.
func (w *Workflow) ListPending(ctx context.Context, caller models.Caller) (out []*models.ApprovableEntity, err error) {
	ctx, done := w.obs.Track(ctx, "approval.list_pending")
	defer func() { done(err) }()

	if !caller.Role.Valid() {
		return nil, apperrors.NewUnknownRoleError(string(caller.Role))
	}
	if err := roles.ValidateJurisdiction(caller.Role, caller.Jurisdiction); err != nil {
		return nil, err
	}

	for _, target := range roles.Approvees(caller.Role) {
		entities, err := w.store.QueryByJurisdiction(ctx, target, caller.Jurisdiction)
		if err != nil {
			return nil, apperrors.NewStoreFailureError("query entities", err)
		}
		for _, e := range entities {
			if e.Status != models.ApprovalPending {
				continue
			}
			if authorize(caller, e) != nil {
				continue
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func (w *Workflow) Get(ctx context.Context, entityID string) (*models.ApprovableEntity, error) {
	e, err := w.store.GetEntity(ctx, entityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("entity", entityID)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailureError("get entity", err)
	}
	return e, nil
}

// reject logs a refused operation and hands err back.
func (w *Workflow) reject(op, entityID string, err error) error {
	fields := map[string]interface{}{
		"operation": op,
		"errorCode": string(apperrors.CodeOf(err)),
		"error":     err,
	}
	if entityID != "" {
		fields["entityId"] = entityID
	}
	if apperrors.HasCode(err, apperrors.ErrCodeStoreFailure) {
		w.logger.Error("approval operation failed", fields)
	} else {
		w.logger.Warn("approval operation rejected", fields)
	}
	return err
}
