// Package lifecycle moves applications through their status graph and keeps
// interviews in step with it.
package lifecycle

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

// Store is what the lifecycle needs from persistence.
type Store interface {
	store.ApplicationStore
	store.ProfileReader
	store.OpportunityReader
}

// Service drives applications and interviews through the status graph.
type Service struct {
	store  Store
	notify *notify.Dispatcher
	obs    *observability.Observability
	logger logger.Logger
	now    func() time.Time
}

// NewService creates a lifecycle Service.
func NewService(st Store, d *notify.Dispatcher, obs *observability.Observability, log logger.Logger) *Service {
	if obs == nil {
		obs = observability.NewNoop()
	}
	if d == nil {
		d = notify.NewDispatcher(nil, log)
	}
	return &Service{
		store:  st,
		notify: d,
		obs:    obs,
		logger: logger.ForComponent(log, "lifecycle"),
		now:    time.Now,
	}
}

// Apply creates an application in applied for the calling student.
func (s *Service) Apply(ctx context.Context, caller models.Caller, opportunityID string) (app *models.Application, err error) {
	ctx, done := s.obs.Track(ctx, "lifecycle.apply", attribute.String("opportunity.id", opportunityID))
	defer func() { done(err) }()

	if caller.Role != roles.Student || caller.ID == "" {
		return nil, s.reject("apply", "", apperrors.NewForbiddenActorError(string(caller.Role), "apply"))
	}
	studentID := caller.ID

	opp, err := s.store.GetOpportunity(ctx, opportunityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.reject("apply", "", apperrors.NewNotFoundError("opportunity", opportunityID))
	}
	if err != nil {
		return nil, s.reject("apply", "", apperrors.NewStoreFailureError("get opportunity", err))
	}
	if !opp.Open {
		return nil, s.reject("apply", "", apperrors.NewOpportunityClosedError(opportunityID))
	}

	existing, err := s.store.QueryApplications(ctx, models.ApplicationQuery{StudentID: studentID})
	if err != nil {
		return nil, s.reject("apply", "", apperrors.NewStoreFailureError("query applications", err))
	}
	for _, a := range existing {
		if a.OpportunityID == opportunityID && a.Status.Live() {
			return nil, s.reject("apply", a.ID, apperrors.NewDuplicateApplicationError(studentID, opportunityID))
		}
	}

	profile, err := s.store.GetProfile(ctx, studentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, s.reject("apply", "", apperrors.NewStoreFailureError("get profile", err))
	}
	if profile == nil || !profile.ProfileCompleted {
		return nil, s.reject("apply", "", apperrors.NewProfileIncompleteError(studentID))
	}

	now := s.now().UTC()
	app = &models.Application{
		ID:            uuid.New().String(),
		StudentID:     studentID,
		OpportunityID: opportunityID,
		RecruiterID:   opp.RecruiterID,
		Status:        models.StatusApplied,
		AppliedAt:     now,
		Version:       1,
		UpdatedAt:     now,
	}
	err = s.store.CreateApplication(ctx, app)
	if errors.Is(err, store.ErrDuplicateApplication) {
		return nil, s.reject("apply", "", apperrors.NewDuplicateApplicationError(studentID, opportunityID))
	}
	if err != nil {
		return nil, s.reject("apply", "", apperrors.NewStoreFailureError("create application", err))
	}

	s.logger.Info("application created", map[string]interface{}{
		"applicationId": app.ID,
		"studentId":     studentID,
		"opportunityId": opportunityID,
	})
	s.notify.Emit(ctx, studentID, models.NotifyApplicationSubmitted, map[string]interface{}{
		"applicationId": app.ID,
		"opportunityId": opportunityID,
		"status":        string(app.Status),
	})
	return app, nil
}

// Transition moves an application along one edge of the status graph.
// Interview scheduling goes through ScheduleInterview.
func (s *Service) Transition(ctx context.Context, caller models.Caller, applicationID string, target models.ApplicationStatus, expectedVersion int64, feedback string) (app *models.Application, err error) {
	ctx, done := s.obs.Track(ctx, "lifecycle.transition",
		attribute.String("application.id", applicationID),
		attribute.String("application.target", string(target)))
	defer func() { done(err) }()

	cur, err := s.load(ctx, "transition", applicationID)
	if err != nil {
		return nil, err
	}
	if err := checkActor(caller, cur, target); err != nil {
		return nil, s.reject("transition", applicationID, err)
	}
	if !IsEdge(cur.Status, target) {
		return nil, s.reject("transition", applicationID,
			apperrors.NewIllegalTransitionError(string(cur.Status), string(target)).
				WithMetadata("allowed", Next(cur.Status)))
	}
	if target == models.StatusInterviewScheduled {
		return nil, s.reject("transition", applicationID,
			apperrors.NewIllegalTransitionError(string(cur.Status), string(target)).
				WithMetadata("hint", "interviews are scheduled with ScheduleInterview"))
	}
	if cur.Version != expectedVersion {
		return nil, s.reject("transition", applicationID, apperrors.NewVersionConflictError(applicationID, expectedVersion, cur.Version))
	}

	now := s.now().UTC()
	next := *cur
	next.Status = target
	next.UpdatedAt = now
	if fb := strings.TrimSpace(feedback); fb != "" {
		next.Feedback = fb
	}

	iv, err := s.interviewSideEffect(ctx, cur, target, now)
	if err != nil {
		return nil, s.reject("transition", applicationID, err)
	}

	if err := s.swap(ctx, "transition", expectedVersion, &next, iv); err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(cur.Status), string(target)).Inc()
	s.logger.Info("application status changed", map[string]interface{}{
		"applicationId": applicationID,
		"from":          string(cur.Status),
		"to":            string(target),
		"actorId":       caller.ID,
		"version":       next.Version,
	})

	payload := map[string]interface{}{
		"applicationId": applicationID,
		"opportunityId": next.OpportunityID,
		"from":          string(cur.Status),
		"to":            string(target),
	}
	if next.Feedback != "" {
		payload["feedback"] = next.Feedback
	}
	s.notify.Emit(ctx, next.StudentID, models.NotifyApplicationStatus, payload)
	return &next, nil
}

// interviewSideEffect returns the interview to write alongside a transition:
// interviewed completes the scheduled interview, leaving for a terminal status
// cancels it.
func (s *Service) interviewSideEffect(ctx context.Context, cur *models.Application, target models.ApplicationStatus, now time.Time) (*models.Interview, error) {
	if target != models.StatusInterviewed && !target.Terminal() {
		return nil, nil
	}
	active, err := s.store.GetActiveInterview(ctx, cur.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStoreFailureError("get active interview", err)
	}
	if active.Status != models.InterviewScheduled {
		return nil, nil
	}
	iv := *active
	iv.UpdatedAt = now
	if target == models.StatusInterviewed {
		iv.Status = models.InterviewCompleted
	} else {
		iv.Status = models.InterviewCancelled
	}
	return &iv, nil
}

// ScheduleInterview creates an interview for an application under review and moves
// it to interview_scheduled in the same write.
func (s *Service) ScheduleInterview(ctx context.Context, caller models.Caller, applicationID string, scheduledAt time.Time, expectedVersion int64) (iv *models.Interview, err error) {
	ctx, done := s.obs.Track(ctx, "lifecycle.schedule_interview", attribute.String("application.id", applicationID))
	defer func() { done(err) }()

	cur, err := s.load(ctx, "schedule_interview", applicationID)
	if err != nil {
		return nil, err
	}
	if scheduledAt.IsZero() {
		return nil, s.reject("schedule_interview", applicationID, apperrors.NewInvalidPayloadError("scheduledAt is required"))
	}
	if err := checkActor(caller, cur, models.StatusInterviewScheduled); err != nil {
		return nil, s.reject("schedule_interview", applicationID, err)
	}

	_, err = s.store.GetActiveInterview(ctx, applicationID)
	switch {
	case err == nil:
		return nil, s.reject("schedule_interview", applicationID, apperrors.NewInterviewAlreadyActiveError(applicationID))
	case !errors.Is(err, store.ErrNotFound):
		return nil, s.reject("schedule_interview", applicationID, apperrors.NewStoreFailureError("get active interview", err))
	}

	if cur.Status != models.StatusUnderReview {
		return nil, s.reject("schedule_interview", applicationID,
			apperrors.NewIllegalTransitionError(string(cur.Status), string(models.StatusInterviewScheduled)))
	}
	if cur.Version != expectedVersion {
		return nil, s.reject("schedule_interview", applicationID, apperrors.NewVersionConflictError(applicationID, expectedVersion, cur.Version))
	}

	now := s.now().UTC()
	iv = &models.Interview{
		ID:            uuid.New().String(),
		ApplicationID: applicationID,
		ScheduledAt:   scheduledAt.UTC(),
		Status:        models.InterviewScheduled,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	next := *cur
	next.Status = models.StatusInterviewScheduled
	next.InterviewID = iv.ID
	next.UpdatedAt = now

	if err := s.swap(ctx, "schedule_interview", expectedVersion, &next, iv); err != nil {
		return nil, err
	}

	metrics.ApplicationTransitions.WithLabelValues(string(cur.Status), string(next.Status)).Inc()
	s.logger.Info("interview scheduled", map[string]interface{}{
		"applicationId": applicationID,
		"interviewId":   iv.ID,
		"scheduledAt":   iv.ScheduledAt.Format(time.RFC3339),
		"version":       next.Version,
	})
	s.notify.Emit(ctx, next.StudentID, models.NotifyInterviewScheduled, map[string]interface{}{
		"applicationId": applicationID,
		"opportunityId": next.OpportunityID,
		"interviewId":   iv.ID,
		"scheduledAt":   iv.ScheduledAt.Format(time.RFC3339),
	})
	return iv, nil
}

// CancelInterview cancels the scheduled interview of an application. The
// application keeps its status; only its version moves.
func (s *Service) CancelInterview(ctx context.Context, caller models.Caller, applicationID string, expectedVersion int64) (app *models.Application, err error) {
	ctx, done := s.obs.Track(ctx, "lifecycle.cancel_interview", attribute.String("application.id", applicationID))
	defer func() { done(err) }()

	cur, err := s.load(ctx, "cancel_interview", applicationID)
	if err != nil {
		return nil, err
	}
	if caller.Role != roles.Recruiter || caller.ID != cur.RecruiterID {
		return nil, s.reject("cancel_interview", applicationID, apperrors.NewForbiddenActorError(caller.ID, "cancel interview"))
	}

	active, err := s.store.GetActiveInterview(ctx, applicationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.reject("cancel_interview", applicationID, apperrors.NewNotFoundError("active interview", applicationID))
	}
	if err != nil {
		return nil, s.reject("cancel_interview", applicationID, apperrors.NewStoreFailureError("get active interview", err))
	}
	if active.Status != models.InterviewScheduled {
		return nil, s.reject("cancel_interview", applicationID,
			apperrors.NewIllegalTransitionError("interview "+string(active.Status), "interview "+string(models.InterviewCancelled)))
	}
	if cur.Version != expectedVersion {
		return nil, s.reject("cancel_interview", applicationID, apperrors.NewVersionConflictError(applicationID, expectedVersion, cur.Version))
	}

	now := s.now().UTC()
	iv := *active
	iv.Status = models.InterviewCancelled
	iv.UpdatedAt = now
	next := *cur
	next.InterviewID = ""
	next.UpdatedAt = now

	if err := s.swap(ctx, "cancel_interview", expectedVersion, &next, &iv); err != nil {
		return nil, err
	}

	s.logger.Info("interview cancelled", map[string]interface{}{
		"applicationId": applicationID,
		"interviewId":   iv.ID,
		"version":       next.Version,
	})
	s.notify.Emit(ctx, next.StudentID, models.NotifyInterviewCancelled, map[string]interface{}{
		"applicationId": applicationID,
		"opportunityId": next.OpportunityID,
		"interviewId":   iv.ID,
	})
	return &next, nil
}

func (s *Service) Get(ctx context.Context, applicationID string) (*models.Application, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("application", applicationID)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailureError("get application", err)
	}
	return app, nil
}

func (s *Service) ListByStudent(ctx context.Context, studentID string) ([]*models.Application, error) {
	return s.List(ctx, models.ApplicationQuery{StudentID: studentID})
}

func (s *Service) ListByOpportunity(ctx context.Context, opportunityID string) ([]*models.Application, error) {
	return s.List(ctx, models.ApplicationQuery{OpportunityID: opportunityID})
}

// List runs q, which must name exactly one of student or opportunity.
func (s *Service) List(ctx context.Context, q models.ApplicationQuery) ([]*models.Application, error) {
	if !q.Valid() {
		return nil, apperrors.NewInvalidPayloadError("exactly one of studentId or opportunityId is required")
	}
	apps, err := s.store.QueryApplications(ctx, q)
	if err != nil {
		return nil, apperrors.NewStoreFailureError("query applications", err)
	}
	return apps, nil
}

func (s *Service) load(ctx context.Context, op, applicationID string) (*models.Application, error) {
	app, err := s.store.GetApplication(ctx, applicationID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, s.reject(op, applicationID, apperrors.NewNotFoundError("application", applicationID))
	}
	if err != nil {
		return nil, s.reject(op, applicationID, apperrors.NewStoreFailureError("get application", err))
	}
	return app, nil
}

// swap writes next (and iv) if the stored version is still expectedVersion.
func (s *Service) swap(ctx context.Context, op string, expectedVersion int64, next *models.Application, iv *models.Interview) error {
	swapped, err := s.store.CompareAndSwapApplication(ctx, expectedVersion, next, iv)
	if errors.Is(err, store.ErrInterviewActive) {
		return s.reject(op, next.ID, apperrors.NewInterviewAlreadyActiveError(next.ID))
	}
	if errors.Is(err, store.ErrNotFound) {
		return s.reject(op, next.ID, apperrors.NewNotFoundError("application", next.ID))
	}
	if err != nil {
		return s.reject(op, next.ID, apperrors.NewStoreFailureError("update application", err))
	}
	if !swapped {
		actual := expectedVersion + 1
		if latest, err := s.store.GetApplication(ctx, next.ID); err == nil {
			actual = latest.Version
		}
		return s.reject(op, next.ID, apperrors.NewVersionConflictError(next.ID, expectedVersion, actual))
	}
	return nil
}

// checkActor enforces who may drive an application into target. Targets nobody
// may drive fall through to the edge check.
func checkActor(caller models.Caller, app *models.Application, target models.ApplicationStatus) error {
	switch driverOf(target) {
	case actorStudent:
		if caller.Role != roles.Student || caller.ID != app.StudentID {
			return apperrors.NewForbiddenActorError(caller.ID, string(target)).
				WithMetadata("requiredActor", actorStudent.String())
		}
	case actorRecruiter:
		if caller.Role != roles.Recruiter || caller.ID != app.RecruiterID {
			return apperrors.NewForbiddenActorError(caller.ID, string(target)).
				WithMetadata("requiredActor", actorRecruiter.String())
		}
	}
	return nil
}

func (s *Service) reject(op, applicationID string, err error) error {
	fields := map[string]interface{}{
		"operation": op,
		"errorCode": string(apperrors.CodeOf(err)),
		"error":     err,
	}
	if applicationID != "" {
		fields["applicationId"] = applicationID
	}
	if apperrors.HasCode(err, apperrors.ErrCodeStoreFailure) {
		s.logger.Error("lifecycle operation failed", fields)
	} else {
		s.logger.Warn("lifecycle operation rejected", fields)
	}
	return err
}
