package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "placement-core/internal/common/errors"
	"placement-core/internal/common/logger"
	"placement-core/internal/models"
	"placement-core/internal/notify"
	"placement-core/internal/roles"
	"placement-core/internal/store"
)

var (
	student    = models.Caller{ID: "stu-1", Role: roles.Student}
	unfinished = models.Caller{ID: "stu-2", Role: roles.Student}
	recruiter  = models.Caller{ID: "rec-1", Role: roles.Recruiter}
	otherRec   = models.Caller{ID: "rec-2", Role: roles.Recruiter}

	fixedNow    = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	interviewAt = time.Date(2024, 6, 10, 14, 30, 0, 0, time.UTC)
)

type fixture struct {
	svc   *Service
	store *store.MemoryStore
	sink  *notify.MemorySink
}

func seed(mem *store.MemoryStore) {
	mem.PutOpportunity(models.Opportunity{ID: "opp-1", RecruiterID: "rec-1", Title: "Backend Intern", Open: true})
	mem.PutOpportunity(models.Opportunity{ID: "opp-closed", RecruiterID: "rec-1", Title: "Filled", Open: false})
	mem.PutProfile(models.StudentProfileSnapshot{StudentID: "stu-1", ProfileCompleted: true, Skills: []string{"go"}})
	mem.PutProfile(models.StudentProfileSnapshot{StudentID: "stu-2", ProfileCompleted: false})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	seed(mem)
	sink := notify.NewMemorySink()
	log := logger.NewTestLogger(t)
	svc := NewService(mem, notify.NewDispatcher(sink, log), nil, log)
	svc.now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, store: mem, sink: sink}
}

func (f *fixture) apply(t *testing.T) *models.Application {
	t.Helper()
	app, err := f.svc.Apply(context.Background(), student, "opp-1")
	require.NoError(t, err)
	return app
}

func (f *fixture) move(t *testing.T, app *models.Application, by models.Caller, to models.ApplicationStatus) *models.Application {
	t.Helper()
	next, err := f.svc.Transition(context.Background(), by, app.ID, to, app.Version, "")
	require.NoError(t, err)
	return next
}

func (f *fixture) schedule(t *testing.T, app *models.Application) *models.Application {
	t.Helper()
	_, err := f.svc.ScheduleInterview(context.Background(), recruiter, app.ID, interviewAt, app.Version)
	require.NoError(t, err)
	next, err := f.svc.Get(context.Background(), app.ID)
	require.NoError(t, err)
	return next
}

// reach applies and walks the shortest path to status.
func (f *fixture) reach(t *testing.T, status models.ApplicationStatus) *models.Application {
	t.Helper()
	app := f.apply(t)
	switch status {
	case models.StatusApplied:
		return app
	case models.StatusRejected:
		return f.move(t, app, recruiter, models.StatusRejected)
	case models.StatusWithdrawn:
		return f.move(t, app, student, models.StatusWithdrawn)
	}

	app = f.move(t, app, recruiter, models.StatusUnderReview)
	if status == models.StatusUnderReview {
		return app
	}
	app = f.schedule(t, app)
	if status == models.StatusInterviewScheduled {
		return app
	}
	app = f.move(t, app, recruiter, models.StatusInterviewed)
	if status == models.StatusInterviewed {
		return app
	}
	app = f.move(t, app, recruiter, models.StatusOffered)
	if status == models.StatusOffered {
		return app
	}
	return f.move(t, app, student, models.StatusAccepted)
}

func (f *fixture) eventsOf(kind models.NotificationKind) []models.NotificationEvent {
	var out []models.NotificationEvent
	for _, ev := range f.sink.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func TestEdges_MatchStatusGraph(t *testing.T) {
	want := map[models.ApplicationStatus][]models.ApplicationStatus{
		models.StatusApplied:            {models.StatusUnderReview, models.StatusRejected, models.StatusWithdrawn},
		models.StatusUnderReview:        {models.StatusInterviewScheduled, models.StatusRejected, models.StatusWithdrawn},
		models.StatusInterviewScheduled: {models.StatusInterviewed, models.StatusRejected},
		models.StatusInterviewed:        {models.StatusOffered, models.StatusRejected},
		models.StatusOffered:            {models.StatusAccepted, models.StatusRejected},
		models.StatusAccepted:           nil,
		models.StatusRejected:           nil,
		models.StatusWithdrawn:          nil,
	}
	for _, s := range models.ApplicationStatuses() {
		assert.ElementsMatch(t, want[s], Next(s), string(s))
		for _, to := range models.ApplicationStatuses() {
			assert.False(t, IsEdge(s, to) && to == models.StatusApplied, "edge into applied from %s", s)
		}
		if s.Terminal() {
			assert.Empty(t, Next(s))
		}
	}
}

func TestApply_CreatesApplication(t *testing.T) {
	f := newFixture(t)

	app := f.apply(t)

	assert.NotEmpty(t, app.ID)
	assert.Equal(t, models.StatusApplied, app.Status)
	assert.Equal(t, int64(1), app.Version)
	assert.Equal(t, "rec-1", app.RecruiterID)
	assert.Equal(t, fixedNow, app.AppliedAt)

	events := f.eventsOf(models.NotifyApplicationSubmitted)
	require.Len(t, events, 1)
	assert.Equal(t, "stu-1", events[0].UserID)
	assert.Equal(t, app.ID, events[0].Payload["applicationId"])
}

func TestApply_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		caller models.Caller
		opp    string
		code   apperrors.ErrorCode
	}{
		{"incomplete profile", unfinished, "opp-1", apperrors.ErrCodeProfileIncomplete},
		{"no profile at all", models.Caller{ID: "stu-9", Role: roles.Student}, "opp-1", apperrors.ErrCodeProfileIncomplete},
		{"unknown opportunity", student, "opp-404", apperrors.ErrCodeNotFound},
		{"closed opportunity", student, "opp-closed", apperrors.ErrCodeOpportunityClosed},
		{"recruiter cannot apply", recruiter, "opp-1", apperrors.ErrCodeForbiddenActor},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.Apply(context.Background(), tt.caller, tt.opp)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)

			apps, err := f.store.QueryApplications(context.Background(), models.ApplicationQuery{OpportunityID: tt.opp})
			require.NoError(t, err)
			assert.Empty(t, apps)
			assert.Empty(t, f.sink.Events())
		})
	}
}

func TestApply_DuplicateWhileLive(t *testing.T) {
	f := newFixture(t)
	first := f.apply(t)

	_, err := f.svc.Apply(context.Background(), student, "opp-1")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDuplicateApplication))

	// once withdrawn the student may apply again
	f.move(t, first, student, models.StatusWithdrawn)
	second, err := f.svc.Apply(context.Background(), student, "opp-1")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	apps, err := f.svc.ListByStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestTransition_IllegalListsAllowedTargets(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t)

	_, err := f.svc.Transition(context.Background(), recruiter, app.ID, models.StatusOffered, app.Version, "")

	var se *apperrors.StandardError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, apperrors.ErrCodeIllegalTransition, se.Code)
	assert.ElementsMatch(t,
		[]models.ApplicationStatus{models.StatusUnderReview, models.StatusRejected, models.StatusWithdrawn},
		se.Metadata["allowed"])
}

func TestTransition_IllegalPairs(t *testing.T) {
	for _, from := range models.ApplicationStatuses() {
		for _, to := range models.ApplicationStatuses() {
			from, to := from, to
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				f := newFixture(t)
				app := f.reach(t, from)
				require.Equal(t, from, app.Status)

				by := recruiter
				if to == models.StatusWithdrawn || to == models.StatusAccepted {
					by = student
				}
				next, err := f.svc.Transition(context.Background(), by, app.ID, to, app.Version, "")

				if IsEdge(from, to) && to != models.StatusInterviewScheduled {
					require.NoError(t, err)
					assert.Equal(t, to, next.Status)
					assert.Equal(t, app.Version+1, next.Version)
					return
				}
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIllegalTransition), "got %v", err)

				stored, err := f.svc.Get(context.Background(), app.ID)
				require.NoError(t, err)
				assert.Equal(t, app.Version, stored.Version)
				assert.Equal(t, from, stored.Status)
			})
		}
	}
}

func TestTransition_ActorRules(t *testing.T) {
	tests := []struct {
		name string
		from models.ApplicationStatus
		by   models.Caller
		to   models.ApplicationStatus
	}{
		{"recruiter cannot withdraw an offer", models.StatusOffered, recruiter, models.StatusWithdrawn},
		{"recruiter cannot accept", models.StatusOffered, recruiter, models.StatusAccepted},
		{"student cannot review", models.StatusApplied, student, models.StatusUnderReview},
		{"student cannot reject", models.StatusUnderReview, student, models.StatusRejected},
		{"other recruiter cannot reject", models.StatusApplied, otherRec, models.StatusRejected},
		{"other student cannot withdraw", models.StatusApplied, unfinished, models.StatusWithdrawn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			app := f.reach(t, tt.from)

			_, err := f.svc.Transition(context.Background(), tt.by, app.ID, tt.to, app.Version, "")
			assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbiddenActor), "got %v", err)
		})
	}
}

func TestTransition_OfferAcceptedByStudentIsTerminal(t *testing.T) {
	f := newFixture(t)
	app := f.reach(t, models.StatusOffered)

	_, err := f.svc.Transition(context.Background(), recruiter, app.ID, models.StatusWithdrawn, app.Version, "")
	require.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbiddenActor))

	accepted := f.move(t, app, student, models.StatusAccepted)
	assert.True(t, accepted.Status.Terminal())
	assert.Empty(t, Next(accepted.Status))

	_, err = f.svc.Transition(context.Background(), recruiter, app.ID, models.StatusRejected, accepted.Version, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIllegalTransition))
}

func TestTransition_NotFoundAndVersionConflict(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Transition(context.Background(), recruiter, "missing", models.StatusUnderReview, 1, "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	app := f.apply(t)
	_, err = f.svc.Transition(context.Background(), recruiter, app.ID, models.StatusUnderReview, 7, "")
	require.True(t, apperrors.HasCode(err, apperrors.ErrCodeVersionConflict))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestTransition_FeedbackAndNotification(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t)

	next, err := f.svc.Transition(context.Background(), recruiter, app.ID, models.StatusRejected, app.Version, "  cgpa cutoff  ")
	require.NoError(t, err)
	assert.Equal(t, "cgpa cutoff", next.Feedback)

	events := f.eventsOf(models.NotifyApplicationStatus)
	require.Len(t, events, 1)
	assert.Equal(t, "stu-1", events[0].UserID)
	assert.Equal(t, "applied", events[0].Payload["from"])
	assert.Equal(t, "rejected", events[0].Payload["to"])
	assert.Equal(t, "cgpa cutoff", events[0].Payload["feedback"])
}

func TestScheduleInterview(t *testing.T) {
	f := newFixture(t)
	app := f.reach(t, models.StatusUnderReview)

	iv, err := f.svc.ScheduleInterview(context.Background(), recruiter, app.ID, interviewAt, app.Version)
	require.NoError(t, err)
	assert.Equal(t, models.InterviewScheduled, iv.Status)
	assert.Equal(t, interviewAt, iv.ScheduledAt)

	stored, err := f.svc.Get(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInterviewScheduled, stored.Status)
	assert.Equal(t, iv.ID, stored.InterviewID)
	assert.Equal(t, app.Version+1, stored.Version)

	events := f.eventsOf(models.NotifyInterviewScheduled)
	require.Len(t, events, 1)
	assert.Equal(t, iv.ID, events[0].Payload["interviewId"])

	// a second schedule fails before the status check
	_, err = f.svc.ScheduleInterview(context.Background(), recruiter, app.ID, interviewAt.Add(time.Hour), stored.Version)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInterviewAlreadyActive), "got %v", err)
	assert.Len(t, f.eventsOf(models.NotifyInterviewScheduled), 1)
}

func TestScheduleInterview_Rejections(t *testing.T) {
	f := newFixture(t)
	applied := f.apply(t)

	_, err := f.svc.ScheduleInterview(context.Background(), recruiter, applied.ID, time.Time{}, applied.Version)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidPayload))

	_, err = f.svc.ScheduleInterview(context.Background(), recruiter, "missing", interviewAt, 1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))

	_, err = f.svc.ScheduleInterview(context.Background(), recruiter, "missing", time.Time{}, 1)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound), "missing application wins over a zero time")

	_, err = f.svc.ScheduleInterview(context.Background(), otherRec, applied.ID, interviewAt, applied.Version)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbiddenActor))

	_, err = f.svc.ScheduleInterview(context.Background(), recruiter, applied.ID, interviewAt, applied.Version)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIllegalTransition))

	review := f.move(t, applied, recruiter, models.StatusUnderReview)
	_, err = f.svc.ScheduleInterview(context.Background(), recruiter, review.ID, interviewAt, applied.Version)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeVersionConflict))
}

func TestInterviewedCompletesInterview(t *testing.T) {
	f := newFixture(t)
	app := f.reach(t, models.StatusInterviewScheduled)

	f.move(t, app, recruiter, models.StatusInterviewed)

	iv, err := f.store.GetActiveInterview(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InterviewCompleted, iv.Status)
}

func TestRejectCancelsScheduledInterview(t *testing.T) {
	f := newFixture(t)
	app := f.reach(t, models.StatusInterviewScheduled)

	f.move(t, app, recruiter, models.StatusRejected)

	_, err := f.store.GetActiveInterview(context.Background(), app.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCancelInterview(t *testing.T) {
	f := newFixture(t)
	app := f.reach(t, models.StatusInterviewScheduled)

	_, err := f.svc.CancelInterview(context.Background(), student, app.ID, app.Version)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeForbiddenActor))

	next, err := f.svc.CancelInterview(context.Background(), recruiter, app.ID, app.Version)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInterviewScheduled, next.Status)
	assert.Empty(t, next.InterviewID)
	assert.Equal(t, app.Version+1, next.Version)

	_, err = f.store.GetActiveInterview(context.Background(), app.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, f.eventsOf(models.NotifyInterviewCancelled), 1)

	_, err = f.svc.CancelInterview(context.Background(), recruiter, app.ID, next.Version)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestCancelInterview_CompletedInterview(t *testing.T) {
	f := newFixture(t)
	app := f.reach(t, models.StatusInterviewed)

	_, err := f.svc.CancelInterview(context.Background(), recruiter, app.ID, app.Version)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeIllegalTransition))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	app := f.apply(t)

	byOpp, err := f.svc.ListByOpportunity(context.Background(), "opp-1")
	require.NoError(t, err)
	require.Len(t, byOpp, 1)
	assert.Equal(t, app.ID, byOpp[0].ID)

	_, err = f.svc.ListByStudent(context.Background(), "")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeInvalidPayload))

	_, err = f.svc.Get(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeNotFound))
}

func TestNotifications_OnePerTransition(t *testing.T) {
	f := newFixture(t)
	f.reach(t, models.StatusAccepted)

	// under_review, interviewed, offered, accepted
	assert.Len(t, f.eventsOf(models.NotifyApplicationStatus), 4)
	assert.Len(t, f.eventsOf(models.NotifyInterviewScheduled), 1)
	assert.Len(t, f.eventsOf(models.NotifyApplicationSubmitted), 1)
	assert.Len(t, f.sink.Events(), 6)
}

// barrierStore holds the first n application readers until all have read.
type barrierStore struct {
	Store
	parties int32
	arrived int32
	release chan struct{}
}

func (b *barrierStore) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	a, err := b.Store.GetApplication(ctx, id)
	n := atomic.AddInt32(&b.arrived, 1)
	if n == b.parties {
		close(b.release)
	}
	if n <= b.parties {
		<-b.release
	}
	return a, err
}

func TestTransition_ConcurrentExactlyOneWins(t *testing.T) {
	mem := store.NewMemoryStore()
	seed(mem)
	sink := notify.NewMemorySink()
	log := logger.NewTestLogger(t)

	setup := NewService(mem, notify.NewDispatcher(sink, log), nil, log)
	app, err := setup.Apply(context.Background(), student, "opp-1")
	require.NoError(t, err)

	svc := NewService(&barrierStore{Store: mem, parties: 2, release: make(chan struct{})}, notify.NewDispatcher(sink, log), nil, log)

	// the student withdraws while the recruiter moves the application forward
	moves := []struct {
		by models.Caller
		to models.ApplicationStatus
	}{
		{student, models.StatusWithdrawn},
		{recruiter, models.StatusUnderReview},
	}

	errs := make([]error, len(moves))
	var wg sync.WaitGroup
	for i, m := range moves {
		wg.Add(1)
		go func(i int, by models.Caller, to models.ApplicationStatus) {
			defer wg.Done()
			_, errs[i] = svc.Transition(context.Background(), by, app.ID, to, app.Version, "")
		}(i, m.by, m.to)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperrors.HasCode(err, apperrors.ErrCodeVersionConflict):
			conflicts++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, conflicts)

	stored, err := mem.GetApplication(context.Background(), app.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)

	var statusEvents int
	for _, ev := range sink.Events() {
		if ev.Kind == models.NotifyApplicationStatus {
			statusEvents++
		}
	}
	assert.Equal(t, 1, statusEvents)
}
