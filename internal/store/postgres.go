package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"placement-core/internal/common/database"
	"placement-core/internal/models"
	"placement-core/internal/roles"
)

const (
	uniqueViolation = "23505"

	constraintLiveApplication = "uq_applications_live"
	constraintActiveInterview = "uq_interviews_active"
)

const entityColumns = `id, kind, status, version, state, district, college, department,
	subject_id, submitted_by, approver_id, reason, decided_at, payload, created_at, updated_at`

const applicationColumns = `id, student_id, opportunity_id, recruiter_id, status, applied_at,
	interview_id, feedback, version, updated_at`

// PostgresStore implements Store on PostgreSQL. Compare-and-swap writes are a
// single UPDATE guarded by "id = $1 AND version = $2".
type PostgresStore struct {
	client *database.PostgresClient
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(client *database.PostgresClient) *PostgresStore {
	return &PostgresStore{client: client}
}

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.DB.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.client.Ping(ctx) }

func (s *PostgresStore) Close() error { return s.client.Close() }

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == uniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

func entityPayload(e *models.ApprovableEntity) ([]byte, error) {
	switch e.Kind {
	case models.KindRoleGrant:
		return json.Marshal(e.RoleGrant)
	case models.KindCollege:
		return json.Marshal(e.College)
	case models.KindDepartment:
		return json.Marshal(e.Department)
	case models.KindRecruiterAccount:
		return json.Marshal(e.Recruiter)
	default:
		return nil, fmt.Errorf("unknown entity kind %q", e.Kind)
	}
}

func decodeEntityPayload(e *models.ApprovableEntity, raw []byte) error {
	var target interface{}
	switch e.Kind {
	case models.KindRoleGrant:
		e.RoleGrant = &models.RoleGrant{}
		target = e.RoleGrant
	case models.KindCollege:
		e.College = &models.College{}
		target = e.College
	case models.KindDepartment:
		e.Department = &models.Department{}
		target = e.Department
	case models.KindRecruiterAccount:
		e.Recruiter = &models.RecruiterAccount{}
		target = e.Recruiter
	default:
		return fmt.Errorf("unknown entity kind %q", e.Kind)
	}
	return json.Unmarshal(raw, target)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntity(row rowScanner) (*models.ApprovableEntity, error) {
	var (
		e         models.ApprovableEntity
		decidedAt sql.NullTime
		payload   []byte
	)
	err := row.Scan(
		&e.ID, &e.Kind, &e.Status, &e.Version,
		&e.Jurisdiction.State, &e.Jurisdiction.District, &e.Jurisdiction.College, &e.Jurisdiction.Department,
		&e.SubjectID, &e.SubmittedBy, &e.ApproverID, &e.Reason, &decidedAt, &payload,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if decidedAt.Valid {
		t := decidedAt.Time
		e.DecidedAt = &t
	}
	if err := decodeEntityPayload(&e, payload); err != nil {
		return nil, fmt.Errorf("decode payload of entity %s: %w", e.ID, err)
	}
	return &e, nil
}

func nullTime(e *models.ApprovableEntity) sql.NullTime {
	if e.DecidedAt == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *e.DecidedAt, Valid: true}
}

func (s *PostgresStore) CreateEntity(ctx context.Context, e *models.ApprovableEntity) error {
	payload, err := entityPayload(e)
	if err != nil {
		return err
	}
	_, err = s.client.DB.ExecContext(ctx, `
		INSERT INTO approvable_entities (id, kind, target_role, status, version, state, district, college, department,
			subject_id, submitted_by, approver_id, reason, decided_at, payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		e.ID, e.Kind, e.TargetRole(), e.Status, e.Version,
		e.Jurisdiction.State, e.Jurisdiction.District, e.Jurisdiction.College, e.Jurisdiction.Department,
		e.SubjectID, e.SubmittedBy, e.ApproverID, e.Reason, nullTime(e), payload, e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err, "") {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert entity: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*models.ApprovableEntity, error) {
	row := s.client.DB.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM approvable_entities WHERE id = $1`, id)
	e, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) CompareAndSwapEntity(ctx context.Context, expectedVersion int64, next *models.ApprovableEntity) (bool, error) {
	payload, err := entityPayload(next)
	if err != nil {
		return false, err
	}
	res, err := s.client.DB.ExecContext(ctx, `
		UPDATE approvable_entities
		SET status = $3, version = $2 + 1, approver_id = $4, reason = $5, decided_at = $6, payload = $7, updated_at = $8
		WHERE id = $1 AND version = $2`,
		next.ID, expectedVersion, next.Status, next.ApproverID, next.Reason, nullTime(next), payload, next.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("update entity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update entity: %w", err)
	}
	if n == 0 {
		return false, s.existsOrNotFound(ctx, "approvable_entities", next.ID)
	}
	next.Version = expectedVersion + 1
	return true, nil
}

// existsOrNotFound distinguishes a lost race from a missing row after an UPDATE hit nothing.
func (s *PostgresStore) existsOrNotFound(ctx context.Context, table, id string) error {
	var one int
	err := s.client.DB.QueryRowContext(ctx, `SELECT 1 FROM `+table+` WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) QueryByJurisdiction(ctx context.Context, role roles.Role, j roles.Jurisdiction) ([]*models.ApprovableEntity, error) {
	rows, err := s.client.DB.QueryContext(ctx, `
		SELECT `+entityColumns+`
		FROM approvable_entities
		WHERE target_role = $1
		  AND ($2 = '' OR lower(state) = lower($2))
		  AND ($3 = '' OR lower(district) = lower($3))
		  AND ($4 = '' OR lower(college) = lower($4))
		  AND ($5 = '' OR lower(department) = lower($5))
		ORDER BY created_at, id`,
		role, j.State, j.District, j.College, j.Department,
	)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	var out []*models.ApprovableEntity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		// the SQL filter ignores path gaps; containment is decided here
		if roles.JurisdictionContains(j, e.Jurisdiction) {
			out = append(out, e)
		}
	}
	return out, rows.Err()
}

func scanApplication(row rowScanner) (*models.Application, error) {
	var a models.Application
	err := row.Scan(&a.ID, &a.StudentID, &a.OpportunityID, &a.RecruiterID, &a.Status, &a.AppliedAt,
		&a.InterviewID, &a.Feedback, &a.Version, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) CreateApplication(ctx context.Context, a *models.Application) error {
	_, err := s.client.DB.ExecContext(ctx, `
		INSERT INTO applications (`+applicationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		a.ID, a.StudentID, a.OpportunityID, a.RecruiterID, a.Status, a.AppliedAt,
		a.InterviewID, a.Feedback, a.Version, a.UpdatedAt,
	)
	if isUniqueViolation(err, constraintLiveApplication) {
		return ErrDuplicateApplication
	}
	if isUniqueViolation(err, "") {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert application: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	row := s.client.DB.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) CompareAndSwapApplication(ctx context.Context, expectedVersion int64, next *models.Application, iv *models.Interview) (bool, error) {
	swapped := false
	err := s.client.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE applications
			SET status = $3, version = $2 + 1, interview_id = $4, feedback = $5, updated_at = $6
			WHERE id = $1 AND version = $2`,
			next.ID, expectedVersion, next.Status, next.InterviewID, next.Feedback, next.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update application: %w", err)
		}
		if n == 0 {
			return nil
		}

		if iv != nil {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO interviews (id, application_id, scheduled_at, status, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO UPDATE
				SET scheduled_at = EXCLUDED.scheduled_at, status = EXCLUDED.status, updated_at = EXCLUDED.updated_at`,
				iv.ID, iv.ApplicationID, iv.ScheduledAt, iv.Status, iv.CreatedAt, iv.UpdatedAt,
			)
			if isUniqueViolation(err, constraintActiveInterview) {
				return ErrInterviewActive
			}
			if err != nil {
				return fmt.Errorf("upsert interview: %w", err)
			}
		}
		swapped = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !swapped {
		return false, s.existsOrNotFound(ctx, "applications", next.ID)
	}
	next.Version = expectedVersion + 1
	return true, nil
}

func (s *PostgresStore) QueryApplications(ctx context.Context, q models.ApplicationQuery) ([]*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE student_id = $1 ORDER BY applied_at, id`
	arg := q.StudentID
	if q.StudentID == "" {
		query = `SELECT ` + applicationColumns + ` FROM applications WHERE opportunity_id = $1 ORDER BY applied_at, id`
		arg = q.OpportunityID
	}
	rows, err := s.client.DB.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("query applications: %w", err)
	}
	defer rows.Close()

	var out []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetActiveInterview(ctx context.Context, applicationID string) (*models.Interview, error) {
	var iv models.Interview
	err := s.client.DB.QueryRowContext(ctx, `
		SELECT id, application_id, scheduled_at, status, created_at, updated_at
		FROM interviews
		WHERE application_id = $1 AND status <> 'cancelled'`,
		applicationID,
	).Scan(&iv.ID, &iv.ApplicationID, &iv.ScheduledAt, &iv.Status, &iv.CreatedAt, &iv.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active interview: %w", err)
	}
	return &iv, nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, studentID string) (*models.StudentProfileSnapshot, error) {
	var p models.StudentProfileSnapshot
	err := s.client.DB.QueryRowContext(ctx, `
		SELECT student_id, profile_completed, skills, certificates, education_entries, has_resume
		FROM student_profiles
		WHERE student_id = $1`,
		studentID,
	).Scan(&p.StudentID, &p.ProfileCompleted, pq.Array(&p.Skills), &p.Certificates, &p.EducationEntries, &p.HasResume)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

// SaveProfile upserts a profile snapshot.
func (s *PostgresStore) SaveProfile(ctx context.Context, p models.StudentProfileSnapshot) error {
	_, err := s.client.DB.ExecContext(ctx, `
		INSERT INTO student_profiles (student_id, profile_completed, skills, certificates, education_entries, has_resume)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id) DO UPDATE
		SET profile_completed = EXCLUDED.profile_completed, skills = EXCLUDED.skills,
			certificates = EXCLUDED.certificates, education_entries = EXCLUDED.education_entries,
			has_resume = EXCLUDED.has_resume`,
		p.StudentID, p.ProfileCompleted, pq.Array(p.Skills), p.Certificates, p.EducationEntries, p.HasResume,
	)
	if err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	var o models.Opportunity
	err := s.client.DB.QueryRowContext(ctx,
		`SELECT id, recruiter_id, title, open FROM opportunities WHERE id = $1`, id,
	).Scan(&o.ID, &o.RecruiterID, &o.Title, &o.Open)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get opportunity: %w", err)
	}
	return &o, nil
}
