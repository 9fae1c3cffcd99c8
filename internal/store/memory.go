package store

import (
	"context"
	"sort"
	"sync"

	"placement-core/internal/models"
	"placement-core/internal/roles"
)

// MemoryStore keeps everything in process. Every method takes a single lock, so
// each call is one atomic unit.
type MemoryStore struct {
	mu            sync.RWMutex
	entities      map[string]*models.ApprovableEntity
	applications  map[string]models.Application
	interviews    map[string]models.Interview
	profiles      map[string]models.StudentProfileSnapshot
	opportunities map[string]models.Opportunity
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:      make(map[string]*models.ApprovableEntity),
		applications:  make(map[string]models.Application),
		interviews:    make(map[string]models.Interview),
		profiles:      make(map[string]models.StudentProfileSnapshot),
		opportunities: make(map[string]models.Opportunity),
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

// PutProfile stores or replaces a profile snapshot.
func (s *MemoryStore) PutProfile(p models.StudentProfileSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Skills = append([]string(nil), p.Skills...)
	s.profiles[p.StudentID] = p
}

func (s *MemoryStore) SaveProfile(ctx context.Context, p models.StudentProfileSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.PutProfile(p)
	return nil
}

// PutOpportunity stores or replaces an opportunity.
func (s *MemoryStore) PutOpportunity(o models.Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opportunities[o.ID] = o
}

func (s *MemoryStore) CreateEntity(ctx context.Context, e *models.ApprovableEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entities[e.ID]; exists {
		return ErrAlreadyExists
	}
	s.entities[e.ID] = e.Clone()
	return nil
}

func (s *MemoryStore) GetEntity(ctx context.Context, id string) (*models.ApprovableEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.Clone(), nil
}

func (s *MemoryStore) CompareAndSwapEntity(ctx context.Context, expectedVersion int64, next *models.ApprovableEntity) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entities[next.ID]
	if !ok {
		return false, ErrNotFound
	}
	if cur.Version != expectedVersion {
		return false, nil
	}
	next.Version = expectedVersion + 1
	s.entities[next.ID] = next.Clone()
	return true, nil
}

func (s *MemoryStore) QueryByJurisdiction(ctx context.Context, role roles.Role, j roles.Jurisdiction) ([]*models.ApprovableEntity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.ApprovableEntity
	for _, e := range s.entities {
		if e.TargetRole() != role || !roles.JurisdictionContains(j, e.Jurisdiction) {
			continue
		}
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.Before(out[b].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) CreateApplication(ctx context.Context, a *models.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.applications[a.ID]; exists {
		return ErrAlreadyExists
	}
	for _, existing := range s.applications {
		if existing.StudentID == a.StudentID && existing.OpportunityID == a.OpportunityID && existing.Status.Live() {
			return ErrDuplicateApplication
		}
	}
	s.applications[a.ID] = *a
	return nil
}

func (s *MemoryStore) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) CompareAndSwapApplication(ctx context.Context, expectedVersion int64, next *models.Application, iv *models.Interview) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.applications[next.ID]
	if !ok {
		return false, ErrNotFound
	}
	if cur.Version != expectedVersion {
		return false, nil
	}
	if iv != nil && iv.Active() {
		if active, found := s.activeInterviewLocked(next.ID); found && active.ID != iv.ID {
			return false, ErrInterviewActive
		}
	}

	next.Version = expectedVersion + 1
	s.applications[next.ID] = *next
	if iv != nil {
		s.interviews[iv.ID] = *iv
	}
	return true, nil
}

func (s *MemoryStore) QueryApplications(ctx context.Context, q models.ApplicationQuery) ([]*models.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Application
	for _, a := range s.applications {
		if q.StudentID != "" && a.StudentID != q.StudentID {
			continue
		}
		if q.OpportunityID != "" && a.OpportunityID != q.OpportunityID {
			continue
		}
		a := a
		out = append(out, &a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].AppliedAt.Before(out[j].AppliedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetActiveInterview(ctx context.Context, applicationID string) (*models.Interview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	iv, ok := s.activeInterviewLocked(applicationID)
	if !ok {
		return nil, ErrNotFound
	}
	return &iv, nil
}

func (s *MemoryStore) activeInterviewLocked(applicationID string) (models.Interview, bool) {
	for _, iv := range s.interviews {
		if iv.ApplicationID == applicationID && iv.Active() {
			return iv, true
		}
	}
	return models.Interview{}, false
}

func (s *MemoryStore) GetProfile(ctx context.Context, studentID string) (*models.StudentProfileSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[studentID]
	if !ok {
		return nil, ErrNotFound
	}
	p.Skills = append([]string(nil), p.Skills...)
	return &p, nil
}

func (s *MemoryStore) GetOpportunity(ctx context.Context, id string) (*models.Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.opportunities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}
