package score

import (
	"context"
	"errors"
	"time"

	apperrors "placement-core/internal/common/errors"
	"placement-core/internal/common/logger"
	"placement-core/internal/common/metrics"
	"placement-core/internal/store"
)

// Service recomputes scores on demand after profile-affecting mutations and
// serves the last stored result. It never recomputes on read.
type Service struct {
	profiles store.ProfileReader
	cache    Cache
	logger   logger.Logger
	now      func() time.Time
}

func NewService(profiles store.ProfileReader, cache Cache, log logger.Logger) *Service {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		profiles: profiles,
		cache:    cache,
		logger:   logger.ForComponent(log, "score"),
		now:      time.Now,
	}
}

// Recompute reads the student's snapshot, computes the score and stores it.
func (s *Service) Recompute(ctx context.Context, studentID string) (*Result, error) {
	snapshot, err := s.profiles.GetProfile(ctx, studentID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NewNotFoundError("student profile", studentID)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailureError("get profile", err)
	}

	result := Compute(*snapshot)
	result.StudentID = studentID
	result.ComputedAt = s.now().Unix()

	if err := s.cache.Set(ctx, &result); err != nil {
		s.logger.Error("failed to store score", map[string]interface{}{
			"studentId": studentID,
			"error":     err,
		})
		return nil, apperrors.NewStoreFailureError("store score", err)
	}

	metrics.ScoreComputations.WithLabelValues(result.FormulaVersion).Inc()
	metrics.ScoreDistribution.Observe(float64(result.Score))

	s.logger.Info("employability score calculated", map[string]interface{}{
		"studentId": studentID,
		"score":     result.Score,
		"level":     result.Level,
		"breakdown": result.Breakdown,
	})
	return &result, nil
}

// Current returns the stored result without recomputing.
func (s *Service) Current(ctx context.Context, studentID string) (*Result, error) {
	r, err := s.cache.Get(ctx, studentID)
	if errors.Is(err, ErrCacheMiss) {
		return nil, apperrors.NewNotFoundError("score", studentID)
	}
	if err != nil {
		return nil, apperrors.NewStoreFailureError("get score", err)
	}
	return r, nil
}
