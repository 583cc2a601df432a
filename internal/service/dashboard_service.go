package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coordoffice/cdms-api/internal/models"
	appErrors "github.com/coordoffice/cdms-api/pkg/errors"
)

type dashboardRepository interface {
	Counts(ctx context.Context) (*models.DashboardCounts, error)
}

// DashboardService serves the office landing counts, cache-aside.
type DashboardService struct {
	repo    dashboardRepository
	cache   cacheStore
	metrics *MetricsService
	logger  *zap.Logger
	ttl     time.Duration
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(repo dashboardRepository, cache cacheStore, metrics *MetricsService, logger *zap.Logger, ttl time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &DashboardService{repo: repo, cache: cache, metrics: metrics, logger: logger, ttl: ttl}
}

// Counts returns the landing page figures. Mutations on schools, visits and
// feedback invalidate the cached copy, so a stale window never outlives a
// write plus the TTL.
func (s *DashboardService) Counts(ctx context.Context) (*models.DashboardCounts, error) {
	if s.cache != nil {
		var cached models.DashboardCounts
		if err := s.cache.Get(ctx, cacheKeyDashboardCounts, &cached); err == nil {
			s.metrics.RecordCacheOperation(true)
			return &cached, nil
		}
		s.metrics.RecordCacheOperation(false)
	}

	counts, err := s.repo.Counts(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute dashboard counts")
	}
	counts.GeneratedAt = time.Now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKeyDashboardCounts, counts, s.ttl); err != nil {
			s.logger.Warn("failed to cache dashboard counts", zap.Error(err))
		}
	}
	return counts, nil
}
