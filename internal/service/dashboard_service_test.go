package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coordoffice/cdms-api/internal/models"
)

type mockDashboardRepo struct {
	counts models.DashboardCounts
	calls  int
}

func (m *mockDashboardRepo) Counts(ctx context.Context) (*models.DashboardCounts, error) {
	m.calls++
	cp := m.counts
	return &cp, nil
}

func TestDashboardServiceCountsCacheAside(t *testing.T) {
	repo := &mockDashboardRepo{counts: models.DashboardCounts{
		Schools:         30,
		ScheduledVisits: 5,
		CompletedVisits: 12,
		FeedbackEntries: 8,
	}}
	cache := newMockCache()
	svc := NewDashboardService(repo, cache, nil, zap.NewNop(), time.Minute)

	first, err := svc.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, first.Schools)
	assert.False(t, first.GeneratedAt.IsZero())
	assert.Equal(t, 1, repo.calls)

	second, err := svc.Counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 12, second.CompletedVisits)
	assert.Equal(t, 1, repo.calls, "second call should be served from cache")
}

func TestDashboardServiceCountsWithoutCache(t *testing.T) {
	repo := &mockDashboardRepo{counts: models.DashboardCounts{Schools: 2}}
	svc := NewDashboardService(repo, nil, nil, zap.NewNop(), time.Minute)

	for i := 0; i < 2; i++ {
		counts, err := svc.Counts(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 2, counts.Schools)
	}
	assert.Equal(t, 2, repo.calls)
}
