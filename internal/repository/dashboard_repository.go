package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/coordoffice/cdms-api/internal/models"
)

// DashboardRepository computes the office landing page counts.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs a DashboardRepository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// Counts gathers entity totals in a single round trip.
func (r *DashboardRepository) Counts(ctx context.Context) (*models.DashboardCounts, error) {
	const query = `SELECT
	(SELECT COUNT(*) FROM schools) AS schools,
	(SELECT COUNT(*) FROM visits WHERE status = 'SCHEDULED') AS scheduled_visits,
	(SELECT COUNT(*) FROM visits WHERE status = 'COMPLETED') AS completed_visits,
	(SELECT COUNT(*) FROM feedback) AS feedback_entries`

	var counts models.DashboardCounts
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}
	counts.GeneratedAt = time.Now().UTC()
	return &counts, nil
}
