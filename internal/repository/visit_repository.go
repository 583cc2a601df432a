package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coordoffice/cdms-api/internal/models"
	"github.com/coordoffice/cdms-api/pkg/database"
)

// ErrSlotTaken signals that another visit already occupies the requested
// (date, time) slot. Raised both by the transactional pre-check and by the
// unique constraint when two writers race.
var ErrSlotTaken = errors.New("visit slot already taken")

const visitColumns = "v.id, v.school_id, s.name AS school_name, v.visit_date, v.visit_time, v.status, v.created_at"

// VisitRepository provides persistence for site visits.
type VisitRepository struct {
	db *sqlx.DB
}

// NewVisitRepository creates a new visit repository.
func NewVisitRepository(db *sqlx.DB) *VisitRepository {
	return &VisitRepository{db: db}
}

// List returns visits with optional filtering and pagination, joined with
// the school name, ordered by date then time slot.
func (r *VisitRepository) List(ctx context.Context, filter models.VisitFilter) ([]models.Visit, int, error) {
	base := "FROM visits v JOIN schools s ON s.id = v.school_id WHERE 1=1"
	var args []interface{}

	if filter.SchoolID != "" {
		base += fmt.Sprintf(" AND v.school_id = $%d", len(args)+1)
		args = append(args, filter.SchoolID)
	}
	if filter.DateFrom != nil {
		base += fmt.Sprintf(" AND v.visit_date >= $%d", len(args)+1)
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		base += fmt.Sprintf(" AND v.visit_date <= $%d", len(args)+1)
		args = append(args, *filter.DateTo)
	}
	if filter.Status != nil {
		base += fmt.Sprintf(" AND v.status = $%d", len(args)+1)
		args = append(args, *filter.Status)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY v.visit_date ASC, v.visit_time ASC LIMIT %d OFFSET %d", visitColumns, base, size, offset)
	var visits []models.Visit
	if err := r.db.SelectContext(ctx, &visits, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list visits: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count visits: %w", err)
	}

	return visits, total, nil
}

// FindByID loads a visit by id.
func (r *VisitRepository) FindByID(ctx context.Context, id string) (*models.Visit, error) {
	query := fmt.Sprintf("SELECT %s FROM visits v JOIN schools s ON s.id = v.school_id WHERE v.id = $1", visitColumns)
	var visit models.Visit
	if err := r.db.GetContext(ctx, &visit, query, id); err != nil {
		return nil, err
	}
	return &visit, nil
}

// SlotTaken reports whether any visit already occupies the exact
// (date, time) pair, regardless of school.
func (r *VisitRepository) SlotTaken(ctx context.Context, date time.Time, timeSlot string) (bool, error) {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM visits WHERE visit_date = $1 AND visit_time = $2 LIMIT 1`, date, timeSlot)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check visit slot: %w", err)
	}
	return true, nil
}

// Create inserts a visit inside a transaction that re-checks the slot. The
// unique constraint on (visit_date, visit_time) is the final arbiter: a
// concurrent insert that slips past the pre-check surfaces as ErrSlotTaken
// instead of a raw unique-violation failure.
func (r *VisitRepository) Create(ctx context.Context, visit *models.Visit) error {
	if visit.ID == "" {
		visit.ID = uuid.NewString()
	}
	if visit.Status == "" {
		visit.Status = models.VisitStatusScheduled
	}
	visit.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create visit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.GetContext(ctx, &exists, `SELECT 1 FROM visits WHERE visit_date = $1 AND visit_time = $2 LIMIT 1`, visit.VisitDate, visit.VisitTime)
	if err == nil {
		err = ErrSlotTaken
		return err
	}
	if err != sql.ErrNoRows {
		err = fmt.Errorf("check visit slot: %w", err)
		return err
	}
	err = nil

	const query = `INSERT INTO visits (id, school_id, visit_date, visit_time, status, created_at) VALUES (:id, :school_id, :visit_date, :visit_time, :status, :created_at)`
	if _, err = sqlx.NamedExecContext(ctx, tx, query, visit); err != nil {
		if database.IsUniqueViolation(err) {
			err = ErrSlotTaken
			return err
		}
		err = fmt.Errorf("create visit: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		if database.IsUniqueViolation(err) {
			err = ErrSlotTaken
			return err
		}
		err = fmt.Errorf("commit create visit: %w", err)
		return err
	}
	return nil
}

// UpdateStatus transitions a visit's status.
func (r *VisitRepository) UpdateStatus(ctx context.Context, id string, status models.VisitStatus) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE visits SET status = $2 WHERE id = $1`, id, status); err != nil {
		return fmt.Errorf("update visit status: %w", err)
	}
	return nil
}

// Delete removes a visit by id.
func (r *VisitRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM visits WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete visit: %w", err)
	}
	return nil
}

// Summarize computes the report aggregates over visits matching the given
// optional bounds. Date bounds are independently optional; the school
// filter applies only when non-empty.
func (r *VisitRepository) Summarize(ctx context.Context, startDate, endDate *time.Time, schoolID string) (*models.ReportSummary, error) {
	base := "FROM visits WHERE 1=1"
	var args []interface{}

	if startDate != nil {
		base += fmt.Sprintf(" AND visit_date >= $%d", len(args)+1)
		args = append(args, *startDate)
	}
	if endDate != nil {
		base += fmt.Sprintf(" AND visit_date <= $%d", len(args)+1)
		args = append(args, *endDate)
	}
	if schoolID != "" {
		base += fmt.Sprintf(" AND school_id = $%d", len(args)+1)
		args = append(args, schoolID)
	}

	query := fmt.Sprintf("SELECT COUNT(DISTINCT school_id) AS number_of_schools, COUNT(*) AS number_of_visits %s", base)
	var summary models.ReportSummary
	if err := r.db.GetContext(ctx, &summary, query, args...); err != nil {
		return nil, fmt.Errorf("summarize visits: %w", err)
	}
	return &summary, nil
}
