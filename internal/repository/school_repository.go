package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coordoffice/cdms-api/internal/models"
	"github.com/coordoffice/cdms-api/pkg/database"
)

// ErrNameTaken signals that another school already uses the name. Raised by
// the unique index on LOWER(name) when two writers race past the
// ExistsByName pre-check.
var ErrNameTaken = errors.New("school name already taken")

const schoolColumns = "id, name, address, contact_person, contact_phone, contact_email, location, capacity, num_teachers, start_time, end_time, exam_dates, holidays, created_at, updated_at"

// SchoolRepository manages persistence for the school directory.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs a SchoolRepository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// List returns schools matching the filter along with the total count.
// Results are always ordered ascending by name, the directory contract.
func (r *SchoolRepository) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error) {
	base := "FROM schools WHERE 1=1"
	var args []interface{}

	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		base += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, search)
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", schoolColumns, base, size, offset)
	var schools []models.School
	if err := r.db.SelectContext(ctx, &schools, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schools: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schools: %w", err)
	}

	return schools, total, nil
}

// ListNames returns all school names ordered ascending, for the public
// feedback form.
func (r *SchoolRepository) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.SelectContext(ctx, &names, `SELECT name FROM schools ORDER BY name ASC`); err != nil {
		return nil, fmt.Errorf("list school names: %w", err)
	}
	return names, nil
}

// FindByID fetches a school by ID.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	query := fmt.Sprintf("SELECT %s FROM schools WHERE id = $1", schoolColumns)
	var school models.School
	if err := r.db.GetContext(ctx, &school, query, id); err != nil {
		return nil, err
	}
	return &school, nil
}

// ExistsByName checks whether another school already uses the name,
// case-insensitively.
func (r *SchoolRepository) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM schools WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check school name: %w", err)
	}
	return true, nil
}

// Create stores a new school record.
func (r *SchoolRepository) Create(ctx context.Context, school *models.School) error {
	if school.ID == "" {
		school.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	school.CreatedAt = now
	school.UpdatedAt = now

	const query = `INSERT INTO schools (id, name, address, contact_person, contact_phone, contact_email, location, capacity, num_teachers, start_time, end_time, exam_dates, holidays, created_at, updated_at) VALUES (:id, :name, :address, :contact_person, :contact_phone, :contact_email, :location, :capacity, :num_teachers, :start_time, :end_time, :exam_dates, :holidays, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("create school: %w", err)
	}
	return nil
}

// Update overwrites every mutable field of a school record.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = :name, address = :address, contact_person = :contact_person, contact_phone = :contact_phone, contact_email = :contact_email, location = :location, capacity = :capacity, num_teachers = :num_teachers, start_time = :start_time, end_time = :end_time, exam_dates = :exam_dates, holidays = :holidays, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, school); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrNameTaken
		}
		return fmt.Errorf("update school: %w", err)
	}
	return nil
}

// Delete removes a school by id.
func (r *SchoolRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM schools WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete school: %w", err)
	}
	return nil
}

// CountVisits reports how many visits reference the school. Used by the
// delete guard (restrict policy).
func (r *SchoolRepository) CountVisits(ctx context.Context, schoolID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM visits WHERE school_id = $1`, schoolID); err != nil {
		return 0, fmt.Errorf("count school visits: %w", err)
	}
	return count, nil
}
