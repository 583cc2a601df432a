package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coordoffice/cdms-api/internal/models"
	"github.com/coordoffice/cdms-api/internal/repository"
	appErrors "github.com/coordoffice/cdms-api/pkg/errors"
)

const visitDateLayout = "2006-01-02"

type visitRepository interface {
	List(ctx context.Context, filter models.VisitFilter) ([]models.Visit, int, error)
	FindByID(ctx context.Context, id string) (*models.Visit, error)
	SlotTaken(ctx context.Context, date time.Time, timeSlot string) (bool, error)
	Create(ctx context.Context, visit *models.Visit) error
	UpdateStatus(ctx context.Context, id string, status models.VisitStatus) error
	Delete(ctx context.Context, id string) error
}

type visitSchoolLookup interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
}

// VisitForm carries the raw scheduling form fields. The time slot stays a
// free-text string so entries like "9:00" and "after lunch" both work.
type VisitForm struct {
	SchoolID  string `json:"school_id"`
	VisitDate string `json:"visit_date"`
	VisitTime string `json:"visit_time"`
}

// VisitListQuery carries raw list filters before date parsing.
type VisitListQuery struct {
	SchoolID string
	DateFrom string
	DateTo   string
	Status   string
	Page     int
	PageSize int
}

// VisitService owns visit scheduling and the one-visit-per-slot rule.
type VisitService struct {
	repo    visitRepository
	schools visitSchoolLookup
	cache   cacheStore
	logger  *zap.Logger
}

// NewVisitService constructs a VisitService.
func NewVisitService(repo visitRepository, schools visitSchoolLookup, cache cacheStore, logger *zap.Logger) *VisitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VisitService{repo: repo, schools: schools, cache: cache, logger: logger}
}

// List returns visits matching the query, earliest slot first.
func (s *VisitService) List(ctx context.Context, query VisitListQuery) ([]models.Visit, *models.Pagination, error) {
	filter := models.VisitFilter{
		SchoolID: strings.TrimSpace(query.SchoolID),
		Page:     query.Page,
		PageSize: query.PageSize,
	}

	var err error
	if filter.DateFrom, err = parseOptionalDate(query.DateFrom, "date_from"); err != nil {
		return nil, nil, err
	}
	if filter.DateTo, err = parseOptionalDate(query.DateTo, "date_to"); err != nil {
		return nil, nil, err
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status := models.VisitStatus(strings.ToUpper(raw))
		if status != models.VisitStatusScheduled && status != models.VisitStatusCompleted {
			return nil, nil, appErrors.Validation(fmt.Sprintf("status must be %s or %s", models.VisitStatusScheduled, models.VisitStatusCompleted), nil)
		}
		filter.Status = &status
	}

	visits, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list visits")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return visits, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a visit by id.
func (s *VisitService) Get(ctx context.Context, id string) (*models.Visit, error) {
	visit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "visit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load visit")
	}
	return visit, nil
}

// Schedule books a new visit. The (date, time) slot is exclusive across all
// schools; a taken slot surfaces as a conflict no matter whether the
// pre-check or the database constraint caught it.
func (s *VisitService) Schedule(ctx context.Context, form VisitForm) (*models.Visit, error) {
	visit, err := s.validateForm(ctx, form)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.SlotTaken(ctx, visit.VisitDate, visit.VisitTime)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check visit slot")
	}
	if taken {
		return nil, slotConflictError(visit.VisitDate, visit.VisitTime)
	}

	if err := s.repo.Create(ctx, visit); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return nil, slotConflictError(visit.VisitDate, visit.VisitTime)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to schedule visit")
	}
	s.invalidate(ctx)

	s.logger.Info("visit scheduled",
		zap.String("visit_id", visit.ID),
		zap.String("school_id", visit.SchoolID),
		zap.Time("visit_date", visit.VisitDate),
		zap.String("visit_time", visit.VisitTime))
	return visit, nil
}

// UpdateStatus transitions a visit between SCHEDULED and COMPLETED.
func (s *VisitService) UpdateStatus(ctx context.Context, id string, rawStatus string) (*models.Visit, error) {
	status := models.VisitStatus(strings.ToUpper(strings.TrimSpace(rawStatus)))
	if status != models.VisitStatusScheduled && status != models.VisitStatusCompleted {
		return nil, appErrors.Validation(fmt.Sprintf("status must be %s or %s", models.VisitStatusScheduled, models.VisitStatusCompleted), nil)
	}
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update visit status")
	}
	s.invalidate(ctx)
	return s.Get(ctx, id)
}

// Cancel removes a visit, freeing its slot.
func (s *VisitService) Cancel(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel visit")
	}
	s.invalidate(ctx)
	return nil
}

func (s *VisitService) validateForm(ctx context.Context, form VisitForm) (*models.Visit, error) {
	schoolID := strings.TrimSpace(form.SchoolID)
	rawDate := strings.TrimSpace(form.VisitDate)
	visitTime := strings.TrimSpace(form.VisitTime)

	var missing []string
	if schoolID == "" {
		missing = append(missing, "school_id")
	}
	if rawDate == "" {
		missing = append(missing, "visit_date")
	}
	if visitTime == "" {
		missing = append(missing, "visit_time")
	}
	if len(missing) > 0 {
		return nil, appErrors.Validation("missing required fields: "+strings.Join(missing, ", "), nil)
	}

	visitDate, err := time.Parse(visitDateLayout, rawDate)
	if err != nil {
		return nil, appErrors.Validation("visit_date must be a valid date formatted as YYYY-MM-DD", nil)
	}

	if _, err := s.schools.FindByID(ctx, schoolID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Validation("school does not exist", nil)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	return &models.Visit{
		SchoolID:  schoolID,
		VisitDate: visitDate,
		VisitTime: visitTime,
		Status:    models.VisitStatusScheduled,
	}, nil
}

func (s *VisitService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, cacheKeyDashboardCounts); err != nil {
		s.logger.Warn("failed to invalidate cache", zap.String("key", cacheKeyDashboardCounts), zap.Error(err))
	}
}

func parseOptionalDate(raw, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := time.Parse(visitDateLayout, trimmed)
	if err != nil {
		return nil, appErrors.Validation(field+" must be a valid date formatted as YYYY-MM-DD", nil)
	}
	return &parsed, nil
}

func slotConflictError(date time.Time, timeSlot string) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrConflict,
		fmt.Sprintf("a visit is already scheduled on %s at %s", date.Format(visitDateLayout), timeSlot))
}
