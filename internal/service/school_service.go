package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coordoffice/cdms-api/internal/models"
	"github.com/coordoffice/cdms-api/internal/repository"
	appErrors "github.com/coordoffice/cdms-api/pkg/errors"
)

const (
	cacheKeySchoolNames     = "schools:names"
	cacheKeyDashboardCounts = "dashboard:counts"
)

type schoolRepository interface {
	List(ctx context.Context, filter models.SchoolFilter) ([]models.School, int, error)
	ListNames(ctx context.Context) ([]string, error)
	FindByID(ctx context.Context, id string) (*models.School, error)
	ExistsByName(ctx context.Context, name, excludeID string) (bool, error)
	Create(ctx context.Context, school *models.School) error
	Update(ctx context.Context, school *models.School) error
	Delete(ctx context.Context, id string) error
	CountVisits(ctx context.Context, schoolID string) (int, error)
}

type cacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// SchoolForm carries the raw submitted field values of the add/edit school
// form. Everything arrives as strings; ValidateSchoolForm does the cleaning.
type SchoolForm struct {
	Name          string `json:"name"`
	Address       string `json:"address"`
	ContactPerson string `json:"contact_person"`
	ContactPhone  string `json:"contact_phone"`
	ContactEmail  string `json:"contact_email"`
	Location      string `json:"location"`
	Capacity      string `json:"capacity"`
	NumTeachers   string `json:"num_teachers"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	ExamDates     string `json:"exam_dates"`
	Holidays      string `json:"holidays"`
}

// CleanedSchoolForm holds the typed values produced by validation.
type CleanedSchoolForm struct {
	Name          string
	Address       string
	ContactPerson string
	ContactPhone  string
	ContactEmail  string
	Location      string
	Capacity      *int
	NumTeachers   *int
	StartTime     string
	EndTime       string
	ExamDates     string
	Holidays      string
}

// ValidateSchoolForm checks every field and collects every applicable error
// before returning; nothing short-circuits, so the caller can re-display the
// whole form with inline messages. Empty optional numeric fields clean to
// nil; non-numeric and negative values produce distinct messages.
func ValidateSchoolForm(form SchoolForm) (CleanedSchoolForm, map[string]string) {
	errs := make(map[string]string)
	cleaned := CleanedSchoolForm{
		Name:          strings.TrimSpace(form.Name),
		Address:       strings.TrimSpace(form.Address),
		ContactPerson: strings.TrimSpace(form.ContactPerson),
		ContactPhone:  strings.TrimSpace(form.ContactPhone),
		ContactEmail:  strings.TrimSpace(form.ContactEmail),
		Location:      strings.TrimSpace(form.Location),
		StartTime:     strings.TrimSpace(form.StartTime),
		EndTime:       strings.TrimSpace(form.EndTime),
		ExamDates:     strings.TrimSpace(form.ExamDates),
		Holidays:      strings.TrimSpace(form.Holidays),
	}

	if cleaned.Name == "" {
		errs["name"] = "School name is required."
	}
	if cleaned.Address == "" {
		errs["address"] = "Address is required."
	}
	if cleaned.ContactPerson == "" {
		errs["contact_person"] = "Contact person is required."
	}

	cleaned.Capacity = cleanOptionalInt(form.Capacity, "capacity", "Capacity", errs)
	cleaned.NumTeachers = cleanOptionalInt(form.NumTeachers, "num_teachers", "Number of teachers", errs)

	// Deliberately weak email shape check, kept from the legacy form: staff
	// paste all sorts of half-addresses and only obvious garbage is refused.
	if cleaned.ContactEmail != "" && !strings.Contains(cleaned.ContactEmail, "@") {
		errs["contact_email"] = "Please enter a valid email address."
	}

	return cleaned, errs
}

func cleanOptionalInt(raw, field, label string, errs map[string]string) *int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		errs[field] = label + " must be a whole number."
		return nil
	}
	if value < 0 {
		errs[field] = label + " cannot be negative."
		return nil
	}
	return &value
}

// SchoolService orchestrates the school directory.
type SchoolService struct {
	repo     schoolRepository
	cache    cacheStore
	logger   *zap.Logger
	namesTTL time.Duration
}

// NewSchoolService constructs a SchoolService.
func NewSchoolService(repo schoolRepository, cache cacheStore, logger *zap.Logger, namesTTL time.Duration) *SchoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if namesTTL <= 0 {
		namesTTL = 10 * time.Minute
	}
	return &SchoolService{repo: repo, cache: cache, logger: logger, namesTTL: namesTTL}
}

// List returns schools plus pagination data.
func (s *SchoolService) List(ctx context.Context, filter models.SchoolFilter) ([]models.School, *models.Pagination, error) {
	schools, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schools")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return schools, pagination, nil
}

// Names returns the school name list used by the public feedback form,
// served cache-aside.
func (s *SchoolService) Names(ctx context.Context) ([]string, error) {
	if s.cache != nil {
		var cached []string
		if err := s.cache.Get(ctx, cacheKeySchoolNames, &cached); err == nil {
			return cached, nil
		}
	}
	names, err := s.repo.ListNames(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list school names")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKeySchoolNames, names, s.namesTTL); err != nil {
			s.logger.Warn("failed to cache school names", zap.Error(err))
		}
	}
	return names, nil
}

// Get returns a school by id.
func (s *SchoolService) Get(ctx context.Context, id string) (*models.School, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}
	return school, nil
}

// Create validates the form and inserts a new school. The name must be
// unique case-insensitively.
func (s *SchoolService) Create(ctx context.Context, form SchoolForm) (*models.School, error) {
	cleaned, fieldErrs := ValidateSchoolForm(form)
	if len(fieldErrs) > 0 {
		return nil, appErrors.Validation("please fix the errors below and try again", fieldErrs)
	}

	exists, err := s.repo.ExistsByName(ctx, cleaned.Name, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this name already exists")
	}

	school := schoolFromCleaned(cleaned)
	if err := s.repo.Create(ctx, school); err != nil {
		if errors.Is(err, repository.ErrNameTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create school")
	}
	s.invalidate(ctx)
	return school, nil
}

// Update validates the form and overwrites every mutable field.
func (s *SchoolService) Update(ctx context.Context, id string, form SchoolForm) (*models.School, error) {
	school, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	cleaned, fieldErrs := ValidateSchoolForm(form)
	if len(fieldErrs) > 0 {
		return nil, appErrors.Validation("please fix the errors below and try again", fieldErrs)
	}

	exists, err := s.repo.ExistsByName(ctx, cleaned.Name, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school name")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this name already exists")
	}

	applyCleaned(school, cleaned)
	if err := s.repo.Update(ctx, school); err != nil {
		if errors.Is(err, repository.ErrNameTaken) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a school with this name already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}
	s.invalidate(ctx)
	return school, nil
}

// Delete removes a school. Deletion is restricted while visits reference
// the school, so operational history never silently disappears.
func (s *SchoolService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "school not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school")
	}

	visitCount, err := s.repo.CountVisits(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check school visits")
	}
	if visitCount > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "school has scheduled visits and cannot be deleted")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete school")
	}
	s.invalidate(ctx)
	return nil
}

func (s *SchoolService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, key := range []string{cacheKeySchoolNames, cacheKeyDashboardCounts} {
		if err := s.cache.DeleteByPattern(ctx, key); err != nil {
			s.logger.Warn("failed to invalidate cache", zap.String("key", key), zap.Error(err))
		}
	}
}

func schoolFromCleaned(c CleanedSchoolForm) *models.School {
	return &models.School{
		Name:          c.Name,
		Address:       c.Address,
		ContactPerson: c.ContactPerson,
		ContactPhone:  c.ContactPhone,
		ContactEmail:  c.ContactEmail,
		Location:      c.Location,
		Capacity:      c.Capacity,
		NumTeachers:   c.NumTeachers,
		StartTime:     c.StartTime,
		EndTime:       c.EndTime,
		ExamDates:     c.ExamDates,
		Holidays:      c.Holidays,
	}
}

func applyCleaned(school *models.School, c CleanedSchoolForm) {
	school.Name = c.Name
	school.Address = c.Address
	school.ContactPerson = c.ContactPerson
	school.ContactPhone = c.ContactPhone
	school.ContactEmail = c.ContactEmail
	school.Location = c.Location
	school.Capacity = c.Capacity
	school.NumTeachers = c.NumTeachers
	school.StartTime = c.StartTime
	school.EndTime = c.EndTime
	school.ExamDates = c.ExamDates
	school.Holidays = c.Holidays
}
