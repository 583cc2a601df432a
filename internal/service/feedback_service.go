package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coordoffice/cdms-api/internal/models"
	appErrors "github.com/coordoffice/cdms-api/pkg/errors"
)

type feedbackRepository interface {
	List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error)
	FindByID(ctx context.Context, id string) (*models.Feedback, error)
	Create(ctx context.Context, entry *models.Feedback) error
	Delete(ctx context.Context, id string) error
}

// FeedbackForm is the public intake payload. Length bounds mirror the paper
// form the office previously used.
type FeedbackForm struct {
	Name       string `json:"name" validate:"required,min=5,max=20"`
	SchoolName string `json:"school_name" validate:"required,min=10,max=150"`
	Email      string `json:"email" validate:"required,email"`
	Body       string `json:"body" validate:"required,min=20,max=1500"`
	TripDate   string `json:"trip_date" validate:"required"`
}

var feedbackFieldMessages = map[string]struct{ key, msg string }{
	"Name":       {"name", "name must be between 5 and 20 characters"},
	"SchoolName": {"school_name", "school_name must be between 10 and 150 characters"},
	"Email":      {"email", "email must be a valid email address"},
	"Body":       {"body", "body must be between 20 and 1500 characters"},
	"TripDate":   {"trip_date", "trip_date is required"},
}

// FeedbackService handles public feedback intake and staff review.
type FeedbackService struct {
	repo     feedbackRepository
	validate *validator.Validate
	cache    cacheStore
	logger   *zap.Logger
}

// NewFeedbackService constructs a FeedbackService.
func NewFeedbackService(repo feedbackRepository, cache cacheStore, logger *zap.Logger) *FeedbackService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedbackService{
		repo:     repo,
		validate: validator.New(),
		cache:    cache,
		logger:   logger,
	}
}

// Submit validates and stores a public feedback entry. VisitID is never set
// by intake; entries start unassociated.
func (s *FeedbackService) Submit(ctx context.Context, form FeedbackForm) (*models.Feedback, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.SchoolName = strings.TrimSpace(form.SchoolName)
	form.Email = strings.TrimSpace(form.Email)
	form.Body = strings.TrimSpace(form.Body)
	form.TripDate = strings.TrimSpace(form.TripDate)

	if err := s.validate.Struct(form); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if m, found := feedbackFieldMessages[fe.Field()]; found {
					fields[m.key] = m.msg
				}
			}
		}
		return nil, appErrors.Validation("feedback submission is invalid", fields)
	}

	tripDate, err := time.Parse(visitDateLayout, form.TripDate)
	if err != nil {
		return nil, appErrors.Validation("trip_date must be a valid date formatted as YYYY-MM-DD", nil)
	}

	entry := &models.Feedback{
		Name:       form.Name,
		SchoolName: form.SchoolName,
		Email:      form.Email,
		Body:       form.Body,
		TripDate:   tripDate,
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store feedback")
	}
	s.invalidate(ctx)

	s.logger.Info("feedback received",
		zap.String("feedback_id", entry.ID),
		zap.String("school_name", entry.SchoolName))
	return entry, nil
}

// List returns feedback entries for staff review, newest first.
func (s *FeedbackService) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list feedback")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Delete removes a feedback entry.
func (s *FeedbackService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "feedback not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load feedback")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete feedback")
	}
	s.invalidate(ctx)
	return nil
}

func (s *FeedbackService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, cacheKeyDashboardCounts); err != nil {
		s.logger.Warn("failed to invalidate cache", zap.String("key", cacheKeyDashboardCounts), zap.Error(err))
	}
}
