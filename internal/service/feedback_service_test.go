package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coordoffice/cdms-api/internal/models"
	appErrors "github.com/coordoffice/cdms-api/pkg/errors"
)

type mockFeedbackRepo struct {
	items      map[string]*models.Feedback
	listResult []models.Feedback
	listTotal  int
	deleted    []string
}

func (m *mockFeedbackRepo) List(ctx context.Context, filter models.FeedbackFilter) ([]models.Feedback, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockFeedbackRepo) FindByID(ctx context.Context, id string) (*models.Feedback, error) {
	if entry, ok := m.items[id]; ok {
		cp := *entry
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeedbackRepo) Create(ctx context.Context, entry *models.Feedback) error {
	if m.items == nil {
		m.items = make(map[string]*models.Feedback)
	}
	if entry.ID == "" {
		entry.ID = "generated"
	}
	entry.CreatedAt = time.Now().UTC()
	cp := *entry
	m.items[entry.ID] = &cp
	return nil
}

func (m *mockFeedbackRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

func validFeedbackForm() FeedbackForm {
	return FeedbackForm{
		Name:       "Janet Brown",
		SchoolName: "Papine High School",
		Email:      "janet@example.com",
		Body:       "The tour was informative and the students were wonderful hosts.",
		TripDate:   "2026-06-12",
	}
}

func TestFeedbackServiceSubmit(t *testing.T) {
	repo := &mockFeedbackRepo{}
	svc := NewFeedbackService(repo, nil, zap.NewNop())

	entry, err := svc.Submit(context.Background(), validFeedbackForm())
	require.NoError(t, err)
	assert.Nil(t, entry.VisitID, "intake never associates a visit")
	assert.Equal(t, "Janet Brown", entry.Name)
	assert.Equal(t, "2026-06-12", entry.TripDate.Format("2006-01-02"))
	assert.Len(t, repo.items, 1)
}

func TestFeedbackServiceSubmitLengthBounds(t *testing.T) {
	svc := NewFeedbackService(&mockFeedbackRepo{}, nil, zap.NewNop())

	tests := []struct {
		name      string
		mutate    func(f *FeedbackForm)
		wantField string
	}{
		{"name too short", func(f *FeedbackForm) { f.Name = "Jan" }, "name"},
		{"name too long", func(f *FeedbackForm) { f.Name = strings.Repeat("a", 21) }, "name"},
		{"school name too short", func(f *FeedbackForm) { f.SchoolName = "Papine" }, "school_name"},
		{"school name too long", func(f *FeedbackForm) { f.SchoolName = strings.Repeat("s", 151) }, "school_name"},
		{"invalid email", func(f *FeedbackForm) { f.Email = "janet-at-example" }, "email"},
		{"body too short", func(f *FeedbackForm) { f.Body = "Nice trip." }, "body"},
		{"body too long", func(f *FeedbackForm) { f.Body = strings.Repeat("b", 1501) }, "body"},
		{"missing trip date", func(f *FeedbackForm) { f.TripDate = "" }, "trip_date"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			form := validFeedbackForm()
			tc.mutate(&form)

			_, err := svc.Submit(context.Background(), form)
			require.Error(t, err)

			var appErr *appErrors.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Contains(t, appErr.Fields, tc.wantField)
		})
	}
}

func TestFeedbackServiceSubmitMalformedTripDate(t *testing.T) {
	svc := NewFeedbackService(&mockFeedbackRepo{}, nil, zap.NewNop())

	form := validFeedbackForm()
	form.TripDate = "12/06/2026"

	_, err := svc.Submit(context.Background(), form)
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "YYYY-MM-DD")
}

func TestFeedbackServiceDeleteNotFound(t *testing.T) {
	svc := NewFeedbackService(&mockFeedbackRepo{}, nil, zap.NewNop())

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestFeedbackServiceDelete(t *testing.T) {
	repo := &mockFeedbackRepo{items: map[string]*models.Feedback{"f1": {ID: "f1"}}}
	cache := newMockCache()
	svc := NewFeedbackService(repo, cache, zap.NewNop())

	require.NoError(t, svc.Delete(context.Background(), "f1"))
	assert.Equal(t, []string{"f1"}, repo.deleted)
	assert.Contains(t, cache.deleted, cacheKeyDashboardCounts)
}
