package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coordoffice/cdms-api/internal/models"
	"github.com/coordoffice/cdms-api/internal/repository"
	appErrors "github.com/coordoffice/cdms-api/pkg/errors"
)

type mockVisitRepo struct {
	items      map[string]*models.Visit
	taken      map[string]bool
	createErr  error
	listResult []models.Visit
	listTotal  int
	statuses   map[string]models.VisitStatus
	deleted    []string
}

func slotKey(date time.Time, timeSlot string) string {
	return date.Format("2006-01-02") + "|" + timeSlot
}

func (m *mockVisitRepo) List(ctx context.Context, filter models.VisitFilter) ([]models.Visit, int, error) {
	return m.listResult, m.listTotal, nil
}

func (m *mockVisitRepo) FindByID(ctx context.Context, id string) (*models.Visit, error) {
	if visit, ok := m.items[id]; ok {
		cp := *visit
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockVisitRepo) SlotTaken(ctx context.Context, date time.Time, timeSlot string) (bool, error) {
	return m.taken[slotKey(date, timeSlot)], nil
}

func (m *mockVisitRepo) Create(ctx context.Context, visit *models.Visit) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.items == nil {
		m.items = make(map[string]*models.Visit)
	}
	if visit.ID == "" {
		visit.ID = "generated"
	}
	cp := *visit
	m.items[visit.ID] = &cp
	return nil
}

func (m *mockVisitRepo) UpdateStatus(ctx context.Context, id string, status models.VisitStatus) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.VisitStatus)
	}
	m.statuses[id] = status
	if visit, ok := m.items[id]; ok {
		visit.Status = status
	}
	return nil
}

func (m *mockVisitRepo) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.items, id)
	return nil
}

type mockSchoolLookup struct {
	ids map[string]bool
}

func (m *mockSchoolLookup) FindByID(ctx context.Context, id string) (*models.School, error) {
	if m.ids[id] {
		return &models.School{ID: id, Name: "Some School"}, nil
	}
	return nil, sql.ErrNoRows
}

func validVisitForm() VisitForm {
	return VisitForm{SchoolID: "s1", VisitDate: "2026-09-15", VisitTime: "9:00"}
}

func newVisitService(repo *mockVisitRepo, schools *mockSchoolLookup) *VisitService {
	if schools == nil {
		schools = &mockSchoolLookup{ids: map[string]bool{"s1": true}}
	}
	return NewVisitService(repo, schools, nil, zap.NewNop())
}

func TestVisitServiceScheduleSuccess(t *testing.T) {
	repo := &mockVisitRepo{}
	svc := newVisitService(repo, nil)

	visit, err := svc.Schedule(context.Background(), validVisitForm())
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusScheduled, visit.Status)
	assert.Equal(t, "9:00", visit.VisitTime)
	assert.Equal(t, "2026-09-15", visit.VisitDate.Format("2006-01-02"))
	assert.Len(t, repo.items, 1)
}

func TestVisitServiceScheduleMissingFields(t *testing.T) {
	svc := newVisitService(&mockVisitRepo{}, nil)

	_, err := svc.Schedule(context.Background(), VisitForm{VisitTime: "9:00"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "school_id")
	assert.Contains(t, appErr.Message, "visit_date")
	assert.NotContains(t, appErr.Message, "visit_time")
}

func TestVisitServiceScheduleMalformedDate(t *testing.T) {
	svc := newVisitService(&mockVisitRepo{}, nil)

	for _, raw := range []string{"15-09-2026", "2026/09/15", "not-a-date", "2026-13-40"} {
		_, err := svc.Schedule(context.Background(), VisitForm{SchoolID: "s1", VisitDate: raw, VisitTime: "9:00"})
		require.Error(t, err, raw)

		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
		assert.Contains(t, appErr.Message, "YYYY-MM-DD")
	}
}

func TestVisitServiceScheduleUnknownSchool(t *testing.T) {
	svc := newVisitService(&mockVisitRepo{}, &mockSchoolLookup{ids: map[string]bool{}})

	_, err := svc.Schedule(context.Background(), validVisitForm())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "school does not exist")
}

func TestVisitServiceScheduleSlotTaken(t *testing.T) {
	date, _ := time.Parse("2006-01-02", "2026-09-15")
	repo := &mockVisitRepo{taken: map[string]bool{slotKey(date, "9:00"): true}}
	svc := newVisitService(repo, nil)

	_, err := svc.Schedule(context.Background(), validVisitForm())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "2026-09-15")
	assert.Contains(t, appErr.Message, "9:00")
}

func TestVisitServiceScheduleSlotTakenOnInsert(t *testing.T) {
	// A concurrent writer can slip past the pre-check; the constraint error
	// must still surface as the same conflict.
	repo := &mockVisitRepo{createErr: repository.ErrSlotTaken}
	svc := newVisitService(repo, nil)

	_, err := svc.Schedule(context.Background(), validVisitForm())
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestVisitServiceScheduleSameDateDifferentTime(t *testing.T) {
	date, _ := time.Parse("2006-01-02", "2026-09-15")
	repo := &mockVisitRepo{taken: map[string]bool{slotKey(date, "9:00"): true}}
	svc := newVisitService(repo, nil)

	visit, err := svc.Schedule(context.Background(), VisitForm{SchoolID: "s1", VisitDate: "2026-09-15", VisitTime: "13:00"})
	require.NoError(t, err)
	assert.Equal(t, "13:00", visit.VisitTime)
}

func TestVisitServiceUpdateStatus(t *testing.T) {
	repo := &mockVisitRepo{items: map[string]*models.Visit{
		"v1": {ID: "v1", SchoolID: "s1", Status: models.VisitStatusScheduled},
	}}
	svc := newVisitService(repo, nil)

	visit, err := svc.UpdateStatus(context.Background(), "v1", "completed")
	require.NoError(t, err)
	assert.Equal(t, models.VisitStatusCompleted, visit.Status)
}

func TestVisitServiceUpdateStatusInvalid(t *testing.T) {
	svc := newVisitService(&mockVisitRepo{}, nil)

	_, err := svc.UpdateStatus(context.Background(), "v1", "DONE")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestVisitServiceCancelNotFound(t *testing.T) {
	svc := newVisitService(&mockVisitRepo{}, nil)

	err := svc.Cancel(context.Background(), "missing")
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestVisitServiceListRejectsMalformedBounds(t *testing.T) {
	svc := newVisitService(&mockVisitRepo{}, nil)

	_, _, err := svc.List(context.Background(), VisitListQuery{DateFrom: "09/15/2026"})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "date_from")
}

func TestVisitServiceListRejectsUnknownStatus(t *testing.T) {
	svc := newVisitService(&mockVisitRepo{}, nil)

	_, _, err := svc.List(context.Background(), VisitListQuery{Status: "PENDING"})
	require.Error(t, err)
}
