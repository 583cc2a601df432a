package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordoffice/cdms-api/internal/models"
	"github.com/coordoffice/cdms-api/internal/service"
)

type fakeVisitRepo struct {
	visits map[string]*models.Visit
	taken  map[string]bool
}

func newFakeVisitRepo() *fakeVisitRepo {
	return &fakeVisitRepo{visits: map[string]*models.Visit{}, taken: map[string]bool{}}
}

func slotKey(date time.Time, timeSlot string) string {
	return date.Format("2006-01-02") + "|" + timeSlot
}

func (f *fakeVisitRepo) List(context.Context, models.VisitFilter) ([]models.Visit, int, error) {
	out := make([]models.Visit, 0, len(f.visits))
	for _, v := range f.visits {
		out = append(out, *v)
	}
	return out, len(out), nil
}

func (f *fakeVisitRepo) FindByID(_ context.Context, id string) (*models.Visit, error) {
	visit, ok := f.visits[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return visit, nil
}

func (f *fakeVisitRepo) SlotTaken(_ context.Context, date time.Time, timeSlot string) (bool, error) {
	return f.taken[slotKey(date, timeSlot)], nil
}

func (f *fakeVisitRepo) Create(_ context.Context, visit *models.Visit) error {
	visit.ID = "v1"
	visit.Status = models.VisitStatusScheduled
	f.visits[visit.ID] = visit
	f.taken[slotKey(visit.VisitDate, visit.VisitTime)] = true
	return nil
}

func (f *fakeVisitRepo) UpdateStatus(_ context.Context, id string, status models.VisitStatus) error {
	if v, ok := f.visits[id]; ok {
		v.Status = status
	}
	return nil
}

func (f *fakeVisitRepo) Delete(_ context.Context, id string) error {
	delete(f.visits, id)
	return nil
}

type fakeSchoolLookup struct {
	ids map[string]bool
}

func (f *fakeSchoolLookup) FindByID(_ context.Context, id string) (*models.School, error) {
	if !f.ids[id] {
		return nil, sql.ErrNoRows
	}
	return &models.School{ID: id, Name: "Alpha Primary School"}, nil
}

func newVisitHandler(repo *fakeVisitRepo) *VisitHandler {
	visits := service.NewVisitService(repo, &fakeSchoolLookup{ids: map[string]bool{"s1": true}}, nil, nil)
	return NewVisitHandler(visits)
}

func scheduleRequest(t *testing.T, handler *VisitHandler, payload map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/visits", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Schedule(c)
	return rec
}

func TestVisitHandlerScheduleSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newVisitHandler(newFakeVisitRepo())

	rec := scheduleRequest(t, handler, map[string]string{
		"school_id":  "s1",
		"visit_date": "2026-03-10",
		"visit_time": "09:00",
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data models.Visit `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "v1", envelope.Data.ID)
	assert.Equal(t, models.VisitStatusScheduled, envelope.Data.Status)
}

func TestVisitHandlerScheduleSlotConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeVisitRepo()
	handler := newVisitHandler(repo)

	rec := scheduleRequest(t, handler, map[string]string{
		"school_id":  "s1",
		"visit_date": "2026-03-10",
		"visit_time": "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = scheduleRequest(t, handler, map[string]string{
		"school_id":  "s1",
		"visit_date": "2026-03-10",
		"visit_time": "09:00",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "CONFLICT", envelope.Error.Code)
	assert.Contains(t, envelope.Error.Message, "2026-03-10")
	assert.Contains(t, envelope.Error.Message, "09:00")
}

func TestVisitHandlerScheduleMissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newVisitHandler(newFakeVisitRepo())

	rec := scheduleRequest(t, handler, map[string]string{"visit_time": "09:00"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "school_id")
	assert.Contains(t, rec.Body.String(), "visit_date")
}

func TestVisitHandlerUpdateStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := newFakeVisitRepo()
	handler := newVisitHandler(repo)

	rec := scheduleRequest(t, handler, map[string]string{
		"school_id":  "s1",
		"visit_date": "2026-03-10",
		"visit_time": "09:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	body := []byte(`{"status":"completed"}`)
	rec = httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPatch, "/visits/v1/status", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: "v1"}}

	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.VisitStatusCompleted, repo.visits["v1"].Status)
}

func TestVisitHandlerCancelNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newVisitHandler(newFakeVisitRepo())

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodDelete, "/visits/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Cancel(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
