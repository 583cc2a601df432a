package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordoffice/cdms-api/internal/models"
)

func reportJobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "type", "params", "status", "progress", "result_filename", "result_url",
		"created_by", "created_at", "finished_at", "error_message",
	})
}

func TestReportRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("INSERT INTO report_jobs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Type:      models.ReportTypeByDateRange,
		Params:    models.ReportJobParams{StartDate: "2026-03-01", EndDate: "2026-03-31", Format: models.ReportFormatCSV},
		CreatedBy: "u1",
	}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.False(t, job.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryFindByFilename(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	filename := "summary_by_date_range_20260315_101530.csv"
	params := []byte(`{"startDate":"2026-03-01","endDate":"2026-03-31","format":"csv"}`)
	rows := reportJobRows().
		AddRow("j1", models.ReportTypeByDateRange, params, models.ReportStatusFinished, 100, filename, "/api/v1/reports/export/tok-j1", "u1", time.Now(), time.Now(), nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE result_filename = $1")).
		WithArgs(filename).
		WillReturnRows(rows)

	job, err := repo.FindByFilename(context.Background(), filename)
	require.NoError(t, err)
	assert.Equal(t, "j1", job.ID)
	assert.Equal(t, "2026-03-01", job.Params.StartDate)
	assert.Equal(t, models.ReportFormatCSV, job.Params.Format)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdatePartial(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	status := models.ReportStatusProcessing
	progress := 50
	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $1, progress = $2 WHERE id = $3")).
		WithArgs(status, progress, "j1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Update(context.Background(), "j1", UpdateReportJobParams{Status: &status, Progress: &progress})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryUpdateNoFields(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	// No SET clauses means no round trip at all.
	require.NoError(t, repo.Update(context.Background(), "j1", UpdateReportJobParams{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListQueued(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	params := []byte(`{"format":"pdf"}`)
	rows := reportJobRows().
		AddRow("j2", models.ReportTypeBySchool, params, models.ReportStatusQueued, 0, nil, nil, "u1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("FROM report_jobs WHERE status = 'QUEUED' ORDER BY created_at ASC LIMIT $1")).
		WithArgs(10).
		WillReturnRows(rows)

	jobs, err := repo.ListQueued(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ReportStatusQueued, jobs[0].Status)
	assert.Equal(t, models.ReportFormatPDF, jobs[0].Params.Format)
	assert.NoError(t, mock.ExpectationsWereMet())
}
