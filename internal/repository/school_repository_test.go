package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coordoffice/cdms-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func schoolRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "address", "contact_person", "contact_phone", "contact_email",
		"location", "capacity", "num_teachers", "start_time", "end_time",
		"exam_dates", "holidays", "created_at", "updated_at",
	})
}

func TestSchoolRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	rows := schoolRows().
		AddRow("s1", "Alpha Primary School", "26 South Camp Road", "Mrs. Spencer", "", "", "", 370, nil, "", "", "", "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+schoolColumns+" FROM schools WHERE 1=1 ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schools WHERE 1=1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.SchoolFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, total)
	require.NotNil(t, list[0].Capacity)
	assert.Equal(t, 370, *list[0].Capacity)
	assert.Nil(t, list[0].NumTeachers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryListSearch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("AND LOWER(name) LIKE $1 ORDER BY name ASC")).
		WithArgs("%alpha%").
		WillReturnRows(schoolRows())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM schools WHERE 1=1 AND LOWER(name) LIKE $1")).
		WithArgs("%alpha%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	list, total, err := repo.List(context.Background(), models.SchoolFilter{Search: "Alpha"})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryExistsByName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM schools WHERE LOWER(name) = LOWER($1) LIMIT 1")).
		WithArgs("Campion College").
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	exists, err := repo.ExistsByName(context.Background(), "Campion College", "")
	require.NoError(t, err)
	assert.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM schools WHERE LOWER(name) = LOWER($1) AND id <> $2 LIMIT 1")).
		WithArgs("Campion College", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	exists, err = repo.ExistsByName(context.Background(), "Campion College", "s1")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectExec("INSERT INTO schools").
		WillReturnResult(sqlmock.NewResult(1, 1))

	school := &models.School{Name: "Papine High School", Address: "160 Old Hope Road", ContactPerson: "Mr. McLeod"}
	require.NoError(t, repo.Create(context.Background(), school))
	assert.NotEmpty(t, school.ID)
	assert.False(t, school.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryCreateNameTaken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectExec("INSERT INTO schools").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_schools_name_lower"})

	school := &models.School{Name: "Papine High School", Address: "160 Old Hope Road", ContactPerson: "Mr. McLeod"}
	err := repo.Create(context.Background(), school)
	assert.ErrorIs(t, err, ErrNameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryUpdateNameTaken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectExec("UPDATE schools").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "idx_schools_name_lower"})

	school := &models.School{ID: "s1", Name: "Campion College", Address: "105 Hope Road", ContactPerson: "Mrs. Henry"}
	err := repo.Update(context.Background(), school)
	assert.ErrorIs(t, err, ErrNameTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryCountVisits(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM visits WHERE school_id = $1")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	count, err := repo.CountVisits(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolRepositoryListNames(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM schools ORDER BY name ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Alpha Primary School").AddRow("Campion College"))

	names, err := repo.ListNames(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha Primary School", "Campion College"}, names)
	assert.NoError(t, mock.ExpectationsWereMet())
}
