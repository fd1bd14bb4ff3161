package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagIncrementUpserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFlagRepository(db)

	mock.ExpectExec("INSERT INTO ai_flags .*ON CONFLICT \\(offering_id, student_id\\)").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Increment(context.Background(), "o1", "s1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlagCountFor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFlagRepository(db)

	rows := sqlmock.NewRows([]string{"coalesce"}).AddRow(4)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(MAX(flagged_count), 0) FROM ai_flags WHERE offering_id = $1 AND student_id = $2")).
		WithArgs("o1", "s1").
		WillReturnRows(rows)

	count, err := repo.CountFor(context.Background(), "o1", "s1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFlagCountForUnknownPairIsZero(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewFlagRepository(db)

	rows := sqlmock.NewRows([]string{"coalesce"}).AddRow(0)
	mock.ExpectQuery("SELECT COALESCE\\(MAX\\(flagged_count\\), 0\\) FROM ai_flags").
		WithArgs("o1", "nobody").
		WillReturnRows(rows)

	count, err := repo.CountFor(context.Background(), "o1", "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}
