package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactor_Begin_SetsLockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET LOCAL lock_timeout = '1500ms'")).
		WillReturnResult(pgxmock.NewResult("SET", 0))

	tx, err := NewTransactor(mock, 1500*time.Millisecond).Begin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Begin_NoLockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()

	tx, err := NewTransactor(mock, 0).Begin(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, tx)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_Begin_SetFails(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec("SET LOCAL lock_timeout").WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	tx, err := NewTransactor(mock, time.Second).Begin(context.Background())
	assert.Nil(t, tx)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "set lock timeout")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	h := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", h.Name())
	assert.NoError(t, h.Ping(context.Background()))
}
