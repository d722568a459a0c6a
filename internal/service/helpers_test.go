package service

import (
	"context"
	"io"
	"testing"

	"github.com/nithin1018/Village-Banking-App/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTx implements pgx.Tx for testing. It records how the unit ended.
type mockTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (m *mockTx) Rollback(_ context.Context) error {
	if m.committed {
		return pgx.ErrTxClosed
	}
	m.rolledBack = true
	return nil
}

func (m *mockTx) Commit(_ context.Context) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	m.committed = true
	return nil
}

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}
