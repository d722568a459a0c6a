package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	userID := uuid.New()
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       domain.AuditActionTransaction,
		ResourceType: "transaction",
		IPAddress:    "10.0.0.1",
		CreatedAt:    time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, entry.UserID, "TRANSACTION", entry.ResourceType,
			entry.ResourceID, entry.Details, entry.IPAddress, entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(errors.New("relation does not exist"))

	err = repo.Create(context.Background(), &domain.AuditLog{ID: uuid.New(), Action: domain.AuditActionLogin})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit log")
}
