package handler

import (
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/dto"
	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/middleware"
	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"
	"github.com/nithin1018/Village-Banking-App/pkg/response"

	"github.com/gin-gonic/gin"
)

// AccountHandler serves the caller's own account.
type AccountHandler struct {
	accountSvc ports.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountSvc ports.AccountService) *AccountHandler {
	return &AccountHandler{accountSvc: accountSvc}
}

// Me handles GET /api/v1/accounts/me.
func (h *AccountHandler) Me(c *gin.Context) {
	acc, ok := h.ownAccount(c)
	if !ok {
		return
	}

	response.OK(c, dto.AccountResponse{
		AccountNumber: acc.AccountNumber,
		Balance:       acc.Balance.StringFixed(2),
	})
}

// Transactions handles GET /api/v1/accounts/me/transactions.
func (h *AccountHandler) Transactions(c *gin.Context) {
	acc, ok := h.ownAccount(c)
	if !ok {
		return
	}

	txns, err := h.accountSvc.History(c.Request.Context(), acc.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i], acc.ID))
	}
	response.OK(c, dto.TransactionListResponse{Items: items, Count: len(items)})
}

func (h *AccountHandler) ownAccount(c *gin.Context) (*domain.Account, bool) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return nil, false
	}
	acc, err := h.accountSvc.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return nil, false
	}
	return acc, true
}

// toTransactionResponse renders t from the point of view of accountID.
func toTransactionResponse(t *domain.Transaction, accountID int64) dto.TransactionResponse {
	direction := "credit"
	if t.SenderID != nil && *t.SenderID == accountID {
		direction = "debit"
	}
	return dto.TransactionResponse{
		ID:              t.ID,
		TransactionType: string(t.Type),
		Direction:       direction,
		Amount:          t.Amount.StringFixed(2),
		Status:          string(t.Status),
		Description:     t.Description,
		Timestamp:       t.Timestamp.UTC().Format(time.RFC3339),
	}
}
