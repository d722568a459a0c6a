package handler

import (
	"strconv"
	"time"

	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/dto"
	"github.com/nithin1018/Village-Banking-App/internal/adapter/http/middleware"
	"github.com/nithin1018/Village-Banking-App/internal/core/domain"
	"github.com/nithin1018/Village-Banking-App/internal/core/ports"
	"github.com/nithin1018/Village-Banking-App/pkg/apperror"
	"github.com/nithin1018/Village-Banking-App/pkg/response"

	"github.com/gin-gonic/gin"
)

// TransactionHandler handles money movements initiated by the caller.
type TransactionHandler struct {
	accountSvc ports.AccountService
	ledgerSvc  ports.LedgerService
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(accountSvc ports.AccountService, ledgerSvc ports.LedgerService) *TransactionHandler {
	return &TransactionHandler{accountSvc: accountSvc, ledgerSvc: ledgerSvc}
}

// Create handles POST /api/v1/transactions. Withdrawals and deposits act on
// the caller's account; transfers move money from it to receiver_account_number.
func (h *TransactionHandler) Create(c *gin.Context) {
	userID, ok := middleware.UserIDFrom(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.TransactionRequest
	if err := bindJSON(c, &req); err != nil {
		response.Error(c, err)
		return
	}

	ctx := c.Request.Context()
	own, err := h.accountSvc.GetByUserID(ctx, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	op := ports.Operation{
		Type:        domain.TransactionType(req.TransactionType),
		AccountID:   own.ID,
		Amount:      req.Amount,
		Description: req.Description,
	}

	if op.Type == domain.TransactionTypeTransfer {
		if req.ReceiverAccountNumber == "" {
			response.Error(c, apperror.ErrReceiverRequired())
			return
		}
		if req.ReceiverAccountNumber == own.AccountNumber {
			response.Error(c, apperror.ErrSelfTransfer())
			return
		}
		receiver, err := h.accountSvc.GetByAccountNumber(ctx, req.ReceiverAccountNumber)
		if err != nil {
			response.Error(c, err)
			return
		}
		op.CounterpartyID = receiver.ID
	}

	txn, err := h.ledgerSvc.Execute(ctx, op)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Set(middleware.CtxAuditResource, strconv.FormatInt(txn.ID, 10))
	response.Created(c, dto.TransactionResult{
		Status:    string(txn.Status),
		Timestamp: txn.Timestamp.UTC().Format(time.RFC3339),
	})
}
