package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/escrow-backend/internal/dto"
	"github.com/ignatzorin/escrow-backend/internal/http/handlers/common"
	"github.com/ignatzorin/escrow-backend/internal/models"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

// WalletHandler депозит и история проводок.
type WalletHandler struct {
	ledger *service.LedgerService
}

func NewWalletHandler(ledger *service.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// GetWallet GET /wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	account, err := h.ledger.GetAccount(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, account)
}

// Deposit POST /wallet/deposits. Повтор с тем же external_reference ничего не меняет.
func (h *WalletHandler) Deposit(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	var req dto.DepositRequest
	if err := common.BindAndValidate(c, &req); err != nil {
		common.RespondAppError(c, err)
		return
	}

	ctx := c.Request.Context()
	tx, applied, err := h.ledger.Deposit(ctx, userID, req.Amount, req.ExternalReference)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	account, err := h.ledger.GetAccount(ctx, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	status := http.StatusOK
	if applied {
		status = http.StatusCreated
	}
	common.RespondJSON(c, status, dto.DepositResponse{Transaction: tx, Applied: applied, Account: account})
}

// ListTransactions GET /wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	txs, err := h.ledger.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, dto.ListResponse[models.LedgerTransaction]{Items: txs, Limit: limit, Offset: offset})
}

// SubjectTransactions GET /admin/subjects/:id/transactions
func (h *WalletHandler) SubjectTransactions(c *gin.Context) {
	subjectID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	txs, err := h.ledger.SubjectTransactions(c.Request.Context(), subjectID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondOK(c, dto.SubjectTransactionsResponse{
		Transactions: txs,
		Held:         service.SubjectBalance(txs).String(),
	})
}
