package api

import (
	"net/http"
	"strconv"

	"offer-wallet-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type walletEntryRequest struct {
	Amount      decimal.Decimal          `json:"amount"`
	Description string                   `json:"description"`
	Source      models.TransactionSource `json:"source"`
	RelatedID   string                   `json:"relatedId"`
	PerformedBy string                   `json:"performedBy"`
}

func (r *walletEntryRequest) toEntry(c *gin.Context) models.WalletEntry {
	return models.WalletEntry{
		Amount:      r.Amount,
		Description: r.Description,
		Source:      r.Source,
		RelatedID:   r.RelatedID,
		PerformedBy: userID(c, r.PerformedBy),
	}
}

type adjustRequest struct {
	Delta       decimal.Decimal `json:"delta"`
	Description string          `json:"description"`
	PerformedBy string          `json:"performedBy"`
}

type statusRequest struct {
	Status models.WalletStatus `json:"status" binding:"required"`
}

// getWallet returns the shop's wallet summary, creating it on first access
func (h *Handler) getWallet(c *gin.Context) {
	w, err := h.walletService.GetOrCreateWallet(c.Request.Context(), c.Param("shopId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	summary := *w
	summary.Transactions = nil
	c.JSON(http.StatusOK, summary)
}

// addCredit handles a wallet credit
func (h *Handler) addCredit(c *gin.Context) {
	var req walletEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.walletService.AddCredit(c.Request.Context(), c.Param("shopId"), req.toEntry(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// deductCredit handles a wallet debit. The source defaults to withdrawal.
func (h *Handler) deductCredit(c *gin.Context) {
	var req walletEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Source == "" {
		req.Source = models.SourceWithdrawal
	}

	result, err := h.walletService.DeductCredit(c.Request.Context(), c.Param("shopId"), req.toEntry(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// adjustBalance handles a signed admin adjustment
func (h *Handler) adjustBalance(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.walletService.AdjustBalance(c.Request.Context(), c.Param("shopId"),
		req.Delta, req.Description, userID(c, req.PerformedBy))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// setWalletStatus handles an admin status change
func (h *Handler) setWalletStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	w, err := h.walletService.SetStatus(c.Request.Context(), c.Param("shopId"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, w)
}

// listTransactions returns a page of the ledger, newest first
func (h *Handler) listTransactions(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		badRequest(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		badRequest(c, err)
		return
	}

	txs, err := h.walletService.Transactions(c.Request.Context(), c.Param("shopId"), limit, offset)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": txs, "count": len(txs)})
}

// verifyWallet replays the ledger against the stored counters
func (h *Handler) verifyWallet(c *gin.Context) {
	report, err := h.walletService.Verify(c.Request.Context(), c.Param("shopId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
