package api

import (
	"errors"
	"net/http"

	"offer-wallet-service/internal/ledger"
	"offer-wallet-service/internal/offer"
	"offer-wallet-service/internal/service"
	"offer-wallet-service/internal/store"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError maps domain errors to HTTP responses
func (h *Handler) writeError(c *gin.Context, err error) {
	var insufficient *ledger.InsufficientBalanceError
	var notActive *ledger.WalletNotActiveError

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":     "Insufficient balance",
			"available": insufficient.Available,
			"requested": insufficient.Requested,
		})
	case errors.As(err, &notActive):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "Wallet is not active",
			"status": notActive.Status,
		})
	case errors.Is(err, offer.ErrInvalidOffer),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidSource),
		errors.Is(err, ledger.ErrInvalidStatus),
		errors.Is(err, service.ErrShopRequired):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "Not found",
			"details": err.Error(),
		})
	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "Conflict",
			"details": err.Error(),
		})
	default:
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Internal server error",
		})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
