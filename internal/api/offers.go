package api

import (
	"net/http"
	"time"

	"offer-wallet-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// offerRequest is the editable part of an offer
type offerRequest struct {
	Name          string                 `json:"name"`
	Description   string                 `json:"description"`
	Code          string                 `json:"code"`
	OfferType     models.OfferType       `json:"offerType"`
	DiscountValue decimal.Decimal        `json:"discountValue"` // percentage and category offers accept at most 100
	MaxDiscount   decimal.NullDecimal    `json:"maxDiscount"`
	ApplicableTo  models.ApplicableTo    `json:"applicableTo"`
	Products      []string               `json:"products"`
	Categories    []string               `json:"categories"`
	Conditions    models.OfferConditions `json:"conditions"`
	FromDate      time.Time              `json:"fromDate"`
	ToDate        time.Time              `json:"toDate"`
	Status        models.OfferStatus     `json:"status"`
	IsVisible     *bool                  `json:"isVisible"`
	Priority      int                    `json:"priority"`
	Stackable     bool                   `json:"stackable"`
	CreatedBy     string                 `json:"createdBy"`
	Version       int64                  `json:"version"`
}

func (r *offerRequest) toOffer() *models.Offer {
	visible := true
	if r.IsVisible != nil {
		visible = *r.IsVisible
	}
	return &models.Offer{
		Name:          r.Name,
		Description:   r.Description,
		Code:          r.Code,
		OfferType:     r.OfferType,
		DiscountValue: r.DiscountValue,
		MaxDiscount:   r.MaxDiscount,
		ApplicableTo:  r.ApplicableTo,
		Products:      r.Products,
		Categories:    r.Categories,
		Conditions:    r.Conditions,
		FromDate:      r.FromDate,
		ToDate:        r.ToDate,
		Status:        r.Status,
		IsVisible:     visible,
		Priority:      r.Priority,
		Stackable:     r.Stackable,
		CreatedBy:     r.CreatedBy,
		Version:       r.Version,
	}
}

type evaluationRequest struct {
	Order   models.Order `json:"order"`
	UserID  string       `json:"userId"`
	OrderID string       `json:"orderId"`
}

type usageRequest struct {
	UserID          string          `json:"userId"`
	OrderID         string          `json:"orderId"`
	DiscountApplied decimal.Decimal `json:"discountApplied"`
}

// createOffer handles offer creation
func (h *Handler) createOffer(c *gin.Context) {
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o := req.toOffer()
	if o.CreatedBy == "" {
		o.CreatedBy = c.GetHeader("X-User-ID")
	}

	created, err := h.offerService.CreateOffer(c.Request.Context(), o)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// listOffers handles offer listing with optional filters
func (h *Handler) listOffers(c *gin.Context) {
	var filter models.OfferFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}

	offers, err := h.offerService.ListOffers(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"offers": offers, "count": len(offers)})
}

// getActiveOffers handles the live offer listing
func (h *Handler) getActiveOffers(c *gin.Context) {
	var filter models.OfferFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		badRequest(c, err)
		return
	}

	offers, err := h.offerService.GetActiveOffers(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"offers": offers, "count": len(offers)})
}

// getOffer handles get offer by ID
func (h *Handler) getOffer(c *gin.Context) {
	o, err := h.offerService.GetOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}

// getOfferByCode handles get offer by code
func (h *Handler) getOfferByCode(c *gin.Context) {
	o, err := h.offerService.GetOfferByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}

// updateOffer handles a full replace of the editable offer fields
func (h *Handler) updateOffer(c *gin.Context) {
	var req offerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updated, err := h.offerService.UpdateOffer(c.Request.Context(), c.Param("id"), req.toOffer())
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

// disableOffer handles offer deletion, which only disables and hides it
func (h *Handler) disableOffer(c *gin.Context) {
	o, err := h.offerService.DisableOffer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}

// validateOffer evaluates an offer against an order
func (h *Handler) validateOffer(c *gin.Context) {
	var req evaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	eval, err := h.offerService.IsValidForOrder(c.Request.Context(), c.Param("id"), req.Order, userID(c, req.UserID))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, eval)
}

// findApplicableOffers ranks every active offer for an order
func (h *Handler) findApplicableOffers(c *gin.Context) {
	var req evaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	applicable, err := h.offerService.FindApplicableOffers(c.Request.Context(), req.Order, userID(c, req.UserID))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"offers": applicable, "count": len(applicable)})
}

// recordUsage appends a redemption after the caller committed its order
func (h *Handler) recordUsage(c *gin.Context) {
	var req usageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	o, err := h.offerService.RecordUsage(c.Request.Context(), c.Param("id"),
		userID(c, req.UserID), req.OrderID, req.DiscountApplied)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, o)
}

// getUserUsage returns how often the user redeemed the offer
func (h *Handler) getUserUsage(c *gin.Context) {
	user := userID(c, c.Query("userId"))
	count, err := h.offerService.UserUsageCount(c.Request.Context(), c.Param("id"), user)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"userId": user, "count": count})
}

// redeemOffer validates and records usage in one step
func (h *Handler) redeemOffer(c *gin.Context) {
	var req evaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.offerService.Redeem(c.Request.Context(), c.Param("id"), req.Order,
		userID(c, req.UserID), req.OrderID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	status := http.StatusOK
	if !result.Evaluation.IsValid {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, result)
}
