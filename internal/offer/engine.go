package offer

import (
	"fmt"
	"sort"
	"time"

	"offer-wallet-service/internal/models"

	"github.com/shopspring/decimal"
)

// Rejection reasons returned to callers
const (
	ReasonNotCurrentlyValid = "Offer is not currently valid"
	ReasonUsageLimitReached = "Offer usage limit reached"
	ReasonUserLimitReached  = "You have reached your usage limit for this offer"
	ReasonNotApplicable     = "Offer does not apply to items in your cart"
)

func reasonStatus(status models.OfferStatus) string {
	return fmt.Sprintf("Offer is %s", status)
}

func reasonMinOrder(min decimal.Decimal) string {
	return fmt.Sprintf("Minimum order amount of %s required", min.String())
}

func reject(reason string) models.Evaluation {
	return models.Evaluation{IsValid: false, Reason: reason}
}

// IsValidForOrder checks an offer against an order placed by userID at now.
// Rejections are returned as data. Status is re-derived so a status persisted
// before the window moved never gates the order.
func IsValidForOrder(o *models.Offer, order models.Order, userID string, now time.Time) models.Evaluation {
	if status := DeriveStatus(o, now); status != models.OfferStatusActive {
		return reject(reasonStatus(status))
	}
	if !InWindow(o, now) {
		return reject(ReasonNotCurrentlyValid)
	}

	c := o.Conditions
	if c.MinOrderAmount.IsPositive() && order.TotalPrice.LessThan(c.MinOrderAmount) {
		return reject(reasonMinOrder(c.MinOrderAmount))
	}
	if c.MaxUses != nil && o.Usage.TotalUses >= *c.MaxUses {
		return reject(ReasonUsageLimitReached)
	}
	if c.MaxUsesPerUser != nil && o.Usage.CountForUser(userID) >= *c.MaxUsesPerUser {
		return reject(ReasonUserLimitReached)
	}

	// categories scope is intentionally not checked here
	if o.ApplicableTo == models.ApplicableToProducts && len(o.Products) > 0 && !orderHasProduct(order, o.Products) {
		return reject(ReasonNotApplicable)
	}

	return models.Evaluation{
		IsValid:   true,
		Discount:  ComputeDiscount(o, order),
		OfferType: o.OfferType,
	}
}

func orderHasProduct(order models.Order, products models.StringList) bool {
	for _, line := range order.Products {
		if products.Contains(line.Product) {
			return true
		}
	}
	return false
}

// ComputeDiscount applies the offer type's formula, rounded to cents
func ComputeDiscount(o *models.Offer, order models.Order) decimal.Decimal {
	var discount decimal.Decimal

	switch o.OfferType {
	case models.OfferTypePercentageDiscount, models.OfferTypeCategoryDiscount:
		discount = percentageOf(order.TotalPrice, o.DiscountValue)
		if o.MaxDiscount.Valid && discount.GreaterThan(o.MaxDiscount.Decimal) {
			discount = o.MaxDiscount.Decimal
		}
	case models.OfferTypeFixedDiscount:
		discount = decimal.Min(o.DiscountValue, order.TotalPrice)
	case models.OfferTypeFreeDelivery:
		discount = order.DeliveryFee
	case models.OfferTypeBuyXGetY:
		// flat value, not a per-line calculation
		discount = o.DiscountValue
	case models.OfferTypeBundleOffer:
		if o.Conditions.BundlePrice.Valid {
			discount = decimal.Max(decimal.Zero, order.TotalPrice.Sub(o.Conditions.BundlePrice.Decimal))
		}
	}

	return RoundMoney(discount)
}

func percentageOf(amount, percent decimal.Decimal) decimal.Decimal {
	return amount.Mul(percent).Div(hundred)
}

// RoundMoney rounds to 2 decimal places, half away from zero
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Rank evaluates every offer and returns the valid ones, highest discount first.
// Offers with equal discounts keep their input order.
func Rank(offers []*models.Offer, order models.Order, userID string, now time.Time) []models.ApplicableOffer {
	result := make([]models.ApplicableOffer, 0, len(offers))
	for _, o := range offers {
		eval := IsValidForOrder(o, order, userID, now)
		if !eval.IsValid {
			continue
		}
		result = append(result, models.ApplicableOffer{
			Offer:     o,
			Discount:  eval.Discount,
			OfferType: eval.OfferType,
		})
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Discount.GreaterThan(result[j].Discount)
	})
	return result
}

// SortActive orders offers by priority descending, then newest first
func SortActive(offers []*models.Offer) {
	sort.SliceStable(offers, func(i, j int) bool {
		if offers[i].Priority != offers[j].Priority {
			return offers[i].Priority > offers[j].Priority
		}
		return offers[i].CreatedAt.After(offers[j].CreatedAt)
	})
}

// IsActiveAt reports whether an offer is listed as active at now
func IsActiveAt(o *models.Offer, now time.Time) bool {
	return o.IsVisible && DeriveStatus(o, now) == models.OfferStatusActive && InWindow(o, now)
}

// AppendUsage records one redemption on the offer and re-derives its status
func AppendUsage(o *models.Offer, userID, orderID string, discount decimal.Decimal, now time.Time) {
	o.Usage.TotalUses++
	o.Usage.UsedBy = append(o.Usage.UsedBy, models.UsageRecord{
		User:            userID,
		Order:           orderID,
		UsedAt:          now,
		DiscountApplied: RoundMoney(discount),
	})
	o.UpdatedAt = now
	ApplyStatus(o, now)
}
