package offer

import (
	"errors"
	"fmt"
	"strings"

	"offer-wallet-service/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInvalidOffer is returned for offer data that violates the model rules
var ErrInvalidOffer = errors.New("invalid offer")

var hundred = decimal.NewFromInt(100)

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidOffer, fmt.Sprintf(format, args...))
}

// Normalize fills defaults and canonicalizes the code before validation
func Normalize(o *models.Offer) {
	o.Name = strings.TrimSpace(o.Name)
	o.Code = strings.ToUpper(strings.TrimSpace(o.Code))
	if o.ApplicableTo == "" {
		o.ApplicableTo = models.ApplicableToAll
	}
	if o.Status == "" {
		o.Status = models.OfferStatusDraft
	}
	if o.Products == nil {
		o.Products = models.StringList{}
	}
	if o.Categories == nil {
		o.Categories = models.StringList{}
	}
}

// Validate checks the data rules of an offer
func Validate(o *models.Offer) error {
	if o.Name == "" {
		return invalid("name is required")
	}
	if !o.OfferType.Valid() {
		return invalid("unknown offerType %q", o.OfferType)
	}
	if !o.Status.Valid() {
		return invalid("unknown status %q", o.Status)
	}
	if o.DiscountValue.IsNegative() {
		return invalid("discountValue must not be negative")
	}
	switch o.OfferType {
	case models.OfferTypePercentageDiscount, models.OfferTypeCategoryDiscount:
		if o.DiscountValue.IsZero() {
			return invalid("discountValue is required for %s", o.OfferType)
		}
		if o.DiscountValue.GreaterThan(hundred) {
			return invalid("discountValue must not exceed 100 for %s", o.OfferType)
		}
	case models.OfferTypeFixedDiscount:
		if o.DiscountValue.IsZero() {
			return invalid("discountValue is required for %s", o.OfferType)
		}
	case models.OfferTypeBundleOffer:
		if o.Conditions.BundlePrice.Valid && o.Conditions.BundlePrice.Decimal.IsNegative() {
			return invalid("bundlePrice must not be negative")
		}
		for _, p := range o.Conditions.BundleProducts {
			if p.Product == "" || p.Quantity < 1 {
				return invalid("bundleProducts entries need a product and a positive quantity")
			}
		}
	}
	if o.MaxDiscount.Valid && o.MaxDiscount.Decimal.IsNegative() {
		return invalid("maxDiscount must not be negative")
	}

	switch o.ApplicableTo {
	case models.ApplicableToAll:
	case models.ApplicableToProducts:
		if len(o.Products) == 0 {
			return invalid("products are required when applicableTo is products")
		}
	case models.ApplicableToCategories:
		if len(o.Categories) == 0 {
			return invalid("categories are required when applicableTo is categories")
		}
	default:
		return invalid("unknown applicableTo %q", o.ApplicableTo)
	}

	c := o.Conditions
	if c.MinOrderAmount.IsNegative() {
		return invalid("minOrderAmount must not be negative")
	}
	if c.MinQuantity < 0 {
		return invalid("minQuantity must not be negative")
	}
	if c.MaxUses != nil && *c.MaxUses < 0 {
		return invalid("maxUses must not be negative")
	}
	if c.MaxUsesPerUser != nil && *c.MaxUsesPerUser < 0 {
		return invalid("maxUsesPerUser must not be negative")
	}

	if o.FromDate.IsZero() || o.ToDate.IsZero() {
		return invalid("fromDate and toDate are required")
	}
	if !o.ToDate.After(o.FromDate) {
		return invalid("toDate must be after fromDate")
	}
	return nil
}
