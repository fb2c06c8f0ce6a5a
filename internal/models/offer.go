package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OfferType selects the discount formula
type OfferType string

// Offer types
const (
	OfferTypePercentageDiscount OfferType = "percentage_discount"
	OfferTypeFixedDiscount      OfferType = "fixed_discount"
	OfferTypeBuyXGetY           OfferType = "buy_x_get_y"
	OfferTypeFreeDelivery       OfferType = "free_delivery"
	OfferTypeBundleOffer        OfferType = "bundle_offer"
	OfferTypeCategoryDiscount   OfferType = "category_discount"
)

// Valid reports whether t is a known offer type
func (t OfferType) Valid() bool {
	switch t {
	case OfferTypePercentageDiscount, OfferTypeFixedDiscount, OfferTypeBuyXGetY,
		OfferTypeFreeDelivery, OfferTypeBundleOffer, OfferTypeCategoryDiscount:
		return true
	}
	return false
}

// ApplicableTo is the scope an offer is restricted to
type ApplicableTo string

// Applicability scopes
const (
	ApplicableToAll        ApplicableTo = "all"
	ApplicableToProducts   ApplicableTo = "products"
	ApplicableToCategories ApplicableTo = "categories"
)

// OfferStatus is the lifecycle state of an offer
type OfferStatus string

// Offer statuses
const (
	OfferStatusDraft     OfferStatus = "draft"
	OfferStatusActive    OfferStatus = "active"
	OfferStatusScheduled OfferStatus = "scheduled"
	OfferStatusExpired   OfferStatus = "expired"
	OfferStatusDisabled  OfferStatus = "disabled"
)

// Valid reports whether s is a known offer status
func (s OfferStatus) Valid() bool {
	switch s {
	case OfferStatusDraft, OfferStatusActive, OfferStatusScheduled, OfferStatusExpired, OfferStatusDisabled:
		return true
	}
	return false
}

// Sticky reports whether the status survives date-based derivation
func (s OfferStatus) Sticky() bool {
	return s == OfferStatusDraft || s == OfferStatusDisabled
}

// BundleProduct is one product of a bundle offer
type BundleProduct struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// OfferConditions holds the thresholds and caps of an offer
type OfferConditions struct {
	MinOrderAmount decimal.Decimal     `json:"minOrderAmount"`
	MinQuantity    int                 `json:"minQuantity"`
	MaxUses        *int64              `json:"maxUses,omitempty"`
	MaxUsesPerUser *int64              `json:"maxUsesPerUser,omitempty"`
	BuyQuantity    *int                `json:"buyQuantity,omitempty"`
	GetQuantity    *int                `json:"getQuantity,omitempty"`
	BundleProducts []BundleProduct     `json:"bundleProducts,omitempty"`
	BundlePrice    decimal.NullDecimal `json:"bundlePrice"`
}

// Value stores conditions as a JSON document
func (c OfferConditions) Value() (driver.Value, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads conditions from a JSON document
func (c *OfferConditions) Scan(src interface{}) error {
	return scanJSON(src, c)
}

// UsageRecord is one redemption of an offer
type UsageRecord struct {
	User            string          `json:"user"`
	Order           string          `json:"order"`
	UsedAt          time.Time       `json:"usedAt"`
	DiscountApplied decimal.Decimal `json:"discountApplied"`
}

// OfferUsage is the redemption counter and its audit trail
type OfferUsage struct {
	TotalUses int64         `json:"totalUses"`
	UsedBy    []UsageRecord `json:"usedBy"`
}

// CountForUser returns how many times userID redeemed the offer
func (u OfferUsage) CountForUser(userID string) int64 {
	var n int64
	for _, r := range u.UsedBy {
		if r.User == userID {
			n++
		}
	}
	return n
}

// Offer is a discount rule with a validity window, applicability scope and usage caps
type Offer struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description,omitempty"`
	Code          string              `json:"code,omitempty"`
	OfferType     OfferType           `json:"offerType"`
	DiscountValue decimal.Decimal     `json:"discountValue"`
	MaxDiscount   decimal.NullDecimal `json:"maxDiscount"`
	ApplicableTo  ApplicableTo        `json:"applicableTo"`
	Products      StringList          `json:"products"`
	Categories    StringList          `json:"categories"`
	Conditions    OfferConditions     `json:"conditions"`
	Usage         OfferUsage          `json:"usage"`
	FromDate      time.Time           `json:"fromDate"`
	ToDate        time.Time           `json:"toDate"`
	Status        OfferStatus         `json:"status"`
	IsVisible     bool                `json:"isVisible"`
	Priority      int                 `json:"priority"`
	Stackable     bool                `json:"stackable"`
	CreatedBy     string              `json:"createdBy,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
	Version       int64               `json:"version"`
}

// Clone returns a deep copy of the offer
func (o *Offer) Clone() *Offer {
	c := *o
	c.Products = append(StringList(nil), o.Products...)
	c.Categories = append(StringList(nil), o.Categories...)
	c.Conditions.BundleProducts = append([]BundleProduct(nil), o.Conditions.BundleProducts...)
	c.Usage.UsedBy = append([]UsageRecord(nil), o.Usage.UsedBy...)
	if o.Conditions.MaxUses != nil {
		v := *o.Conditions.MaxUses
		c.Conditions.MaxUses = &v
	}
	if o.Conditions.MaxUsesPerUser != nil {
		v := *o.Conditions.MaxUsesPerUser
		c.Conditions.MaxUsesPerUser = &v
	}
	if o.Conditions.BuyQuantity != nil {
		v := *o.Conditions.BuyQuantity
		c.Conditions.BuyQuantity = &v
	}
	if o.Conditions.GetQuantity != nil {
		v := *o.Conditions.GetQuantity
		c.Conditions.GetQuantity = &v
	}
	return &c
}

// OfferFilter narrows offer listings. Zero fields match everything.
type OfferFilter struct {
	Status       OfferStatus  `form:"status"`
	OfferType    OfferType    `form:"offerType"`
	ApplicableTo ApplicableTo `form:"applicableTo"`
	Code         string       `form:"code"`
	VisibleOnly  bool         `form:"visibleOnly"`
}

// IsZero reports whether the filter matches every offer
func (f OfferFilter) IsZero() bool {
	return f == OfferFilter{}
}

// Matches applies the filter to a single offer
func (f OfferFilter) Matches(o *Offer) bool {
	if f.Status != "" && o.Status != f.Status {
		return false
	}
	if f.OfferType != "" && o.OfferType != f.OfferType {
		return false
	}
	if f.ApplicableTo != "" && o.ApplicableTo != f.ApplicableTo {
		return false
	}
	if f.Code != "" && o.Code != f.Code {
		return false
	}
	if f.VisibleOnly && !o.IsVisible {
		return false
	}
	return true
}

// Evaluation is the outcome of checking an offer against an order.
// Callers must check IsValid before using Discount.
type Evaluation struct {
	IsValid   bool            `json:"isValid"`
	Reason    string          `json:"reason,omitempty"`
	Discount  decimal.Decimal `json:"discount"`
	OfferType OfferType       `json:"offerType,omitempty"`
}

// ApplicableOffer is an offer that passed validation, with its computed discount
type ApplicableOffer struct {
	Offer     *Offer          `json:"offer"`
	Discount  decimal.Decimal `json:"discount"`
	OfferType OfferType       `json:"offerType"`
}

// StringList is a list of ids stored as a JSON array
type StringList []string

// Contains reports whether id is in the list
func (l StringList) Contains(id string) bool {
	for _, v := range l {
		if v == id {
			return true
		}
	}
	return false
}

// Value stores the list as a JSON array
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads the list from a JSON array
func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

func scanJSON(src interface{}, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json source type %T", src)
	}
}
