package offer

import (
	"time"

	"offer-wallet-service/internal/models"

	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func int64Ptr(n int64) *int64 {
	return &n
}

func activeOffer(t models.OfferType, value string) *models.Offer {
	return &models.Offer{
		ID:            "offer-1",
		Name:          "test offer",
		OfferType:     t,
		DiscountValue: dec(value),
		ApplicableTo:  models.ApplicableToAll,
		FromDate:      testNow.Add(-24 * time.Hour),
		ToDate:        testNow.Add(24 * time.Hour),
		Status:        models.OfferStatusActive,
		IsVisible:     true,
	}
}

func orderOf(total string) models.Order {
	return models.Order{TotalPrice: dec(total)}
}
