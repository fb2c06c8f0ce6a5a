// Package offer holds the pure offer rules: data validation, status
// derivation, applicability checks and discount computation. Nothing in
// this package performs I/O.
package offer

import (
	"time"

	"offer-wallet-service/internal/models"
)

// DeriveStatus returns the status an offer must be persisted with at now.
// Draft and disabled offers keep their status.
func DeriveStatus(o *models.Offer, now time.Time) models.OfferStatus {
	if o.Status.Sticky() {
		return o.Status
	}
	switch {
	case now.Before(o.FromDate):
		return models.OfferStatusScheduled
	case now.After(o.ToDate):
		return models.OfferStatusExpired
	default:
		return models.OfferStatusActive
	}
}

// ApplyStatus sets the derived status on the offer and returns it
func ApplyStatus(o *models.Offer, now time.Time) models.OfferStatus {
	o.Status = DeriveStatus(o, now)
	return o.Status
}

// InWindow reports whether now is within [FromDate, ToDate]
func InWindow(o *models.Offer, now time.Time) bool {
	return !now.Before(o.FromDate) && !now.After(o.ToDate)
}
