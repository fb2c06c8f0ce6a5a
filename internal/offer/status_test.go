package offer

import (
	"testing"
	"time"

	"offer-wallet-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	o := activeOffer(models.OfferTypeFixedDiscount, "10")

	tests := []struct {
		name string
		now  time.Time
		want models.OfferStatus
	}{
		{"before window", o.FromDate.Add(-time.Second), models.OfferStatusScheduled},
		{"at start", o.FromDate, models.OfferStatusActive},
		{"inside window", testNow, models.OfferStatusActive},
		{"at end", o.ToDate, models.OfferStatusActive},
		{"after window", o.ToDate.Add(time.Second), models.OfferStatusExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(o, tt.now))
		})
	}
}

func TestDeriveStatusStickyStates(t *testing.T) {
	for _, status := range []models.OfferStatus{models.OfferStatusDraft, models.OfferStatusDisabled} {
		o := activeOffer(models.OfferTypeFixedDiscount, "10")
		o.Status = status

		assert.Equal(t, status, DeriveStatus(o, testNow))
		assert.Equal(t, status, DeriveStatus(o, o.ToDate.Add(time.Hour)))
		assert.Equal(t, status, DeriveStatus(o, o.FromDate.Add(-time.Hour)))
	}
}

func TestApplyStatusIsIdempotent(t *testing.T) {
	o := activeOffer(models.OfferTypeFixedDiscount, "10")
	o.Status = models.OfferStatusScheduled

	first := ApplyStatus(o, testNow)
	second := ApplyStatus(o, testNow)

	assert.Equal(t, models.OfferStatusActive, first)
	assert.Equal(t, first, second)
}

func TestExpiredOfferMovesBackWhenWindowExtended(t *testing.T) {
	o := activeOffer(models.OfferTypeFixedDiscount, "10")
	o.Status = models.OfferStatusExpired

	assert.Equal(t, models.OfferStatusActive, ApplyStatus(o, testNow))
}
