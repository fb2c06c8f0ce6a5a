package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"offer-wallet-service/internal/models"
	"offer-wallet-service/internal/offer"
	"offer-wallet-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OfferService handles offer administration, evaluation and redemption
type OfferService struct {
	offers        OfferRepository
	cache         OfferCache
	publisher     EventPublisher
	retryAttempts int
	logger        *zap.Logger
	now           func() time.Time
}

// NewOfferService creates a new offer service. cache and publisher may be nil.
func NewOfferService(
	offers OfferRepository,
	cache OfferCache,
	publisher EventPublisher,
	retryAttempts int,
) *OfferService {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	return &OfferService{
		offers:        offers,
		cache:         cache,
		publisher:     publisher,
		retryAttempts: retryAttempts,
		logger:        util.GetLogger(),
		now:           time.Now,
	}
}

// RedeemResult is the outcome of a redemption. Offer is set only when usage
// was recorded.
type RedeemResult struct {
	Evaluation models.Evaluation `json:"evaluation"`
	Offer      *models.Offer     `json:"offer,omitempty"`
}

// CreateOffer validates and stores a new offer. New offers are drafts unless a
// status is given, and start with no usage.
func (s *OfferService) CreateOffer(ctx context.Context, o *models.Offer) (*models.Offer, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.CreateOffer")
	defer span.End()

	offer.Normalize(o)
	if err := offer.Validate(o); err != nil {
		return nil, err
	}

	now := s.now()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Usage = models.OfferUsage{}
	o.CreatedAt = now
	o.UpdatedAt = now
	offer.ApplyStatus(o, now)

	if err := s.offers.CreateOffer(ctx, o); err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.invalidateCache(ctx)
	s.logger.Info("Offer created",
		zap.String("offer_id", o.ID),
		zap.String("code", o.Code),
		zap.String("status", string(o.Status)))
	return o, nil
}

// GetOffer retrieves an offer by id
func (s *OfferService) GetOffer(ctx context.Context, id string) (*models.Offer, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.GetOffer")
	defer span.End()

	return s.offers.GetOffer(ctx, id)
}

// GetOfferByCode retrieves an offer by its code, case-insensitively
func (s *OfferService) GetOfferByCode(ctx context.Context, code string) (*models.Offer, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.GetOfferByCode")
	defer span.End()

	return s.offers.GetOfferByCode(ctx, strings.TrimSpace(code))
}

// ListOffers returns every offer matching the filter
func (s *OfferService) ListOffers(ctx context.Context, filter models.OfferFilter) ([]*models.Offer, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.ListOffers")
	defer span.End()

	filter.Code = strings.ToUpper(strings.TrimSpace(filter.Code))
	return s.offers.ListOffers(ctx, filter)
}

// UpdateOffer replaces the editable fields of an offer. A non-zero
// update.Version must match the stored one; otherwise the latest revision is
// edited and conflicts are retried.
func (s *OfferService) UpdateOffer(ctx context.Context, id string, update *models.Offer) (*models.Offer, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.UpdateOffer", attribute.String("offer_id", id))
	defer span.End()

	attempts := s.retryAttempts
	if update.Version != 0 {
		attempts = 1
	}

	var updated *models.Offer
	err := retryOnConflict(ctx, attempts, "update_offer", func() error {
		current, err := s.offers.GetOffer(ctx, id)
		if err != nil {
			return err
		}
		if update.Version != 0 {
			current.Version = update.Version
		}

		applyEdits(current, update)
		offer.Normalize(current)
		if err := offer.Validate(current); err != nil {
			return err
		}

		now := s.now()
		current.UpdatedAt = now
		offer.ApplyStatus(current, now)

		if err := s.offers.UpdateOffer(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.invalidateCache(ctx)
	s.logger.Info("Offer updated", zap.String("offer_id", id), zap.Int64("version", updated.Version))
	return updated, nil
}

func applyEdits(dst, src *models.Offer) {
	dst.Name = src.Name
	dst.Description = src.Description
	dst.Code = src.Code
	dst.OfferType = src.OfferType
	dst.DiscountValue = src.DiscountValue
	dst.MaxDiscount = src.MaxDiscount
	dst.ApplicableTo = src.ApplicableTo
	dst.Products = src.Products
	dst.Categories = src.Categories
	dst.Conditions = src.Conditions
	dst.FromDate = src.FromDate
	dst.ToDate = src.ToDate
	dst.IsVisible = src.IsVisible
	dst.Priority = src.Priority
	dst.Stackable = src.Stackable
	if src.Status != "" {
		dst.Status = src.Status
	}
}

// DisableOffer soft-deletes an offer: it is disabled and hidden
func (s *OfferService) DisableOffer(ctx context.Context, id string) (*models.Offer, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.DisableOffer", attribute.String("offer_id", id))
	defer span.End()

	var disabled *models.Offer
	err := retryOnConflict(ctx, s.retryAttempts, "disable_offer", func() error {
		o, err := s.offers.GetOffer(ctx, id)
		if err != nil {
			return err
		}
		o.Status = models.OfferStatusDisabled
		o.IsVisible = false
		o.UpdatedAt = s.now()

		if err := s.offers.UpdateOffer(ctx, o); err != nil {
			return err
		}
		disabled = o
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.invalidateCache(ctx)
	s.logger.Info("Offer disabled", zap.String("offer_id", id))
	return disabled, nil
}

// GetActiveOffers returns visible offers that are active now, highest priority
// first, narrowed by the filter's type, scope and code
func (s *OfferService) GetActiveOffers(ctx context.Context, filter models.OfferFilter) ([]*models.Offer, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.GetActiveOffers")
	defer span.End()

	now := s.now()
	live, err := s.liveOffers(ctx, now)
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	filter.Status = ""
	filter.Code = strings.ToUpper(strings.TrimSpace(filter.Code))

	active := make([]*models.Offer, 0, len(live))
	for _, o := range live {
		if !offer.IsActiveAt(o, now) || !filter.Matches(o) {
			continue
		}
		offer.ApplyStatus(o, now)
		active = append(active, o)
	}
	offer.SortActive(active)
	return active, nil
}

// liveOffers reads through the cache. Cache failures fall back to the repository.
func (s *OfferService) liveOffers(ctx context.Context, now time.Time) ([]*models.Offer, error) {
	if s.cache != nil {
		cached, ok, err := s.cache.GetActiveOffers(ctx)
		if err != nil {
			s.logger.Warn("Active offer cache read failed", zap.Error(err))
		} else if ok {
			util.OfferCacheLookupsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		util.OfferCacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	live, err := s.offers.ListLiveOffers(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list live offers: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetActiveOffers(ctx, live); err != nil {
			s.logger.Warn("Active offer cache write failed", zap.Error(err))
		}
	}
	return live, nil
}

func (s *OfferService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateActiveOffers(ctx); err != nil {
		s.logger.Warn("Active offer cache invalidation failed", zap.Error(err))
	}
}

// IsValidForOrder evaluates one offer against an order. Rejections are
// returned in the evaluation, not as errors.
func (s *OfferService) IsValidForOrder(ctx context.Context, offerID string, order models.Order, userID string) (models.Evaluation, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.IsValidForOrder", attribute.String("offer_id", offerID))
	defer span.End()

	o, err := s.offers.GetOffer(ctx, offerID)
	if err != nil {
		return models.Evaluation{}, err
	}

	eval := offer.IsValidForOrder(o, order, userID, s.now())
	observeEvaluation(eval)
	return eval, nil
}

// FindApplicableOffers evaluates every active offer against the order and
// returns the valid ones, largest discount first
func (s *OfferService) FindApplicableOffers(ctx context.Context, order models.Order, userID string) ([]models.ApplicableOffer, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.FindApplicableOffers")
	defer span.End()

	now := s.now()
	// usage counters must be current here, so the cache is bypassed
	live, err := s.offers.ListLiveOffers(ctx, now)
	if err != nil {
		util.RecordError(span, err)
		return nil, fmt.Errorf("failed to list live offers: %w", err)
	}
	offer.SortActive(live)

	applicable := offer.Rank(live, order, userID, now)
	util.OfferEvaluationsTotal.WithLabelValues("valid").Add(float64(len(applicable)))
	util.OfferEvaluationsTotal.WithLabelValues("invalid").Add(float64(len(live) - len(applicable)))

	span.SetAttributes(attribute.Int("applicable", len(applicable)))
	return applicable, nil
}

// RecordUsage appends a redemption to the offer without validating it.
// Callers validate first or use Redeem.
func (s *OfferService) RecordUsage(ctx context.Context, offerID, userID, orderID string, discount decimal.Decimal) (*models.Offer, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.RecordUsage", attribute.String("offer_id", offerID))
	defer span.End()

	recorded, err := s.offers.MutateOfferUsage(ctx, offerID, func(o *models.Offer) error {
		offer.AppendUsage(o, userID, orderID, discount, s.now())
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}

	s.afterUsage(ctx, recorded, userID, orderID)
	return recorded, nil
}

// Redeem validates the offer for the order and records the usage while the
// offer is locked, so usage caps hold under concurrent redemptions
func (s *OfferService) Redeem(ctx context.Context, offerID string, order models.Order, userID, orderID string) (*RedeemResult, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.Redeem", attribute.String("offer_id", offerID))
	defer span.End()

	result := &RedeemResult{}
	o, err := s.offers.MutateOfferUsage(ctx, offerID, func(o *models.Offer) error {
		now := s.now()
		result.Evaluation = offer.IsValidForOrder(o, order, userID, now)
		if result.Evaluation.IsValid {
			offer.AppendUsage(o, userID, orderID, result.Evaluation.Discount, now)
		}
		return nil
	})
	if err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	if result.Evaluation.IsValid {
		result.Offer = o
	}

	observeEvaluation(result.Evaluation)
	if result.Offer != nil {
		s.afterUsage(ctx, result.Offer, userID, orderID)
	}
	return result, nil
}

func (s *OfferService) afterUsage(ctx context.Context, o *models.Offer, userID, orderID string) {
	util.OfferRedemptionsTotal.WithLabelValues(string(o.OfferType)).Inc()
	s.invalidateCache(ctx)

	last := o.Usage.UsedBy[len(o.Usage.UsedBy)-1]
	event := &models.OfferRedeemedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.NewString(),
			EventType: models.EventTypeOfferRedeemed,
			Timestamp: last.UsedAt,
		},
		OfferID:         o.ID,
		OfferCode:       o.Code,
		UserID:          userID,
		OrderID:         orderID,
		DiscountApplied: last.DiscountApplied,
		TotalUses:       o.Usage.TotalUses,
	}
	if err := s.publisher.PublishOfferRedeemed(ctx, event); err != nil {
		s.logger.Error("Failed to publish OfferRedeemed event", zap.Error(err))
	}

	s.logger.Info("Offer usage recorded",
		zap.String("offer_id", o.ID),
		zap.String("user_id", userID),
		zap.String("order_id", orderID),
		zap.Int64("total_uses", o.Usage.TotalUses),
		zap.String("status", string(o.Status)))
}

// UserUsageCount returns how many times userID redeemed the offer
func (s *OfferService) UserUsageCount(ctx context.Context, offerID, userID string) (int64, error) {
	ctx, span := util.StartSpan(ctx, "OfferService.UserUsageCount")
	defer span.End()

	o, err := s.offers.GetOffer(ctx, offerID)
	if err != nil {
		return 0, err
	}
	return o.Usage.CountForUser(userID), nil
}

func observeEvaluation(eval models.Evaluation) {
	if eval.IsValid {
		util.OfferEvaluationsTotal.WithLabelValues("valid").Inc()
		return
	}
	util.OfferEvaluationsTotal.WithLabelValues("invalid").Inc()
}
