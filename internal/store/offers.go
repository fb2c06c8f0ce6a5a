package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"offer-wallet-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type offerRow struct {
	ID            string                 `db:"id"`
	Name          string                 `db:"name"`
	Description   string                 `db:"description"`
	Code          sql.NullString         `db:"code"`
	OfferType     models.OfferType       `db:"offer_type"`
	DiscountValue decimal.Decimal        `db:"discount_value"`
	MaxDiscount   decimal.NullDecimal    `db:"max_discount"`
	ApplicableTo  models.ApplicableTo    `db:"applicable_to"`
	Products      models.StringList      `db:"products"`
	Categories    models.StringList      `db:"categories"`
	Conditions    models.OfferConditions `db:"conditions"`
	TotalUses     int64                  `db:"total_uses"`
	FromDate      time.Time              `db:"from_date"`
	ToDate        time.Time              `db:"to_date"`
	Status        models.OfferStatus     `db:"status"`
	IsVisible     bool                   `db:"is_visible"`
	Priority      int                    `db:"priority"`
	Stackable     bool                   `db:"stackable"`
	CreatedBy     string                 `db:"created_by"`
	CreatedAt     time.Time              `db:"created_at"`
	UpdatedAt     time.Time              `db:"updated_at"`
	Version       int64                  `db:"version"`
}

type usageRow struct {
	OfferID         string          `db:"offer_id"`
	UserID          string          `db:"user_id"`
	OrderID         string          `db:"order_id"`
	UsedAt          time.Time       `db:"used_at"`
	DiscountApplied decimal.Decimal `db:"discount_applied"`
}

const offerColumns = `id, name, description, code, offer_type, discount_value, max_discount,
	applicable_to, products, categories, conditions, total_uses, from_date, to_date,
	status, is_visible, priority, stackable, created_by, created_at, updated_at, version`

func toOfferRow(o *models.Offer) offerRow {
	return offerRow{
		ID:            o.ID,
		Name:          o.Name,
		Description:   o.Description,
		Code:          sql.NullString{String: o.Code, Valid: o.Code != ""},
		OfferType:     o.OfferType,
		DiscountValue: o.DiscountValue,
		MaxDiscount:   o.MaxDiscount,
		ApplicableTo:  o.ApplicableTo,
		Products:      o.Products,
		Categories:    o.Categories,
		Conditions:    o.Conditions,
		TotalUses:     o.Usage.TotalUses,
		FromDate:      o.FromDate,
		ToDate:        o.ToDate,
		Status:        o.Status,
		IsVisible:     o.IsVisible,
		Priority:      o.Priority,
		Stackable:     o.Stackable,
		CreatedBy:     o.CreatedBy,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		Version:       o.Version,
	}
}

func (r offerRow) toOffer() *models.Offer {
	return &models.Offer{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Code:          r.Code.String,
		OfferType:     r.OfferType,
		DiscountValue: r.DiscountValue,
		MaxDiscount:   r.MaxDiscount,
		ApplicableTo:  r.ApplicableTo,
		Products:      r.Products,
		Categories:    r.Categories,
		Conditions:    r.Conditions,
		Usage:         models.OfferUsage{TotalUses: r.TotalUses, UsedBy: []models.UsageRecord{}},
		FromDate:      r.FromDate,
		ToDate:        r.ToDate,
		Status:        r.Status,
		IsVisible:     r.IsVisible,
		Priority:      r.Priority,
		Stackable:     r.Stackable,
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
		Version:       r.Version,
	}
}

// CreateOffer inserts a new offer at version 1
func (s *Store) CreateOffer(ctx context.Context, o *models.Offer) error {
	o.Version = 1
	query := `
		INSERT INTO offers (` + offerColumns + `)
		VALUES (:id, :name, :description, :code, :offer_type, :discount_value, :max_discount,
			:applicable_to, :products, :categories, :conditions, :total_uses, :from_date, :to_date,
			:status, :is_visible, :priority, :stackable, :created_by, :created_at, :updated_at, :version)`

	if _, err := s.db.NamedExecContext(ctx, query, toOfferRow(o)); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("offer code %q: %w", o.Code, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create offer: %w", err)
	}
	return nil
}

// GetOffer retrieves an offer with its usage trail
func (s *Store) GetOffer(ctx context.Context, id string) (*models.Offer, error) {
	return s.getOfferWhere(ctx, "id = $1", id)
}

// GetOfferByCode retrieves an offer by its (uppercased) code
func (s *Store) GetOfferByCode(ctx context.Context, code string) (*models.Offer, error) {
	return s.getOfferWhere(ctx, "code = $1", strings.ToUpper(code))
}

func (s *Store) getOfferWhere(ctx context.Context, where string, arg interface{}) (*models.Offer, error) {
	var row offerRow
	err := s.db.GetContext(ctx, &row, "SELECT "+offerColumns+" FROM offers WHERE "+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("offer %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	offers := []*models.Offer{row.toOffer()}
	if err := attachUsage(ctx, s.db, offers); err != nil {
		return nil, err
	}
	return offers[0], nil
}

// ListOffers returns offers matching the filter, highest priority first
func (s *Store) ListOffers(ctx context.Context, filter models.OfferFilter) ([]*models.Offer, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.OfferType != "" {
		add("offer_type = $%d", filter.OfferType)
	}
	if filter.ApplicableTo != "" {
		add("applicable_to = $%d", filter.ApplicableTo)
	}
	if filter.Code != "" {
		add("code = $%d", strings.ToUpper(filter.Code))
	}
	if filter.VisibleOnly {
		conds = append(conds, "is_visible")
	}

	query := "SELECT " + offerColumns + " FROM offers"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY priority DESC, created_at DESC"

	return s.selectOffers(ctx, query, args...)
}

// ListLiveOffers returns visible, non-draft, non-disabled offers whose window
// contains now. Stored status is not trusted here since it is only derived on save.
func (s *Store) ListLiveOffers(ctx context.Context, now time.Time) ([]*models.Offer, error) {
	query := "SELECT " + offerColumns + ` FROM offers
		WHERE is_visible
		  AND status NOT IN ($1, $2)
		  AND from_date <= $3 AND to_date >= $3
		ORDER BY priority DESC, created_at DESC`

	return s.selectOffers(ctx, query, models.OfferStatusDraft, models.OfferStatusDisabled, now)
}

func (s *Store) selectOffers(ctx context.Context, query string, args ...interface{}) ([]*models.Offer, error) {
	var rows []offerRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}

	offers := make([]*models.Offer, 0, len(rows))
	for _, r := range rows {
		offers = append(offers, r.toOffer())
	}
	if err := attachUsage(ctx, s.db, offers); err != nil {
		return nil, err
	}
	return offers, nil
}

// attachUsage loads the usage trail of every offer in one query
func attachUsage(ctx context.Context, q sqlx.ExtContext, offers []*models.Offer) error {
	if len(offers) == 0 {
		return nil
	}

	byID := make(map[string]*models.Offer, len(offers))
	ids := make([]string, 0, len(offers))
	for _, o := range offers {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	query, args, err := sqlx.In(
		"SELECT offer_id, user_id, order_id, used_at, discount_applied FROM offer_usages WHERE offer_id IN (?) ORDER BY id", ids)
	if err != nil {
		return err
	}
	query = q.Rebind(query)

	var usages []usageRow
	if err := sqlx.SelectContext(ctx, q, &usages, query, args...); err != nil {
		return fmt.Errorf("failed to load offer usage: %w", err)
	}

	for _, u := range usages {
		o := byID[u.OfferID]
		o.Usage.UsedBy = append(o.Usage.UsedBy, models.UsageRecord{
			User:            u.UserID,
			Order:           u.OrderID,
			UsedAt:          u.UsedAt,
			DiscountApplied: u.DiscountApplied,
		})
	}
	return nil
}

// UpdateOffer writes the editable fields of an offer if its version is unchanged.
// On success the offer's version is advanced.
func (s *Store) UpdateOffer(ctx context.Context, o *models.Offer) error {
	row := toOfferRow(o)
	query := `
		UPDATE offers SET
			name = :name, description = :description, code = :code, offer_type = :offer_type,
			discount_value = :discount_value, max_discount = :max_discount, applicable_to = :applicable_to,
			products = :products, categories = :categories, conditions = :conditions,
			from_date = :from_date, to_date = :to_date, status = :status, is_visible = :is_visible,
			priority = :priority, stackable = :stackable, updated_at = :updated_at,
			version = version + 1
		WHERE id = :id AND version = :version`

	res, err := s.db.NamedExecContext(ctx, query, row)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("offer code %q: %w", o.Code, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to update offer: %w", err)
	}
	if err := s.checkOfferWrite(ctx, res, o.ID); err != nil {
		return err
	}
	o.Version++
	return nil
}

// MutateOfferUsage locks the offer row, loads its usage trail and hands the
// offer to fn. Usage records fn appends are inserted and total_uses is
// incremented in the same database transaction. Nothing is written if fn
// fails or appends nothing.
func (s *Store) MutateOfferUsage(ctx context.Context, id string, fn func(o *models.Offer) error) (*models.Offer, error) {
	var result *models.Offer

	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		var row offerRow
		err := tx.GetContext(ctx, &row, "SELECT "+offerColumns+" FROM offers WHERE id = $1 FOR UPDATE", id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("offer %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock offer: %w", err)
		}

		o := row.toOffer()
		if err := attachUsage(ctx, tx, []*models.Offer{o}); err != nil {
			return err
		}
		seen := len(o.Usage.UsedBy)

		if err := fn(o); err != nil {
			return err
		}
		added := o.Usage.UsedBy[seen:]
		if len(added) == 0 {
			result = o
			return nil
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE offers SET total_uses = total_uses + $1, status = $2, updated_at = $3, version = version + 1
			WHERE id = $4`,
			len(added), o.Status, o.UpdatedAt, o.ID)
		if err != nil {
			return fmt.Errorf("failed to update offer usage: %w", err)
		}

		for _, rec := range added {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO offer_usages (offer_id, user_id, order_id, used_at, discount_applied)
				VALUES ($1, $2, $3, $4, $5)`,
				o.ID, rec.User, rec.Order, rec.UsedAt, rec.DiscountApplied)
			if err != nil {
				return fmt.Errorf("failed to insert offer usage: %w", err)
			}
		}

		o.Version++
		result = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkOfferWrite distinguishes a stale version from a missing offer
func (s *Store) checkOfferWrite(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var exists bool
	if err := s.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM offers WHERE id = $1)", id); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("offer %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("offer %s: %w", id, ErrVersionConflict)
}
