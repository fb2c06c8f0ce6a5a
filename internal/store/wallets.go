package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"offer-wallet-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const walletColumns = "id, shop, balance, total_credits, total_debits, status, created_at, updated_at, version"

const transactionColumns = `id, wallet_id, type, amount, previous_balance, new_balance, description,
	source, related_transaction, related_model, performed_by, timestamp`

// GetWalletByShop retrieves a shop's wallet with its full transaction log
func (s *Store) GetWalletByShop(ctx context.Context, shopID string) (*models.ShopWallet, error) {
	var w models.ShopWallet
	err := s.db.GetContext(ctx, &w, "SELECT "+walletColumns+" FROM shop_wallets WHERE shop = $1", shopID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("wallet for shop %s: %w", shopID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	err = s.db.SelectContext(ctx, &w.Transactions,
		"SELECT "+transactionColumns+" FROM wallet_transactions WHERE wallet_id = $1 ORDER BY seq", w.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet transactions: %w", err)
	}
	return &w, nil
}

// CreateWallet inserts an empty wallet. A concurrent insert for the same shop
// fails with ErrAlreadyExists.
func (s *Store) CreateWallet(ctx context.Context, w *models.ShopWallet) error {
	w.Version = 1
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO shop_wallets (`+walletColumns+`)
		VALUES (:id, :shop, :balance, :total_credits, :total_debits, :status, :created_at, :updated_at, :version)`, w)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("wallet for shop %s: %w", w.Shop, ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// MutateWallet locks the shop's wallet row, hands the wallet to fn with an empty
// transaction log, and persists the counters plus every transaction fn appended
// in the same database transaction. Nothing is written if fn fails.
func (s *Store) MutateWallet(ctx context.Context, shopID string, fn func(w *models.ShopWallet) error) (*models.ShopWallet, error) {
	var result *models.ShopWallet

	err := s.transact(ctx, func(tx *sqlx.Tx) error {
		var w models.ShopWallet
		err := tx.GetContext(ctx, &w,
			"SELECT "+walletColumns+" FROM shop_wallets WHERE shop = $1 FOR UPDATE", shopID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("wallet for shop %s: %w", shopID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to lock wallet: %w", err)
		}

		if err := fn(&w); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE shop_wallets
			SET balance = $1, total_credits = $2, total_debits = $3, status = $4, updated_at = $5, version = version + 1
			WHERE id = $6 AND version = $7`,
			w.Balance, w.TotalCredits, w.TotalDebits, w.Status, w.UpdatedAt, w.ID, w.Version)
		if err != nil {
			return fmt.Errorf("failed to update wallet: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("wallet %s: %w", w.ID, ErrVersionConflict)
		}

		for i := range w.Transactions {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO wallet_transactions (`+transactionColumns+`)
				VALUES (:id, :wallet_id, :type, :amount, :previous_balance, :new_balance, :description,
					:source, :related_transaction, :related_model, :performed_by, :timestamp)`, w.Transactions[i])
			if err != nil {
				return fmt.Errorf("failed to insert wallet transaction: %w", err)
			}
		}

		w.Version++
		result = &w
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListTransactions returns a page of the wallet's log, newest first
func (s *Store) ListTransactions(ctx context.Context, shopID string, limit, offset int) ([]models.WalletTransaction, error) {
	var txs []models.WalletTransaction
	err := s.db.SelectContext(ctx, &txs, `
		SELECT t.id, t.wallet_id, t.type, t.amount, t.previous_balance, t.new_balance, t.description,
			t.source, t.related_transaction, t.related_model, t.performed_by, t.timestamp
		FROM wallet_transactions t
		JOIN shop_wallets w ON w.id = t.wallet_id
		WHERE w.shop = $1
		ORDER BY t.seq DESC
		LIMIT $2 OFFSET $3`, shopID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet transactions: %w", err)
	}
	return txs, nil
}
