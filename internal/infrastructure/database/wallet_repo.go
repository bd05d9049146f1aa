package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/repositories"
)

// Ensure WalletRepo implements WalletRepository
var _ repositories.WalletRepository = (*WalletRepo)(nil)

// WalletRepo implements WalletRepository using PostgreSQL
type WalletRepo struct {
	db *sqlx.DB
}

// NewWalletRepo creates a new wallet repository
func NewWalletRepo(db *sqlx.DB) *WalletRepo {
	return &WalletRepo{db: db}
}

// GetAll retrieves every tracked wallet
func (r *WalletRepo) GetAll(ctx context.Context) ([]entities.Wallet, error) {
	var wallets []entities.Wallet
	query := `SELECT id, chain, address, label FROM wallets ORDER BY id`

	if err := r.db.SelectContext(ctx, &wallets, query); err != nil {
		return nil, fmt.Errorf("failed to get wallets: %w", err)
	}

	return wallets, nil
}

// GetByID retrieves a single wallet, nil if not found
func (r *WalletRepo) GetByID(ctx context.Context, id int64) (*entities.Wallet, error) {
	var wallet entities.Wallet
	query := `SELECT id, chain, address, label FROM wallets WHERE id = $1`

	if err := r.db.GetContext(ctx, &wallet, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}
