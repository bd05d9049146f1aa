package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/repositories"
)

// Ensure HiddenAssetRepo implements HiddenAssetRepository
var _ repositories.HiddenAssetRepository = (*HiddenAssetRepo)(nil)

// HiddenAssetRepo implements HiddenAssetRepository using PostgreSQL
type HiddenAssetRepo struct {
	db *sqlx.DB
}

// NewHiddenAssetRepo creates a new hidden asset repository
func NewHiddenAssetRepo(db *sqlx.DB) *HiddenAssetRepo {
	return &HiddenAssetRepo{db: db}
}

// GetAll retrieves every overlay entry
func (r *HiddenAssetRepo) GetAll(ctx context.Context) ([]entities.HiddenAssetEntry, error) {
	var entries []entities.HiddenAssetEntry
	query := `SELECT wallet_id, token_address, hidden_at, reason FROM hidden_assets`

	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("failed to get hidden assets: %w", err)
	}

	return entries, nil
}

// Upsert creates or refreshes an entry. A manual hide replaces an existing
// auto entry so it survives later reconciliation.
func (r *HiddenAssetRepo) Upsert(ctx context.Context, entry *entities.HiddenAssetEntry) error {
	query := `
		INSERT INTO hidden_assets (wallet_id, token_address, hidden_at, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet_id, token_address) DO UPDATE SET
			hidden_at = EXCLUDED.hidden_at,
			reason = EXCLUDED.reason
	`

	_, err := r.db.ExecContext(ctx, query, entry.WalletID, entry.TokenAddress, entry.HiddenAt, entry.Reason)
	if err != nil {
		return fmt.Errorf("failed to upsert hidden asset: %w", err)
	}

	return nil
}

// Delete removes an entry; deleting a missing entry is not an error
func (r *HiddenAssetRepo) Delete(ctx context.Context, walletID int64, tokenAddress string) error {
	query := `DELETE FROM hidden_assets WHERE wallet_id = $1 AND token_address = $2`

	if _, err := r.db.ExecContext(ctx, query, walletID, tokenAddress); err != nil {
		return fmt.Errorf("failed to delete hidden asset: %w", err)
	}

	return nil
}
