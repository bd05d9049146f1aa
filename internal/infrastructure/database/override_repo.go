package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/repositories"
)

// Ensure OverrideRepo implements OverrideRepository
var _ repositories.OverrideRepository = (*OverrideRepo)(nil)

// OverrideRepo implements OverrideRepository using PostgreSQL
type OverrideRepo struct {
	db *sqlx.DB
}

// NewOverrideRepo creates a new manual override repository
func NewOverrideRepo(db *sqlx.DB) *OverrideRepo {
	return &OverrideRepo{db: db}
}

// GetAll retrieves every manual cost basis override, keyed by
// (wallet_id, token_address). Values stay as the user-entered strings;
// parsing happens at valuation time per asset.
func (r *OverrideRepo) GetAll(ctx context.Context) (map[entities.AssetKey]entities.ManualOverride, error) {
	var overrides []entities.ManualOverride
	query := `SELECT wallet_id, token_address, purchase_price, total_invested FROM manual_overrides`

	if err := r.db.SelectContext(ctx, &overrides, query); err != nil {
		return nil, fmt.Errorf("failed to get manual overrides: %w", err)
	}

	result := make(map[entities.AssetKey]entities.ManualOverride, len(overrides))
	for _, o := range overrides {
		result[entities.AssetKey{WalletID: o.WalletID, TokenAddress: o.TokenAddress}] = o
	}

	return result, nil
}
