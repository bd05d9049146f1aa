package repositories

import (
	"context"

	"github.com/chainfolio/valuator/internal/domain/entities"
)

// SnapshotRepository persists refresh-cycle results. Commit replaces the
// asset and collection rows for the refreshed wallet set in one transaction;
// a failed commit leaves the previous snapshot authoritative.
type SnapshotRepository interface {
	// Commit atomically replaces per-wallet asset/collection rows and
	// records the snapshot. Returns ErrStorageFailure-wrapped errors.
	Commit(ctx context.Context, snapshot *entities.PortfolioSnapshot, walletIDs []int64) error

	// GetLast retrieves the most recent committed snapshot, nil if none
	GetLast(ctx context.Context) (*entities.PortfolioSnapshot, error)

	// GetAssets retrieves the committed assets for a wallet set, keyed by
	// (wallet_id, token_address). Used as the prior-cycle price/basis signal.
	GetAssets(ctx context.Context, walletIDs []int64) (map[entities.AssetKey]entities.Asset, error)
}

// HiddenAssetRepository persists the hidden-asset overlay.
type HiddenAssetRepository interface {
	// GetAll retrieves every overlay entry
	GetAll(ctx context.Context) ([]entities.HiddenAssetEntry, error)

	// Upsert creates or refreshes an entry
	Upsert(ctx context.Context, entry *entities.HiddenAssetEntry) error

	// Delete removes an entry; deleting a missing entry is not an error
	Delete(ctx context.Context, walletID int64, tokenAddress string) error
}

// OverrideRepository reads user-entered cost-basis overrides.
type OverrideRepository interface {
	// GetAll retrieves all overrides keyed by (wallet_id, token_address)
	GetAll(ctx context.Context) (map[entities.AssetKey]entities.ManualOverride, error)
}
