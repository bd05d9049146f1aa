package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/repositories"
)

// Ensure SnapshotRepo implements SnapshotRepository
var _ repositories.SnapshotRepository = (*SnapshotRepo)(nil)

// SnapshotRepo implements SnapshotRepository using PostgreSQL. Asset and
// collection rows for the refreshed wallet set are replaced wholesale inside
// a single transaction per cycle.
type SnapshotRepo struct {
	db *sqlx.DB
}

// NewSnapshotRepo creates a new snapshot repository
func NewSnapshotRepo(db *sqlx.DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

const insertAssetQuery = `
	INSERT INTO assets (
		wallet_id, chain, token_address, symbol, name, balance,
		price_usd, value_usd, purchase_price, total_invested,
		realized_pnl, unrealized_pnl, return_pct, is_stale, hidden, basis_estimated
	) VALUES (
		:wallet_id, :chain, :token_address, :symbol, :name, :balance,
		:price_usd, :value_usd, :purchase_price, :total_invested,
		:realized_pnl, :unrealized_pnl, :return_pct, :is_stale, :hidden, :basis_estimated
	)
`

const insertCollectionQuery = `
	INSERT INTO nft_collections (
		wallet_id, contract_address, symbol, name,
		item_count, floor_price_usd, total_value_usd, spam
	) VALUES (
		:wallet_id, :contract_address, :symbol, :name,
		:item_count, :floor_price_usd, :total_value_usd, :spam
	)
`

// Commit atomically replaces the asset/collection rows for the wallet set
// and records the snapshot. On any failure the transaction rolls back and
// the previous snapshot stays authoritative.
func (r *SnapshotRepo) Commit(ctx context.Context, snapshot *entities.PortfolioSnapshot, walletIDs []int64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM assets WHERE wallet_id = ANY($1)`, pq.Array(walletIDs)); err != nil {
		return fmt.Errorf("failed to clear assets: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nft_collections WHERE wallet_id = ANY($1)`, pq.Array(walletIDs)); err != nil {
		return fmt.Errorf("failed to clear nft collections: %w", err)
	}

	for i := range snapshot.Assets {
		if _, err := tx.NamedExecContext(ctx, insertAssetQuery, &snapshot.Assets[i]); err != nil {
			return fmt.Errorf("failed to insert asset %s: %w", snapshot.Assets[i].TokenAddress, err)
		}
	}
	for i := range snapshot.Collections {
		if _, err := tx.NamedExecContext(ctx, insertCollectionQuery, &snapshot.Collections[i]); err != nil {
			return fmt.Errorf("failed to insert nft collection %s: %w", snapshot.Collections[i].ContractAddress, err)
		}
	}

	summary, err := json.Marshal(snapshot.Summary)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle summary: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO snapshots (total_value_usd, summary, taken_at) VALUES ($1, $2, $3) RETURNING id`,
		snapshot.TotalValueUSD, summary, snapshot.TakenAt,
	).Scan(&id)
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	snapshot.ID = id

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot transaction: %w", err)
	}

	return nil
}

// snapshotRow holds the result of the snapshot metadata query
type snapshotRow struct {
	ID            int64           `db:"id"`
	TotalValueUSD float64         `db:"total_value_usd"`
	Summary       json.RawMessage `db:"summary"`
	TakenAt       sql.NullTime    `db:"taken_at"`
}

// GetLast retrieves the most recent committed snapshot, nil if none
func (r *SnapshotRepo) GetLast(ctx context.Context) (*entities.PortfolioSnapshot, error) {
	var row snapshotRow
	query := `SELECT id, total_value_usd, summary, taken_at FROM snapshots ORDER BY taken_at DESC LIMIT 1`

	if err := r.db.GetContext(ctx, &row, query); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last snapshot: %w", err)
	}

	snapshot := &entities.PortfolioSnapshot{
		ID:            row.ID,
		TotalValueUSD: row.TotalValueUSD,
	}
	if row.TakenAt.Valid {
		snapshot.TakenAt = row.TakenAt.Time
	}
	if len(row.Summary) > 0 {
		if err := json.Unmarshal(row.Summary, &snapshot.Summary); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cycle summary: %w", err)
		}
	}

	assetQuery := `SELECT * FROM assets ORDER BY wallet_id, value_usd DESC`
	if err := r.db.SelectContext(ctx, &snapshot.Assets, assetQuery); err != nil {
		return nil, fmt.Errorf("failed to get snapshot assets: %w", err)
	}

	collectionQuery := `SELECT * FROM nft_collections ORDER BY wallet_id, total_value_usd DESC`
	if err := r.db.SelectContext(ctx, &snapshot.Collections, collectionQuery); err != nil {
		return nil, fmt.Errorf("failed to get snapshot collections: %w", err)
	}

	return snapshot, nil
}

// GetAssets retrieves the committed assets for a wallet set, keyed by
// (wallet_id, token_address)
func (r *SnapshotRepo) GetAssets(ctx context.Context, walletIDs []int64) (map[entities.AssetKey]entities.Asset, error) {
	var assets []entities.Asset
	query := `SELECT * FROM assets WHERE wallet_id = ANY($1)`

	if err := r.db.SelectContext(ctx, &assets, query, pq.Array(walletIDs)); err != nil {
		return nil, fmt.Errorf("failed to get prior assets: %w", err)
	}

	result := make(map[entities.AssetKey]entities.Asset, len(assets))
	for _, a := range assets {
		result[a.Key()] = a
	}

	return result, nil
}
