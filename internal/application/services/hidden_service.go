package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/repositories"
)

// HiddenAssetService maintains the persisted hidden-asset overlay: manual
// hides from user action plus automatic hides for dust below the visibility
// threshold.
type HiddenAssetService struct {
	repo      repositories.HiddenAssetRepository
	threshold float64
	logger    *zap.Logger
}

// NewHiddenAssetService creates a new hidden asset service
func NewHiddenAssetService(repo repositories.HiddenAssetRepository, thresholdUSD float64, logger *zap.Logger) *HiddenAssetService {
	if thresholdUSD <= 0 {
		thresholdUSD = 2
	}
	return &HiddenAssetService{
		repo:      repo,
		threshold: thresholdUSD,
		logger:    logger,
	}
}

// Threshold returns the visibility threshold in USD.
func (s *HiddenAssetService) Threshold() float64 {
	return s.threshold
}

// Reconcile runs the once-per-cycle overlay pass over the full valued asset
// set: dust assets with no entry get an auto entry, auto entries whose value
// recovered are removed, manual entries are never touched by value. Returns
// the set of asset keys hidden after reconciliation.
func (s *HiddenAssetService) Reconcile(ctx context.Context, assets []entities.Asset) (map[entities.AssetKey]entities.HideReason, error) {
	entries, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load hidden overlay: %v", entities.ErrStorageFailure, err)
	}

	overlay := make(map[entities.AssetKey]entities.HideReason, len(entries))
	for _, e := range entries {
		overlay[e.Key()] = e.Reason
	}

	autoHidden, unhidden := 0, 0
	for _, asset := range assets {
		key := asset.Key()
		reason, exists := overlay[key]

		switch {
		case !exists && asset.ValueUSD < s.threshold:
			entry := &entities.HiddenAssetEntry{
				WalletID:     asset.WalletID,
				TokenAddress: asset.TokenAddress,
				HiddenAt:     time.Now().UTC(),
				Reason:       entities.HideReasonAuto,
			}
			if err := s.repo.Upsert(ctx, entry); err != nil {
				return nil, fmt.Errorf("%w: auto-hide %s: %v", entities.ErrStorageFailure, asset.TokenAddress, err)
			}
			overlay[key] = entities.HideReasonAuto
			autoHidden++

		case exists && reason == entities.HideReasonAuto && asset.ValueUSD >= s.threshold:
			if err := s.repo.Delete(ctx, asset.WalletID, asset.TokenAddress); err != nil {
				return nil, fmt.Errorf("%w: unhide %s: %v", entities.ErrStorageFailure, asset.TokenAddress, err)
			}
			delete(overlay, key)
			unhidden++
		}
	}

	if autoHidden > 0 || unhidden > 0 {
		s.logger.Info("Reconciled hidden-asset overlay",
			zap.Int("auto_hidden", autoHidden),
			zap.Int("auto_unhidden", unhidden),
		)
	}

	return overlay, nil
}

// Hide records an explicit user hide. Manual entries are only ever removed
// by Unhide, regardless of value.
func (s *HiddenAssetService) Hide(ctx context.Context, walletID int64, tokenAddress string) error {
	entry := &entities.HiddenAssetEntry{
		WalletID:     walletID,
		TokenAddress: strings.ToLower(tokenAddress),
		HiddenAt:     time.Now().UTC(),
		Reason:       entities.HideReasonManual,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("hide asset: %w", err)
	}
	return nil
}

// Unhide removes an entry on explicit user action, manual or auto.
func (s *HiddenAssetService) Unhide(ctx context.Context, walletID int64, tokenAddress string) error {
	if err := s.repo.Delete(ctx, walletID, strings.ToLower(tokenAddress)); err != nil {
		return fmt.Errorf("unhide asset: %w", err)
	}
	return nil
}
