package services

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/domain/entities"
)

// ValuationService combines balances, fresh quotes, prior-snapshot prices and
// manual overrides into valued assets with profit/loss figures.
//
// Precedence, applied uniformly to every asset:
//  1. a manual override wins for purchase_price/total_invested; the current
//     price still comes from the freshest available quote
//  2. a fresh quote this cycle sets price_usd
//  3. otherwise a nonzero prior-snapshot price is retained and the asset is
//     marked stale, never silently zeroed
type ValuationService struct {
	logger *zap.Logger
}

// NewValuationService creates a new valuation service
func NewValuationService(logger *zap.Logger) *ValuationService {
	return &ValuationService{logger: logger}
}

// Valuate values a single asset. quote, prior and override may each be nil.
// Computation failures (e.g. a malformed override) zero the affected asset's
// derived fields and mark it stale; they never propagate to the caller.
func (s *ValuationService) Valuate(
	asset entities.Asset,
	quote *entities.PriceQuote,
	prior *entities.Asset,
	override *entities.ManualOverride,
) entities.Asset {
	switch {
	case quote != nil && quote.PriceUSD > 0:
		asset.PriceUSD = quote.PriceUSD
		asset.IsStale = false
	case prior != nil && prior.PriceUSD > 0:
		asset.PriceUSD = prior.PriceUSD
		asset.IsStale = true
	default:
		asset.PriceUSD = 0
		asset.IsStale = true
	}
	asset.ValueUSD = asset.Balance * asset.PriceUSD

	if err := s.applyCostBasis(&asset, prior, override); err != nil {
		s.logger.Warn("Cost basis computation failed for asset",
			zap.String("token", asset.TokenAddress),
			zap.Int64("wallet_id", asset.WalletID),
			zap.Error(err),
		)
		asset.PurchasePrice = 0
		asset.TotalInvested = 0
		asset.RealizedPnL = 0
		asset.UnrealizedPnL = 0
		asset.ReturnPct = 0
		asset.IsStale = true
		return asset
	}

	asset.UnrealizedPnL = asset.ValueUSD - asset.TotalInvested
	if asset.TotalInvested > 0 {
		asset.ReturnPct = asset.UnrealizedPnL / asset.TotalInvested * 100
	} else {
		asset.ReturnPct = 0
	}

	return asset
}

// applyCostBasis fills purchase_price/total_invested. Override values are
// user-entered strings and parsed here, per asset, so one malformed entry
// cannot abort the batch.
func (s *ValuationService) applyCostBasis(asset *entities.Asset, prior *entities.Asset, override *entities.ManualOverride) error {
	if override != nil {
		purchase, err := parseOverrideValue(override.PurchasePrice)
		if err != nil {
			return &entities.ComputationError{TokenAddress: asset.TokenAddress, Err: fmt.Errorf("purchase_price: %w", err)}
		}
		invested, err := parseOverrideValue(override.TotalInvested)
		if err != nil {
			return &entities.ComputationError{TokenAddress: asset.TokenAddress, Err: fmt.Errorf("total_invested: %w", err)}
		}

		asset.PurchasePrice = purchase
		if invested > 0 {
			asset.TotalInvested = invested
		} else {
			asset.TotalInvested = purchase * asset.Balance
		}
		if prior != nil {
			asset.RealizedPnL = prior.RealizedPnL
		}
		return nil
	}

	// The prior snapshot is the earliest balance-change signal available:
	// once a basis is established it is carried, not re-estimated.
	if prior != nil && prior.PurchasePrice > 0 {
		asset.PurchasePrice = prior.PurchasePrice
		asset.TotalInvested = prior.PurchasePrice * asset.Balance
		asset.RealizedPnL = prior.RealizedPnL
		asset.BasisEstimated = prior.BasisEstimated
		return nil
	}

	// No signal at all: assume cost basis equals current value (0% return).
	asset.PurchasePrice = asset.PriceUSD
	asset.TotalInvested = asset.ValueUSD
	asset.BasisEstimated = true
	return nil
}

// parseOverrideValue coerces a user-entered override field to a float.
// Accepts "$1,234.56" style input; anything else is a computation error.
func parseOverrideValue(raw string) (float64, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative value: %q", raw)
	}
	return v, nil
}
