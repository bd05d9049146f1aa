package services

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
)

// CollectorService enumerates native/token/NFT holdings per wallet and
// normalizes them into canonical Asset and NFTRecord values.
type CollectorService struct {
	balanceProviders map[string]providers.BalanceProvider
	nftProvider      providers.NFTProvider
	logger           *zap.Logger
	workers          int
}

// NewCollectorService creates a new collector service. balanceProviders is
// keyed by chain identifier.
func NewCollectorService(
	balanceProviders map[string]providers.BalanceProvider,
	nftProvider providers.NFTProvider,
	workers int,
	logger *zap.Logger,
) *CollectorService {
	if workers <= 0 {
		workers = 1
	}
	return &CollectorService{
		balanceProviders: balanceProviders,
		nftProvider:      nftProvider,
		logger:           logger,
		workers:          workers,
	}
}

// Collect gathers all holdings for a single wallet. A balance provider
// failure is returned to the caller (the wallet is marked partial); an NFT
// provider failure degrades the result to Partial but keeps the balances.
func (s *CollectorService) Collect(ctx context.Context, wallet entities.Wallet) (*entities.WalletHoldings, error) {
	provider, ok := s.balanceProviders[wallet.Chain]
	if !ok {
		return nil, fmt.Errorf("%w: no balance provider for chain %s", entities.ErrProviderUnavailable, wallet.Chain)
	}

	raw, err := provider.GetHoldings(ctx, wallet.Address, wallet.Chain)
	if err != nil {
		return nil, fmt.Errorf("get holdings for %s: %w", wallet.Address, err)
	}

	holdings := &entities.WalletHoldings{Wallet: wallet}

	if raw.NativeAmount != nil && raw.NativeAmount.Sign() > 0 {
		decimals := raw.NativeDecimals
		if decimals <= 0 {
			decimals = entities.DefaultTokenDecimals
		}
		holdings.Assets = append(holdings.Assets, entities.Asset{
			WalletID:     wallet.ID,
			Chain:        wallet.Chain,
			TokenAddress: entities.NativeTokenAddress,
			Symbol:       raw.NativeSymbol,
			Name:         raw.NativeSymbol,
			Balance:      normalizeUnits(raw.NativeAmount, decimals),
		})
	}

	for _, tb := range raw.Tokens {
		if tb.Amount == nil || tb.Amount.Sign() == 0 {
			continue
		}
		decimals := entities.DefaultTokenDecimals
		if tb.Decimals != nil {
			decimals = *tb.Decimals
		}
		holdings.Assets = append(holdings.Assets, entities.Asset{
			WalletID:     wallet.ID,
			Chain:        wallet.Chain,
			TokenAddress: strings.ToLower(tb.TokenAddress),
			Symbol:       tb.Symbol,
			Name:         tb.Name,
			Balance:      normalizeUnits(tb.Amount, decimals),
		})
	}

	if s.nftProvider != nil {
		nfts, err := s.nftProvider.GetOwnedNFTs(ctx, wallet.Address, wallet.Chain)
		if err != nil {
			s.logger.Warn("NFT enumeration failed, keeping balances",
				zap.String("wallet", wallet.Address),
				zap.String("chain", wallet.Chain),
				zap.Error(err),
			)
			holdings.Partial = true
		} else {
			holdings.NFTs = nfts
		}
	}

	return holdings, nil
}

// CollectAll collects wallets in parallel with a bounded worker pool.
// Collection order does not affect the result; failed wallets are reported
// in the second return value, never as an error.
func (s *CollectorService) CollectAll(ctx context.Context, wallets []entities.Wallet) ([]*entities.WalletHoldings, []string) {
	var (
		mu       sync.Mutex
		results  []*entities.WalletHoldings
		partials []string
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, wallet := range wallets {
		g.Go(func() error {
			holdings, err := s.Collect(gCtx, wallet)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				if errors.Is(err, entities.ErrProviderRejected) {
					s.logger.Warn("Balance provider rejected wallet request",
						zap.String("wallet", wallet.Address), zap.Error(err))
				} else {
					s.logger.Warn("Balance provider unavailable for wallet",
						zap.String("wallet", wallet.Address), zap.Error(err))
				}
				partials = append(partials, wallet.Address)
				return nil
			}

			if holdings.Partial {
				partials = append(partials, wallet.Address)
			}
			results = append(results, holdings)
			return nil
		})
	}

	// Workers absorb their own errors; Wait only surfaces ctx cancellation.
	_ = g.Wait()

	return results, partials
}

// normalizeUnits converts a raw chain-unit amount to a decimal balance using
// the token's declared precision.
func normalizeUnits(amount *big.Int, decimals int) float64 {
	return decimal.NewFromBigInt(amount, -int32(decimals)).InexactFloat64()
}
