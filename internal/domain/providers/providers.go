// Package providers defines the upstream capability interfaces the pipeline
// consumes. Concrete adapters live under internal/infrastructure and are the
// only place provider-specific response shapes are known.
package providers

import (
	"context"
	"math/big"

	"github.com/chainfolio/valuator/internal/domain/entities"
)

// TokenBalance is a raw token holding in the chain's native integer unit.
// Decimals is nil when the token does not declare a precision; consumers
// fall back to entities.DefaultTokenDecimals.
type TokenBalance struct {
	TokenAddress string
	Symbol       string
	Name         string
	Amount       *big.Int
	Decimals     *int
}

// Holdings is everything a balance provider reports for one address.
type Holdings struct {
	NativeAmount   *big.Int
	NativeSymbol   string
	NativeDecimals int
	Tokens         []TokenBalance
}

// BalanceProvider enumerates native and token balances for an address.
// Implementations return errors wrapping entities.ErrProviderUnavailable for
// network/5xx failures and entities.ErrProviderRejected for 4xx/malformed
// responses.
type BalanceProvider interface {
	GetHoldings(ctx context.Context, address, chain string) (*Holdings, error)
}

// PriceSource is one tier of the price fallback chain. GetPrices returns a
// price per lowercased token address; tokens absent from the map were not
// priced by this source. Callers must respect MaxBatchSize.
type PriceSource interface {
	Name() string
	MaxBatchSize() int
	GetPrices(ctx context.Context, network string, tokenAddresses []string) (map[string]float64, error)
}

// NativePriceSource is the dedicated ticker-based lookup for native coins.
// It runs independently of the contract-price tier chain.
type NativePriceSource interface {
	GetTickerPrice(ctx context.Context, symbol string) (float64, error)
}

// NFTProvider enumerates owned NFTs with upstream spam classification.
type NFTProvider interface {
	GetOwnedNFTs(ctx context.Context, address, chain string) ([]entities.NFTRecord, error)
}
