package entities

import "strings"

// NativeTokenAddress is the sentinel contract address for a chain's native
// coin. It must never be sent to contract-based price sources; the resolver
// prices it through the ticker lookup path instead.
const NativeTokenAddress = "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee"

// DefaultTokenDecimals is used when a token does not declare its decimal
// precision. Nearly every EVM token uses 18.
const DefaultTokenDecimals = 18

// Asset is one valued holding of a wallet. Rows are produced fresh each
// refresh cycle and replace the previous cycle's rows for that wallet.
type Asset struct {
	WalletID      int64   `db:"wallet_id" json:"wallet_id"`
	Chain         string  `db:"chain" json:"chain"`
	TokenAddress  string  `db:"token_address" json:"token_address"`
	Symbol        string  `db:"symbol" json:"symbol"`
	Name          string  `db:"name" json:"name"`
	Balance       float64 `db:"balance" json:"balance"`
	PriceUSD      float64 `db:"price_usd" json:"price_usd"`
	ValueUSD      float64 `db:"value_usd" json:"value_usd"`
	PurchasePrice float64 `db:"purchase_price" json:"purchase_price"`
	TotalInvested float64 `db:"total_invested" json:"total_invested"`
	RealizedPnL   float64 `db:"realized_pnl" json:"realized_pnl"`
	UnrealizedPnL float64 `db:"unrealized_pnl" json:"unrealized_pnl"`
	ReturnPct     float64 `db:"return_pct" json:"return_pct"`
	IsStale       bool    `db:"is_stale" json:"is_stale"`
	Hidden        bool    `db:"hidden" json:"hidden"`

	// BasisEstimated marks a cost basis that was defaulted to the current
	// price because no purchase signal existed.
	BasisEstimated bool `db:"basis_estimated" json:"basis_estimated"`
}

// Key returns the identity of this asset within the portfolio.
func (a *Asset) Key() AssetKey {
	return AssetKey{WalletID: a.WalletID, TokenAddress: a.TokenAddress}
}

// IsNative reports whether the asset is the chain's native coin.
func (a *Asset) IsNative() bool {
	return strings.EqualFold(a.TokenAddress, NativeTokenAddress)
}

// ManualOverride is a user-entered cost-basis override for a single asset.
// Values are kept as entered; parsing happens per-asset during valuation so
// one malformed override cannot abort the batch.
type ManualOverride struct {
	WalletID      int64  `db:"wallet_id" json:"wallet_id"`
	TokenAddress  string `db:"token_address" json:"token_address"`
	PurchasePrice string `db:"purchase_price" json:"purchase_price"`
	TotalInvested string `db:"total_invested" json:"total_invested"`
}
