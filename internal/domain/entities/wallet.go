package entities

// Wallet is a tracked on-chain address. Identity is owned by the storage
// layer and never mutated by the pipeline.
type Wallet struct {
	ID      int64  `db:"id" json:"id"`
	Chain   string `db:"chain" json:"chain"`
	Address string `db:"address" json:"address"`
	Label   string `db:"label" json:"label"`
}

// AssetKey identifies an asset within the portfolio: one row per
// (wallet, token contract) pair.
type AssetKey struct {
	WalletID     int64
	TokenAddress string
}
