package entities

// NFTRecord is one owned token as reported by an NFT provider, already
// normalized by the provider adapter. Spam carries the upstream classifier's
// verdict; the aggregator applies its own deny-list on top.
type NFTRecord struct {
	ContractAddress string  `json:"contract_address"`
	TokenID         string  `json:"token_id"`
	Name            string  `json:"name"`
	Symbol          string  `json:"symbol"`
	CollectionName  string  `json:"collection_name"`
	FloorPriceUSD   float64 `json:"floor_price_usd"`
	Spam            bool    `json:"spam"`
}

// NFTCollection is the aggregated, spam-filtered view of all owned tokens
// under one contract. Replaced wholesale per wallet each refresh cycle.
type NFTCollection struct {
	WalletID        int64   `db:"wallet_id" json:"wallet_id"`
	ContractAddress string  `db:"contract_address" json:"contract_address"`
	Symbol          string  `db:"symbol" json:"symbol"`
	Name            string  `db:"name" json:"name"`
	ItemCount       int     `db:"item_count" json:"item_count"`
	FloorPriceUSD   float64 `db:"floor_price_usd" json:"floor_price_usd"`
	TotalValueUSD   float64 `db:"total_value_usd" json:"total_value_usd"`

	// Spam is false for every emitted collection: spam records are dropped
	// before grouping. The column exists so a future "show spam" toggle can
	// keep filtered collections instead.
	Spam bool `db:"spam" json:"spam"`
}
