package entities

import "time"

// PriceQuote is the authoritative USD price for one token in one refresh
// cycle. The first fallback tier to return a valid price wins; later tiers
// are never consulted for an already-priced token.
type PriceQuote struct {
	TokenAddress string    `json:"token_address"`
	Network      string    `json:"network"`
	PriceUSD     float64   `json:"price_usd"`
	SourceTier   int       `json:"source_tier"`
	SourceName   string    `json:"source_name"`
	FetchedAt    time.Time `json:"fetched_at"`
}
