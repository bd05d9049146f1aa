package entities

import "time"

// CycleState tracks the orchestrator through one refresh cycle.
type CycleState string

const (
	StateIdle        CycleState = "idle"
	StateCollecting  CycleState = "collecting"
	StatePricing     CycleState = "pricing"
	StateAggregating CycleState = "aggregating"
	StateValuating   CycleState = "valuating"
	StateReconciling CycleState = "reconciling"
	StateCommitted   CycleState = "committed"
	StateFailed      CycleState = "failed"
)

// CycleSummary reports what degraded during a refresh cycle. Per-wallet and
// per-asset failures land here instead of failing the cycle.
type CycleSummary struct {
	State          CycleState `json:"state"`
	PartialWallets []string   `json:"partial_wallets,omitempty"`
	SkippedAssets  int        `json:"skipped_assets"`
	StaleAssets    int        `json:"stale_assets"`
	ExhaustedTiers []string   `json:"exhausted_tiers,omitempty"`
	Duration       string     `json:"duration,omitempty"`
}

// PortfolioSnapshot is the full valuation result of one refresh cycle.
// Commit is atomic: either the whole snapshot replaces the previous one or
// the previous one stays authoritative.
type PortfolioSnapshot struct {
	ID            int64           `json:"id"`
	Assets        []Asset         `json:"assets"`
	Collections   []NFTCollection `json:"collections"`
	TotalValueUSD float64         `json:"total_value_usd"`
	Summary       CycleSummary    `json:"summary"`
	TakenAt       time.Time       `json:"taken_at"`
}

// WalletHoldings is the raw, unpriced output of collecting one wallet.
type WalletHoldings struct {
	Wallet  Wallet
	Assets  []Asset
	NFTs    []NFTRecord
	Partial bool
}
