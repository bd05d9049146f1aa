package entities

import "time"

// HideReason records how an asset ended up in the hidden overlay.
type HideReason string

const (
	// HideReasonManual marks an explicit user hide. Never auto-reversed.
	HideReasonManual HideReason = "manual"
	// HideReasonAuto marks a dust hide (value below the visibility
	// threshold). Removed automatically when the value recovers.
	HideReasonAuto HideReason = "auto"
)

// HiddenAssetEntry is one row of the persisted hidden-asset overlay. Entries
// survive across refresh cycles and are only mutated by the hidden-asset
// reconciliation pass or explicit user action.
type HiddenAssetEntry struct {
	WalletID     int64      `db:"wallet_id" json:"wallet_id"`
	TokenAddress string     `db:"token_address" json:"token_address"`
	HiddenAt     time.Time  `db:"hidden_at" json:"hidden_at"`
	Reason       HideReason `db:"reason" json:"reason"`
}

// Key returns the asset identity this entry hides.
func (e *HiddenAssetEntry) Key() AssetKey {
	return AssetKey{WalletID: e.WalletID, TokenAddress: e.TokenAddress}
}
