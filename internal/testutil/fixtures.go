package testutil

import (
	"time"

	"github.com/chainfolio/valuator/internal/domain/entities"
)

// Common test addresses
const (
	LINKAddress   = "0x514910771af9ca656af840dff83e8264ecf986ca"
	USDCAddress   = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	PEPEAddress   = "0x6982508145454ce325ddbe47a25d4ec3d2311933"
	BAYCContract  = "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d"
	AzukiContract = "0xed5af388653567af2f388e6224dc7c4b3241c544"
	AliceAddress  = "0x1111111111111111111111111111111111111111"
	BobAddress    = "0x2222222222222222222222222222222222222222"
)

// CreateTestWallet creates a test wallet with default values
func CreateTestWallet(opts ...WalletOption) entities.Wallet {
	w := entities.Wallet{
		ID:      1,
		Chain:   "ethereum",
		Address: AliceAddress,
		Label:   "main",
	}

	for _, opt := range opts {
		opt(&w)
	}

	return w
}

type WalletOption func(*entities.Wallet)

func WalletWithID(id int64) WalletOption {
	return func(w *entities.Wallet) {
		w.ID = id
	}
}

func WalletWithChain(chain string) WalletOption {
	return func(w *entities.Wallet) {
		w.Chain = chain
	}
}

func WalletWithAddress(addr string) WalletOption {
	return func(w *entities.Wallet) {
		w.Address = addr
	}
}

// CreateTestAsset creates a test asset with default values
func CreateTestAsset(opts ...AssetOption) entities.Asset {
	a := entities.Asset{
		WalletID:     1,
		Chain:        "ethereum",
		TokenAddress: LINKAddress,
		Symbol:       "LINK",
		Name:         "ChainLink Token",
		Balance:      100,
		PriceUSD:     14.52,
		ValueUSD:     1452,
	}

	for _, opt := range opts {
		opt(&a)
	}

	return a
}

type AssetOption func(*entities.Asset)

func AssetWithWalletID(id int64) AssetOption {
	return func(a *entities.Asset) {
		a.WalletID = id
	}
}

func AssetWithToken(addr, symbol string) AssetOption {
	return func(a *entities.Asset) {
		a.TokenAddress = addr
		a.Symbol = symbol
	}
}

func AssetWithBalance(balance float64) AssetOption {
	return func(a *entities.Asset) {
		a.Balance = balance
	}
}

func AssetWithPrice(price float64) AssetOption {
	return func(a *entities.Asset) {
		a.PriceUSD = price
		a.ValueUSD = a.Balance * price
	}
}

func AssetWithValue(value float64) AssetOption {
	return func(a *entities.Asset) {
		a.ValueUSD = value
	}
}

func AssetWithBasis(purchasePrice, totalInvested float64) AssetOption {
	return func(a *entities.Asset) {
		a.PurchasePrice = purchasePrice
		a.TotalInvested = totalInvested
	}
}

func AssetStale() AssetOption {
	return func(a *entities.Asset) {
		a.IsStale = true
	}
}

// CreateTestNFTRecord creates a test NFT record with default values
func CreateTestNFTRecord(opts ...NFTOption) entities.NFTRecord {
	n := entities.NFTRecord{
		ContractAddress: BAYCContract,
		TokenID:         "1234",
		Name:            "Bored Ape #1234",
		Symbol:          "BAYC",
		CollectionName:  "Bored Ape Yacht Club",
		FloorPriceUSD:   29000,
	}

	for _, opt := range opts {
		opt(&n)
	}

	return n
}

type NFTOption func(*entities.NFTRecord)

func NFTWithContract(addr string) NFTOption {
	return func(n *entities.NFTRecord) {
		n.ContractAddress = addr
	}
}

func NFTWithTokenID(id string) NFTOption {
	return func(n *entities.NFTRecord) {
		n.TokenID = id
	}
}

func NFTWithName(name string) NFTOption {
	return func(n *entities.NFTRecord) {
		n.Name = name
	}
}

func NFTWithCollectionName(name string) NFTOption {
	return func(n *entities.NFTRecord) {
		n.CollectionName = name
	}
}

func NFTWithFloor(usd float64) NFTOption {
	return func(n *entities.NFTRecord) {
		n.FloorPriceUSD = usd
	}
}

func NFTSpam() NFTOption {
	return func(n *entities.NFTRecord) {
		n.Spam = true
	}
}

// CreateTestQuote creates a test price quote with default values
func CreateTestQuote(opts ...QuoteOption) entities.PriceQuote {
	q := entities.PriceQuote{
		TokenAddress: LINKAddress,
		Network:      "ethereum",
		PriceUSD:     14.52,
		SourceTier:   1,
		SourceName:   "dexscreener",
		FetchedAt:    time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	for _, opt := range opts {
		opt(&q)
	}

	return q
}

type QuoteOption func(*entities.PriceQuote)

func QuoteWithPrice(price float64) QuoteOption {
	return func(q *entities.PriceQuote) {
		q.PriceUSD = price
	}
}

func QuoteWithToken(addr string) QuoteOption {
	return func(q *entities.PriceQuote) {
		q.TokenAddress = addr
	}
}

// CreateTestHiddenEntry creates a hidden overlay entry with default values
func CreateTestHiddenEntry(opts ...HiddenOption) entities.HiddenAssetEntry {
	e := entities.HiddenAssetEntry{
		WalletID:     1,
		TokenAddress: PEPEAddress,
		HiddenAt:     time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
		Reason:       entities.HideReasonAuto,
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

type HiddenOption func(*entities.HiddenAssetEntry)

func HiddenWithToken(addr string) HiddenOption {
	return func(e *entities.HiddenAssetEntry) {
		e.TokenAddress = addr
	}
}

func HiddenWithReason(reason entities.HideReason) HiddenOption {
	return func(e *entities.HiddenAssetEntry) {
		e.Reason = reason
	}
}
