package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"

	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
	"github.com/chainfolio/valuator/internal/testutil"
)

func TestCollect(t *testing.T) {
	wallet := testutil.CreateTestWallet()

	t.Run("native and token balances normalized", func(t *testing.T) {
		sixDecimals := 6
		balance := testutil.NewMockBalanceProvider()
		balance.GetHoldingsFunc = func(ctx context.Context, address, chain string) (*providers.Holdings, error) {
			amount, _ := new(big.Int).SetString("18349432000000000000", 10) // 18.349432 ETH
			return &providers.Holdings{
				NativeAmount:   amount,
				NativeSymbol:   "ETH",
				NativeDecimals: 18,
				Tokens: []providers.TokenBalance{
					{
						TokenAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
						Symbol:       "USDC",
						Name:         "USD Coin",
						Amount:       big.NewInt(2500_000000),
						Decimals:     &sixDecimals,
					},
				},
			}, nil
		}

		svc := NewCollectorService(map[string]providers.BalanceProvider{"ethereum": balance}, nil, 1, zap.NewNop())
		holdings, err := svc.Collect(context.Background(), wallet)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(holdings.Assets) != 2 {
			t.Fatalf("expected 2 assets, got %d", len(holdings.Assets))
		}

		native := holdings.Assets[0]
		if native.TokenAddress != entities.NativeTokenAddress {
			t.Errorf("expected native sentinel address, got %s", native.TokenAddress)
		}
		if math.Abs(native.Balance-18.349432) > 1e-9 {
			t.Errorf("expected native balance 18.349432, got %v", native.Balance)
		}

		token := holdings.Assets[1]
		if token.TokenAddress != testutil.USDCAddress {
			t.Errorf("expected lowercased token address, got %s", token.TokenAddress)
		}
		if math.Abs(token.Balance-2500) > 1e-9 {
			t.Errorf("expected balance 2500, got %v", token.Balance)
		}
	})

	t.Run("zero native balance omitted", func(t *testing.T) {
		balance := testutil.NewMockBalanceProvider()
		balance.GetHoldingsFunc = func(ctx context.Context, address, chain string) (*providers.Holdings, error) {
			return &providers.Holdings{NativeAmount: big.NewInt(0), NativeSymbol: "ETH"}, nil
		}

		svc := NewCollectorService(map[string]providers.BalanceProvider{"ethereum": balance}, nil, 1, zap.NewNop())
		holdings, err := svc.Collect(context.Background(), wallet)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(holdings.Assets) != 0 {
			t.Errorf("expected no assets, got %d", len(holdings.Assets))
		}
	})

	t.Run("missing decimals default to 18", func(t *testing.T) {
		balance := testutil.NewMockBalanceProvider()
		balance.GetHoldingsFunc = func(ctx context.Context, address, chain string) (*providers.Holdings, error) {
			amount, _ := new(big.Int).SetString("5000000000000000000", 10)
			return &providers.Holdings{
				Tokens: []providers.TokenBalance{
					{TokenAddress: testutil.LINKAddress, Symbol: "LINK", Amount: amount},
				},
			}, nil
		}

		svc := NewCollectorService(map[string]providers.BalanceProvider{"ethereum": balance}, nil, 1, zap.NewNop())
		holdings, err := svc.Collect(context.Background(), wallet)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if math.Abs(holdings.Assets[0].Balance-5) > 1e-9 {
			t.Errorf("expected balance 5, got %v", holdings.Assets[0].Balance)
		}
	})

	t.Run("NFT failure keeps balances, marks partial", func(t *testing.T) {
		balance := testutil.NewMockBalanceProvider()
		balance.GetHoldingsFunc = func(ctx context.Context, address, chain string) (*providers.Holdings, error) {
			return &providers.Holdings{NativeAmount: big.NewInt(1e18), NativeSymbol: "ETH", NativeDecimals: 18}, nil
		}
		nft := testutil.NewMockNFTProvider()
		nft.GetOwnedNFTsFunc = func(ctx context.Context, address, chain string) ([]entities.NFTRecord, error) {
			return nil, fmt.Errorf("%w: status 502", entities.ErrProviderUnavailable)
		}

		svc := NewCollectorService(map[string]providers.BalanceProvider{"ethereum": balance}, nft, 1, zap.NewNop())
		holdings, err := svc.Collect(context.Background(), wallet)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !holdings.Partial {
			t.Error("expected partial holdings")
		}
		if len(holdings.Assets) != 1 {
			t.Errorf("expected balances kept, got %d assets", len(holdings.Assets))
		}
	})

	t.Run("unknown chain is a provider error", func(t *testing.T) {
		svc := NewCollectorService(map[string]providers.BalanceProvider{}, nil, 1, zap.NewNop())
		_, err := svc.Collect(context.Background(), wallet)
		if !errors.Is(err, entities.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})
}

func TestCollectAll(t *testing.T) {
	t.Run("failed wallet reported partial, others kept", func(t *testing.T) {
		balance := testutil.NewMockBalanceProvider()
		balance.GetHoldingsFunc = func(ctx context.Context, address, chain string) (*providers.Holdings, error) {
			if address == testutil.BobAddress {
				return nil, fmt.Errorf("%w: connection refused", entities.ErrProviderUnavailable)
			}
			return &providers.Holdings{NativeAmount: big.NewInt(1e18), NativeSymbol: "ETH", NativeDecimals: 18}, nil
		}

		svc := NewCollectorService(map[string]providers.BalanceProvider{"ethereum": balance}, nil, 4, zap.NewNop())

		wallets := []entities.Wallet{
			testutil.CreateTestWallet(testutil.WalletWithID(1)),
			testutil.CreateTestWallet(testutil.WalletWithID(2), testutil.WalletWithAddress(testutil.BobAddress)),
		}

		holdings, partials := svc.CollectAll(context.Background(), wallets)

		if len(holdings) != 1 {
			t.Errorf("expected 1 collected wallet, got %d", len(holdings))
		}
		if len(partials) != 1 || partials[0] != testutil.BobAddress {
			t.Errorf("expected Bob reported partial, got %v", partials)
		}
	})

	t.Run("order independent of scheduling", func(t *testing.T) {
		balance := testutil.NewMockBalanceProvider()
		balance.GetHoldingsFunc = func(ctx context.Context, address, chain string) (*providers.Holdings, error) {
			return &providers.Holdings{NativeAmount: big.NewInt(1e18), NativeSymbol: "ETH", NativeDecimals: 18}, nil
		}

		svc := NewCollectorService(map[string]providers.BalanceProvider{"ethereum": balance}, nil, 4, zap.NewNop())

		var wallets []entities.Wallet
		for i := int64(1); i <= 10; i++ {
			wallets = append(wallets, testutil.CreateTestWallet(testutil.WalletWithID(i)))
		}

		holdings, partials := svc.CollectAll(context.Background(), wallets)
		if len(holdings) != 10 || len(partials) != 0 {
			t.Errorf("expected all 10 collected, got %d holdings, %d partials", len(holdings), len(partials))
		}

		seen := make(map[int64]bool)
		for _, h := range holdings {
			seen[h.Wallet.ID] = true
		}
		if len(seen) != 10 {
			t.Errorf("expected each wallet exactly once, got %v", seen)
		}
	})
}

func TestNormalizeUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		expected float64
	}{
		{name: "18 decimals", amount: "18349432000000000000", decimals: 18, expected: 18.349432},
		{name: "6 decimals", amount: "2500000000", decimals: 6, expected: 2500},
		{name: "zero", amount: "0", decimals: 18, expected: 0},
		{name: "sub-unit dust", amount: "1", decimals: 18, expected: 1e-18},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			amount, _ := new(big.Int).SetString(tt.amount, 10)
			got := normalizeUnits(amount, tt.decimals)
			if math.Abs(got-tt.expected) > 1e-12 {
				t.Errorf("expected %v, got %v", tt.expected, got)
			}
		})
	}
}
