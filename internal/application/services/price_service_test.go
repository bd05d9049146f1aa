package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
	"github.com/chainfolio/valuator/internal/testutil"
)

func newResolver(nativeSource providers.NativePriceSource, sources ...providers.PriceSource) *PriceResolverService {
	return NewPriceResolverService(
		map[string][]providers.PriceSource{"ethereum": sources},
		nativeSource,
		zap.NewNop(),
	)
}

func TestResolve_TierFallback(t *testing.T) {
	primary := testutil.NewMockPriceSource("primary", 30)
	primary.GetPricesFunc = func(ctx context.Context, network string, addrs []string) (map[string]float64, error) {
		return map[string]float64{testutil.LINKAddress: 14.52}, nil
	}
	secondary := testutil.NewMockPriceSource("secondary", 30)
	secondary.GetPricesFunc = func(ctx context.Context, network string, addrs []string) (map[string]float64, error) {
		return map[string]float64{testutil.USDCAddress: 1.0}, nil
	}

	resolver := newResolver(testutil.NewMockNativePriceSource(), primary, secondary)
	resolver.BeginCycle()

	quotes := resolver.Resolve(context.Background(), "ethereum", []string{testutil.LINKAddress, testutil.USDCAddress})

	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	if quotes[testutil.LINKAddress].SourceTier != 1 || quotes[testutil.LINKAddress].SourceName != "primary" {
		t.Errorf("expected LINK from tier 1, got %+v", quotes[testutil.LINKAddress])
	}
	if quotes[testutil.USDCAddress].SourceTier != 2 || quotes[testutil.USDCAddress].SourceName != "secondary" {
		t.Errorf("expected USDC from tier 2, got %+v", quotes[testutil.USDCAddress])
	}

	// The secondary tier only saw the remainder.
	batches := secondary.BatchCalls()
	if len(batches) != 1 || len(batches[0]) != 1 || batches[0][0] != testutil.USDCAddress {
		t.Errorf("expected secondary to receive only the unpriced token, got %v", batches)
	}
}

func TestResolve_TierErrorAdvancesRemainder(t *testing.T) {
	primary := testutil.NewMockPriceSource("primary", 30)
	primary.GetPricesFunc = func(ctx context.Context, network string, addrs []string) (map[string]float64, error) {
		return nil, fmt.Errorf("%w: status 500", entities.ErrProviderUnavailable)
	}
	secondary := testutil.NewMockPriceSource("secondary", 30)
	secondary.GetPricesFunc = func(ctx context.Context, network string, addrs []string) (map[string]float64, error) {
		return map[string]float64{testutil.LINKAddress: 14.52}, nil
	}

	resolver := newResolver(testutil.NewMockNativePriceSource(), primary, secondary)
	resolver.BeginCycle()

	quotes := resolver.Resolve(context.Background(), "ethereum", []string{testutil.LINKAddress})

	if quotes[testutil.LINKAddress].SourceName != "secondary" {
		t.Errorf("expected fallback to secondary, got %+v", quotes[testutil.LINKAddress])
	}

	exhausted := resolver.ExhaustedTiers()
	if len(exhausted) != 1 || exhausted[0] != "ethereum/primary" {
		t.Errorf("expected primary marked exhausted, got %v", exhausted)
	}
}

func TestResolve_AllTiersFail(t *testing.T) {
	rejected := func(ctx context.Context, network string, addrs []string) (map[string]float64, error) {
		return nil, fmt.Errorf("%w: status 400", entities.ErrProviderRejected)
	}
	primary := testutil.NewMockPriceSource("primary", 30)
	primary.GetPricesFunc = rejected
	secondary := testutil.NewMockPriceSource("secondary", 30)
	secondary.GetPricesFunc = rejected

	resolver := newResolver(testutil.NewMockNativePriceSource(), primary, secondary)
	resolver.BeginCycle()

	quotes := resolver.Resolve(context.Background(), "ethereum", []string{testutil.PEPEAddress})

	if len(quotes) != 0 {
		t.Errorf("expected no quotes when every tier fails, got %v", quotes)
	}
	if len(resolver.ExhaustedTiers()) != 2 {
		t.Errorf("expected both tiers exhausted, got %v", resolver.ExhaustedTiers())
	}
}

func TestResolve_NativeSentinelNeverSentToTiers(t *testing.T) {
	primary := testutil.NewMockPriceSource("primary", 30)

	resolver := newResolver(testutil.NewMockNativePriceSource(), primary)
	resolver.BeginCycle()

	resolver.Resolve(context.Background(), "ethereum", []string{entities.NativeTokenAddress, testutil.LINKAddress})

	for _, batch := range primary.BatchCalls() {
		for _, addr := range batch {
			if addr == entities.NativeTokenAddress {
				t.Fatal("native sentinel must never reach a contract price source")
			}
		}
	}
}

func TestResolve_Batching(t *testing.T) {
	primary := testutil.NewMockPriceSource("primary", 2)
	primary.GetPricesFunc = func(ctx context.Context, network string, addrs []string) (map[string]float64, error) {
		prices := make(map[string]float64, len(addrs))
		for _, a := range addrs {
			prices[a] = 1
		}
		return prices, nil
	}

	resolver := newResolver(testutil.NewMockNativePriceSource(), primary)
	resolver.BeginCycle()

	addrs := []string{
		"0x0000000000000000000000000000000000000001",
		"0x0000000000000000000000000000000000000002",
		"0x0000000000000000000000000000000000000003",
	}
	quotes := resolver.Resolve(context.Background(), "ethereum", addrs)

	if len(quotes) != 3 {
		t.Errorf("expected 3 quotes, got %d", len(quotes))
	}
	// Batches run concurrently, so only the size split is deterministic.
	batches := primary.BatchCalls()
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches of max size 2, got %d", len(batches))
	}
	sizes := []int{len(batches[0]), len(batches[1])}
	sort.Ints(sizes)
	if sizes[0] != 1 || sizes[1] != 2 {
		t.Errorf("expected batch sizes 1 and 2, got %v", sizes)
	}
}

func TestResolve_ZeroBatchSizeClamped(t *testing.T) {
	// A source reporting a non-positive batch size must not crash the
	// resolver; it gets queried one address at a time.
	primary := testutil.NewMockPriceSource("primary", 0)
	primary.GetPricesFunc = func(ctx context.Context, network string, addrs []string) (map[string]float64, error) {
		prices := make(map[string]float64, len(addrs))
		for _, a := range addrs {
			prices[a] = 1
		}
		return prices, nil
	}

	resolver := newResolver(testutil.NewMockNativePriceSource(), primary)
	resolver.BeginCycle()

	quotes := resolver.Resolve(context.Background(), "ethereum", []string{testutil.LINKAddress, testutil.USDCAddress})

	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
	for _, batch := range primary.BatchCalls() {
		if len(batch) != 1 {
			t.Errorf("expected single-address batches, got %v", batch)
		}
	}
}

func TestResolve_BatchesRunConcurrently(t *testing.T) {
	// Both chunks must be in flight at once; a sequential resolver would
	// deadlock on the barrier.
	var barrier sync.WaitGroup
	barrier.Add(2)

	primary := testutil.NewMockPriceSource("primary", 1)
	primary.GetPricesFunc = func(ctx context.Context, network string, addrs []string) (map[string]float64, error) {
		barrier.Done()
		barrier.Wait()
		return map[string]float64{addrs[0]: 1}, nil
	}

	resolver := newResolver(testutil.NewMockNativePriceSource(), primary)
	resolver.BeginCycle()

	quotes := resolver.Resolve(context.Background(), "ethereum", []string{testutil.LINKAddress, testutil.USDCAddress})

	if len(quotes) != 2 {
		t.Fatalf("expected 2 quotes, got %d", len(quotes))
	}
}

func TestResolve_CycleCache(t *testing.T) {
	calls := 0
	primary := testutil.NewMockPriceSource("primary", 30)
	primary.GetPricesFunc = func(ctx context.Context, network string, addrs []string) (map[string]float64, error) {
		calls++
		return map[string]float64{testutil.LINKAddress: 14.52}, nil
	}

	resolver := newResolver(testutil.NewMockNativePriceSource(), primary)
	resolver.BeginCycle()

	resolver.Resolve(context.Background(), "ethereum", []string{testutil.LINKAddress})
	resolver.Resolve(context.Background(), "ethereum", []string{testutil.LINKAddress})
	if calls != 1 {
		t.Errorf("expected cached quote within the cycle, got %d source calls", calls)
	}

	// A new cycle must not serve last cycle's quotes.
	resolver.BeginCycle()
	resolver.Resolve(context.Background(), "ethereum", []string{testutil.LINKAddress})
	if calls != 2 {
		t.Errorf("expected fresh fetch after cycle start, got %d source calls", calls)
	}
}

func TestResolveNative(t *testing.T) {
	t.Run("ticker path prices the native coin", func(t *testing.T) {
		native := testutil.NewMockNativePriceSource()
		native.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
			if symbol != "ETH" {
				t.Errorf("expected ETH ticker, got %s", symbol)
			}
			return 3744.60, nil
		}

		resolver := newResolver(native)
		resolver.BeginCycle()

		quote, ok := resolver.ResolveNative(context.Background(), "ethereum", "ETH")
		if !ok {
			t.Fatal("expected native quote")
		}
		if quote.PriceUSD != 3744.60 || quote.SourceTier != 0 || quote.SourceName != "native-ticker" {
			t.Errorf("unexpected native quote: %+v", quote)
		}
		if quote.TokenAddress != entities.NativeTokenAddress {
			t.Errorf("expected sentinel address, got %s", quote.TokenAddress)
		}
	})

	t.Run("lookup failure yields no quote", func(t *testing.T) {
		native := testutil.NewMockNativePriceSource()
		native.GetTickerPriceFunc = func(ctx context.Context, symbol string) (float64, error) {
			return 0, errors.New("timeout")
		}

		resolver := newResolver(native)
		resolver.BeginCycle()

		if _, ok := resolver.ResolveNative(context.Background(), "ethereum", "ETH"); ok {
			t.Error("expected no quote on failure")
		}
	})
}
