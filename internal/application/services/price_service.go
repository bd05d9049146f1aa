package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
)

// batchWorkers bounds concurrent batches against one source. The source's
// own rate limiter is the real throttle; this just caps in-flight requests.
const batchWorkers = 4

// PriceResolverService resolves one authoritative USD price per token through
// an ordered fallback chain of sources. Quotes are cached for the duration of
// a single refresh cycle only.
type PriceResolverService struct {
	tiers        map[string][]providers.PriceSource
	nativeSource providers.NativePriceSource
	cache        *gocache.Cache
	logger       *zap.Logger

	exhausted map[string]struct{}
}

// NewPriceResolverService creates a new price resolver. tiers maps a network
// identifier to its ordered fallback chain.
func NewPriceResolverService(
	tiers map[string][]providers.PriceSource,
	nativeSource providers.NativePriceSource,
	logger *zap.Logger,
) *PriceResolverService {
	return &PriceResolverService{
		tiers:        tiers,
		nativeSource: nativeSource,
		cache:        gocache.New(gocache.NoExpiration, 0),
		logger:       logger,
		exhausted:    make(map[string]struct{}),
	}
}

// BeginCycle drops all cached quotes. Must be called at the start of every
// refresh cycle so stale prices are never served across cycles.
func (s *PriceResolverService) BeginCycle() {
	s.cache.Flush()
	s.exhausted = make(map[string]struct{})
}

// ExhaustedTiers reports which source tiers ran out of answers during the
// current cycle, for the cycle summary.
func (s *PriceResolverService) ExhaustedTiers() []string {
	keys := lo.Keys(s.exhausted)
	return keys
}

// Resolve prices the given token addresses on one network. Tokens absent
// from the returned map could not be priced by any tier. The native sentinel
// address is never sent to contract-price sources.
func (s *PriceResolverService) Resolve(ctx context.Context, network string, tokenAddresses []string) map[string]entities.PriceQuote {
	quotes := make(map[string]entities.PriceQuote)

	remaining := lo.FilterMap(tokenAddresses, func(addr string, _ int) (string, bool) {
		lower := strings.ToLower(addr)
		if lower == entities.NativeTokenAddress {
			return "", false
		}
		if cached, ok := s.cache.Get(cacheKey(network, lower)); ok {
			quotes[lower] = cached.(entities.PriceQuote)
			return "", false
		}
		return lower, true
	})
	remaining = lo.Uniq(remaining)

	for tier, source := range s.tiers[network] {
		if len(remaining) == 0 {
			break
		}
		priced := s.queryTier(ctx, source, tier+1, network, remaining)
		for addr, quote := range priced {
			quotes[addr] = quote
			s.cache.Set(cacheKey(network, addr), quote, gocache.NoExpiration)
		}
		if len(priced) == 0 {
			s.exhausted[fmt.Sprintf("%s/%s", network, source.Name())] = struct{}{}
		}
		remaining = lo.Filter(remaining, func(addr string, _ int) bool {
			_, ok := priced[addr]
			return !ok
		})
	}

	if len(remaining) > 0 {
		s.logger.Warn("Tokens unpriced after all tiers",
			zap.String("network", network),
			zap.Int("count", len(remaining)),
		)
	}

	return quotes
}

// queryTier sends the remainder to one source in max-batch-size chunks,
// running chunks concurrently up to batchWorkers. Any source error exhausts
// the tier for that chunk only; the chunk's tokens simply stay unpriced and
// advance to the next tier.
func (s *PriceResolverService) queryTier(
	ctx context.Context,
	source providers.PriceSource,
	tier int,
	network string,
	addresses []string,
) map[string]entities.PriceQuote {
	batchSize := source.MaxBatchSize()
	if batchSize <= 0 {
		batchSize = 1
	}

	var mu sync.Mutex
	priced := make(map[string]entities.PriceQuote)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(batchWorkers)

	for _, chunk := range lo.Chunk(addresses, batchSize) {
		g.Go(func() error {
			prices, err := source.GetPrices(gCtx, network, chunk)
			if err != nil {
				level := s.logger.Warn
				if errors.Is(err, entities.ErrProviderRejected) {
					level = s.logger.Debug
				}
				level("Price source failed for batch",
					zap.String("source", source.Name()),
					zap.Int("tier", tier),
					zap.String("network", network),
					zap.Int("batch_size", len(chunk)),
					zap.Error(err),
				)
				return nil
			}

			now := time.Now().UTC()
			mu.Lock()
			defer mu.Unlock()
			for addr, price := range prices {
				if price <= 0 {
					continue
				}
				addr = strings.ToLower(addr)
				priced[addr] = entities.PriceQuote{
					TokenAddress: addr,
					Network:      network,
					PriceUSD:     price,
					SourceTier:   tier,
					SourceName:   source.Name(),
					FetchedAt:    now,
				}
			}
			return nil
		})
	}
	g.Wait()

	return priced
}

// ResolveNative prices a chain's native coin via the dedicated ticker lookup.
// Runs regardless of what happened to the contract-price tiers.
func (s *PriceResolverService) ResolveNative(ctx context.Context, network, symbol string) (entities.PriceQuote, bool) {
	key := cacheKey(network, entities.NativeTokenAddress)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(entities.PriceQuote), true
	}

	price, err := s.nativeSource.GetTickerPrice(ctx, symbol)
	if err != nil || price <= 0 {
		s.logger.Warn("Native ticker lookup failed",
			zap.String("network", network),
			zap.String("symbol", symbol),
			zap.Error(err),
		)
		return entities.PriceQuote{}, false
	}

	quote := entities.PriceQuote{
		TokenAddress: entities.NativeTokenAddress,
		Network:      network,
		PriceUSD:     price,
		SourceTier:   0,
		SourceName:   "native-ticker",
		FetchedAt:    time.Now().UTC(),
	}
	s.cache.Set(key, quote, gocache.NoExpiration)
	return quote, true
}

func cacheKey(network, tokenAddress string) string {
	return network + ":" + tokenAddress
}
