package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/repositories"
	"github.com/chainfolio/valuator/internal/infrastructure/cache"
)

const snapshotCacheKey = "portfolio:snapshot:last"

// OrchestratorService sequences one refresh cycle: collect -> price ->
// aggregate -> valuate -> reconcile -> commit. Per-wallet and per-asset
// failures degrade the cycle summary; only storage failures (or caller
// cancellation) abort the cycle, leaving the previous snapshot authoritative.
type OrchestratorService struct {
	collector  *CollectorService
	resolver   *PriceResolverService
	aggregator *NFTAggregatorService
	valuation  *ValuationService
	hidden     *HiddenAssetService

	walletRepo   repositories.WalletRepository
	snapshotRepo repositories.SnapshotRepository
	overrideRepo repositories.OverrideRepository

	cache  *cache.RedisCache
	logger *zap.Logger

	// refreshMu enforces single-flight: at most one cycle per portfolio.
	refreshMu sync.Mutex

	stateMu sync.RWMutex
	state   entities.CycleState

	metrics *CycleMetrics
}

// CycleMetrics tracks refresh cycle outcomes
type CycleMetrics struct {
	mu             sync.RWMutex
	CyclesTotal    int64
	CyclesFailed   int64
	LastCycleTime  time.Time
	LastDurationMs int64
	StaleAssets    int64
	PartialWallets int64
}

// NewOrchestratorService creates a new portfolio orchestrator
func NewOrchestratorService(
	collector *CollectorService,
	resolver *PriceResolverService,
	aggregator *NFTAggregatorService,
	valuation *ValuationService,
	hidden *HiddenAssetService,
	walletRepo repositories.WalletRepository,
	snapshotRepo repositories.SnapshotRepository,
	overrideRepo repositories.OverrideRepository,
	redisCache *cache.RedisCache,
	logger *zap.Logger,
) *OrchestratorService {
	return &OrchestratorService{
		collector:    collector,
		resolver:     resolver,
		aggregator:   aggregator,
		valuation:    valuation,
		hidden:       hidden,
		walletRepo:   walletRepo,
		snapshotRepo: snapshotRepo,
		overrideRepo: overrideRepo,
		cache:        redisCache,
		logger:       logger,
		state:        entities.StateIdle,
		metrics:      &CycleMetrics{},
	}
}

// State returns the orchestrator's current cycle state.
func (s *OrchestratorService) State() entities.CycleState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *OrchestratorService) setState(state entities.CycleState) {
	s.stateMu.Lock()
	s.state = state
	s.stateMu.Unlock()
}

// GetMetrics returns a copy of the current cycle metrics
func (s *OrchestratorService) GetMetrics() CycleMetrics {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()
	return CycleMetrics{
		CyclesTotal:    s.metrics.CyclesTotal,
		CyclesFailed:   s.metrics.CyclesFailed,
		LastCycleTime:  s.metrics.LastCycleTime,
		LastDurationMs: s.metrics.LastDurationMs,
		StaleAssets:    s.metrics.StaleAssets,
		PartialWallets: s.metrics.PartialWallets,
	}
}

// RefreshPortfolio runs one full refresh cycle and commits the resulting
// snapshot. A request arriving while a cycle is in flight is rejected with
// ErrRefreshInProgress; it never interleaves with the running cycle.
func (s *OrchestratorService) RefreshPortfolio(ctx context.Context) (*entities.PortfolioSnapshot, error) {
	if !s.refreshMu.TryLock() {
		return nil, entities.ErrRefreshInProgress
	}
	defer s.refreshMu.Unlock()

	start := time.Now()
	snapshot, err := s.runCycle(ctx)

	s.metrics.mu.Lock()
	s.metrics.CyclesTotal++
	s.metrics.LastCycleTime = time.Now()
	s.metrics.LastDurationMs = time.Since(start).Milliseconds()
	if err != nil {
		s.metrics.CyclesFailed++
	} else {
		s.metrics.StaleAssets = int64(snapshot.Summary.StaleAssets)
		s.metrics.PartialWallets = int64(len(snapshot.Summary.PartialWallets))
	}
	s.metrics.mu.Unlock()

	return snapshot, err
}

func (s *OrchestratorService) runCycle(ctx context.Context) (*entities.PortfolioSnapshot, error) {
	start := time.Now()

	wallets, err := s.walletRepo.GetAll(ctx)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: read wallet list: %v", entities.ErrStorageFailure, err))
	}
	walletIDs := make([]int64, len(wallets))
	for i, w := range wallets {
		walletIDs[i] = w.ID
	}

	prior, err := s.snapshotRepo.GetAssets(ctx, walletIDs)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: read prior snapshot: %v", entities.ErrStorageFailure, err))
	}
	overrides, err := s.overrideRepo.GetAll(ctx)
	if err != nil {
		return nil, s.fail(fmt.Errorf("%w: read manual overrides: %v", entities.ErrStorageFailure, err))
	}

	s.resolver.BeginCycle()

	s.setState(entities.StateCollecting)
	holdings, partials := s.collector.CollectAll(ctx, wallets)
	if err := s.checkCancelled(ctx); err != nil {
		return nil, err
	}

	s.setState(entities.StatePricing)
	quotes := s.resolvePrices(ctx, holdings)
	if err := s.checkCancelled(ctx); err != nil {
		return nil, err
	}

	s.setState(entities.StateAggregating)
	var collections []entities.NFTCollection
	for _, h := range holdings {
		collections = append(collections, s.aggregator.Aggregate(h.Wallet.ID, h.NFTs)...)
	}

	s.setState(entities.StateValuating)
	assets, staleCount, skippedCount := s.valuateHoldings(holdings, quotes, prior, overrides)
	if err := s.checkCancelled(ctx); err != nil {
		return nil, err
	}

	s.setState(entities.StateReconciling)
	overlay, err := s.hidden.Reconcile(ctx, assets)
	if err != nil {
		return nil, s.fail(err)
	}
	for i := range assets {
		_, assets[i].Hidden = overlay[assets[i].Key()]
	}

	total := 0.0
	for _, a := range assets {
		total += a.ValueUSD
	}
	for _, c := range collections {
		total += c.TotalValueUSD
	}

	snapshot := &entities.PortfolioSnapshot{
		Assets:        assets,
		Collections:   collections,
		TotalValueUSD: total,
		TakenAt:       time.Now().UTC(),
		Summary: entities.CycleSummary{
			State:          entities.StateCommitted,
			PartialWallets: partials,
			SkippedAssets:  skippedCount,
			StaleAssets:    staleCount,
			ExhaustedTiers: s.resolver.ExhaustedTiers(),
			Duration:       time.Since(start).Round(time.Millisecond).String(),
		},
	}

	if err := s.snapshotRepo.Commit(ctx, snapshot, walletIDs); err != nil {
		return nil, s.fail(fmt.Errorf("%w: commit snapshot: %v", entities.ErrStorageFailure, err))
	}

	s.invalidateSnapshotCache(ctx)
	s.setState(entities.StateCommitted)

	s.logger.Info("Refresh cycle committed",
		zap.Int("wallets", len(wallets)),
		zap.Int("assets", len(assets)),
		zap.Int("collections", len(collections)),
		zap.Int("stale_assets", staleCount),
		zap.Strings("partial_wallets", partials),
		zap.Duration("duration", time.Since(start)),
	)

	return snapshot, nil
}

// resolvePrices groups collected token addresses by chain, runs the tier
// chain per network, and prices each chain's native coin through the
// dedicated ticker path.
func (s *OrchestratorService) resolvePrices(ctx context.Context, holdings []*entities.WalletHoldings) map[string]entities.PriceQuote {
	byChain := make(map[string][]string)
	nativeSymbols := make(map[string]string)
	for _, h := range holdings {
		for _, a := range h.Assets {
			if a.IsNative() {
				nativeSymbols[a.Chain] = a.Symbol
				continue
			}
			byChain[a.Chain] = append(byChain[a.Chain], a.TokenAddress)
		}
	}

	quotes := make(map[string]entities.PriceQuote)
	for chain, addrs := range byChain {
		for addr, quote := range s.resolver.Resolve(ctx, chain, addrs) {
			quotes[quoteKey(chain, addr)] = quote
		}
	}
	// The native lookup runs even when every token tier came up empty.
	for chain, symbol := range nativeSymbols {
		if quote, ok := s.resolver.ResolveNative(ctx, chain, symbol); ok {
			quotes[quoteKey(chain, entities.NativeTokenAddress)] = quote
		}
	}

	return quotes
}

func (s *OrchestratorService) valuateHoldings(
	holdings []*entities.WalletHoldings,
	quotes map[string]entities.PriceQuote,
	prior map[entities.AssetKey]entities.Asset,
	overrides map[entities.AssetKey]entities.ManualOverride,
) ([]entities.Asset, int, int) {
	var assets []entities.Asset
	stale, skipped := 0, 0

	for _, h := range holdings {
		for _, raw := range h.Assets {
			var quote *entities.PriceQuote
			if q, ok := quotes[quoteKey(raw.Chain, raw.TokenAddress)]; ok {
				quote = &q
			}
			var priorAsset *entities.Asset
			if p, ok := prior[raw.Key()]; ok {
				priorAsset = &p
			}
			var override *entities.ManualOverride
			if o, ok := overrides[raw.Key()]; ok {
				override = &o
			}

			valued := s.valuation.Valuate(raw, quote, priorAsset, override)
			if valued.IsStale {
				stale++
			}
			// No quote this cycle and nothing to carry: the asset rode
			// through unvalued.
			if valued.IsStale && valued.PriceUSD == 0 {
				skipped++
			}
			assets = append(assets, valued)
		}
	}

	return assets, stale, skipped
}

// LastSnapshot returns the most recent committed snapshot, serving from the
// Redis cache when possible.
func (s *OrchestratorService) LastSnapshot(ctx context.Context) (*entities.PortfolioSnapshot, error) {
	if s.cache != nil {
		var cached entities.PortfolioSnapshot
		if err := s.cache.Get(ctx, snapshotCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	snapshot, err := s.snapshotRepo.GetLast(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: read last snapshot: %v", entities.ErrStorageFailure, err)
	}
	if snapshot == nil {
		return nil, nil
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snapshotCacheKey, snapshot); err != nil {
			s.logger.Warn("Failed to cache snapshot", zap.Error(err))
		}
	}

	return snapshot, nil
}

func (s *OrchestratorService) invalidateSnapshotCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, snapshotCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate snapshot cache", zap.Error(err))
	}
}

// checkCancelled aborts the cycle at a suspension point. The previous
// committed snapshot stays intact; state returns to Idle, not Failed.
func (s *OrchestratorService) checkCancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		s.setState(entities.StateIdle)
		s.logger.Info("Refresh cycle cancelled", zap.Error(err))
		return err
	}
	return nil
}

func (s *OrchestratorService) fail(err error) error {
	s.setState(entities.StateFailed)
	if errors.Is(err, entities.ErrStorageFailure) {
		s.logger.Error("Refresh cycle failed, last committed snapshot remains authoritative", zap.Error(err))
	} else {
		s.logger.Error("Refresh cycle failed", zap.Error(err))
	}
	return err
}

func quoteKey(chain, tokenAddress string) string {
	return chain + ":" + strings.ToLower(tokenAddress)
}
