package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chainfolio/valuator/internal/application/services"
	"github.com/chainfolio/valuator/internal/config"
	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
	"github.com/chainfolio/valuator/internal/infrastructure/cache"
	"github.com/chainfolio/valuator/internal/infrastructure/database"
	"github.com/chainfolio/valuator/internal/infrastructure/evm"
	"github.com/chainfolio/valuator/internal/infrastructure/nftscan"
	"github.com/chainfolio/valuator/internal/infrastructure/pricing"
	"github.com/chainfolio/valuator/internal/presentation/middleware"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Setup logger
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)
	defer logger.Sync()

	chains := make([]string, 0, len(cfg.EVM.RPCURLs))
	for chain := range cfg.EVM.RPCURLs {
		chains = append(chains, chain)
	}
	logger.Info("Starting portfolio valuator",
		zap.Strings("chains", chains),
		zap.Duration("interval", cfg.Refresh.Interval),
	)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to database
	db, err := database.NewPostgresDB(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Connect to Redis cache (optional)
	redisCache, err := cache.NewRedisCache(cfg.Redis, cfg.API.CacheTTL, logger)
	if err != nil {
		logger.Warn("Failed to connect to Redis, running without cache", zap.Error(err))
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	// Create repositories
	walletRepo := database.NewWalletRepo(db.DB())
	snapshotRepo := database.NewSnapshotRepo(db.DB())
	hiddenRepo := database.NewHiddenAssetRepo(db.DB())
	overrideRepo := database.NewOverrideRepo(db.DB())

	// Connect one EVM client per configured chain
	tokensByChain := parseTokenContracts(cfg.EVM.TokenContracts)
	balanceProviders := make(map[string]providers.BalanceProvider, len(cfg.EVM.RPCURLs))
	for chain := range cfg.EVM.RPCURLs {
		client, err := evm.NewClient(cfg.EVM, chain, tokensByChain[chain], logger)
		if err != nil {
			logger.Fatal("Failed to connect to EVM node",
				zap.String("chain", chain), zap.Error(err))
		}
		defer client.Close()
		balanceProviders[chain] = client
	}

	// Price tiers: DEX pairs first, on-chain pool aggregator second,
	// market data API last. The same adapters serve every chain.
	dexScreener := pricing.NewDEXScreenerSource(cfg.Pricing.RateLimitRPS, cfg.Pricing.RequestTimeout, cfg.Pricing.DEXBatchSize, logger)
	geckoTerminal := pricing.NewGeckoTerminalSource(cfg.Pricing.RateLimitRPS, cfg.Pricing.RequestTimeout, logger)
	coinGecko := pricing.NewCoinGeckoSource(cfg.Pricing.RateLimitRPS, cfg.Pricing.RequestTimeout, cfg.Pricing.MarketBatchSize, cfg.Pricing.MarketAPIKey, logger)

	priceSources := make(map[string][]providers.PriceSource, len(balanceProviders))
	for chain := range balanceProviders {
		priceSources[chain] = []providers.PriceSource{dexScreener, geckoTerminal, coinGecko}
	}

	nftClient := nftscan.NewClient(cfg.NFT, logger)

	// Create services
	collector := services.NewCollectorService(balanceProviders, nftClient, cfg.Refresh.WalletWorkers, logger)
	resolver := services.NewPriceResolverService(priceSources, coinGecko, logger)
	aggregator := services.NewNFTAggregatorService(logger)
	valuation := services.NewValuationService(logger)
	hidden := services.NewHiddenAssetService(hiddenRepo, cfg.Refresh.HideThresholdUSD, logger)

	orchestrator := services.NewOrchestratorService(
		collector, resolver, aggregator, valuation, hidden,
		walletRepo, snapshotRepo, overrideRepo,
		redisCache, logger,
	)

	// Start metrics server
	go startMetricsServer(cfg.Refresh.MetricsPort, logger)

	// Run refresh cycles until shutdown
	metrics := middleware.NewRefreshMetrics()
	go runRefreshLoop(ctx, orchestrator, metrics, cfg.Refresh.Interval, logger)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, stopping valuator...")
	cancel()

	logger.Info("Valuator stopped")
}

// runRefreshLoop runs one cycle immediately, then one per interval tick.
// A cycle still in flight when the next tick arrives makes that tick a no-op.
func runRefreshLoop(
	ctx context.Context,
	orchestrator *services.OrchestratorService,
	metrics *middleware.RefreshMetrics,
	interval time.Duration,
	logger *zap.Logger,
) {
	runCycle(ctx, orchestrator, metrics, logger)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runCycle(ctx, orchestrator, metrics, logger)
		}
	}
}

func runCycle(ctx context.Context, orchestrator *services.OrchestratorService, metrics *middleware.RefreshMetrics, logger *zap.Logger) {
	start := time.Now()
	metrics.CyclesTotal.Inc()

	snapshot, err := orchestrator.RefreshPortfolio(ctx)
	metrics.CycleDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, entities.ErrRefreshInProgress) {
			logger.Warn("Skipping tick, previous cycle still running")
			return
		}
		if errors.Is(err, context.Canceled) {
			return
		}
		metrics.CyclesFailed.Inc()
		logger.Error("Refresh cycle failed", zap.Error(err))
		return
	}

	metrics.PortfolioValue.Set(snapshot.TotalValueUSD)
	metrics.StaleAssets.Set(float64(snapshot.Summary.StaleAssets))
	metrics.PartialWallets.Set(float64(len(snapshot.Summary.PartialWallets)))
}

// parseTokenContracts splits "chain/0xaddress" entries into a per-chain list.
func parseTokenContracts(entries []string) map[string][]string {
	byChain := make(map[string][]string)
	for _, entry := range entries {
		parts := strings.SplitN(strings.TrimSpace(entry), "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		byChain[parts[0]] = append(byChain[parts[0]], parts[1])
	}
	return byChain
}

func setupLogger(level, format string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoding := "json"
	encoderConfig := zap.NewProductionEncoderConfig()
	if format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, _ := config.Build()
	return logger
}

func startMetricsServer(port int, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", zap.String("addr", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Metrics server error", zap.Error(err))
	}
}
