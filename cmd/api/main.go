package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/chainfolio/valuator/internal/application/services"
	"github.com/chainfolio/valuator/internal/config"
	"github.com/chainfolio/valuator/internal/domain/providers"
	"github.com/chainfolio/valuator/internal/infrastructure/cache"
	"github.com/chainfolio/valuator/internal/infrastructure/database"
	"github.com/chainfolio/valuator/internal/infrastructure/evm"
	"github.com/chainfolio/valuator/internal/infrastructure/nftscan"
	"github.com/chainfolio/valuator/internal/infrastructure/pricing"
	"github.com/chainfolio/valuator/internal/presentation/handlers"
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

	logger.Info("Starting portfolio valuator API",
		zap.Int("port", cfg.API.Port),
	)

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

	// The API can trigger a refresh on demand, so it carries the same
	// provider stack as the daemon.
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
	hiddenService := services.NewHiddenAssetService(hiddenRepo, cfg.Refresh.HideThresholdUSD, logger)

	orchestrator := services.NewOrchestratorService(
		collector, resolver, aggregator, valuation, hiddenService,
		walletRepo, snapshotRepo, overrideRepo,
		redisCache, logger,
	)

	// Create handlers
	portfolioHandler := handlers.NewPortfolioHandler(orchestrator, logger)
	hiddenHandler := handlers.NewHiddenHandler(hiddenService, logger)

	var cacheChecker handlers.HealthChecker
	if redisCache != nil {
		cacheChecker = redisCache
	}
	healthHandler := handlers.NewHealthHandler(db, cacheChecker)

	// Setup router
	r := chi.NewRouter()

	// Middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RateLimiter(cfg.API.RateLimitRPS))

	// Health endpoints (no rate limiting)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		portfolioHandler.RegisterRoutes(r)
		hiddenHandler.RegisterRoutes(r)
	})

	// Start server
	addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.API.ReadTimeout,
		WriteTimeout: cfg.API.WriteTimeout,
	}

	// Run server in goroutine
	go func() {
		logger.Info("API server starting", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Received shutdown signal, shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}

	logger.Info("Server stopped")
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
