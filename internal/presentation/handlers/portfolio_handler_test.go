package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/application/services"
	"github.com/chainfolio/valuator/internal/domain/entities"
	"github.com/chainfolio/valuator/internal/domain/providers"
	"github.com/chainfolio/valuator/internal/testutil"
)

func setupPortfolioHandler(
	walletRepo *testutil.MockWalletRepository,
	snapshotRepo *testutil.MockSnapshotRepository,
) *PortfolioHandler {
	logger := zap.NewNop()
	collector := services.NewCollectorService(map[string]providers.BalanceProvider{}, nil, 1, logger)
	resolver := services.NewPriceResolverService(map[string][]providers.PriceSource{}, testutil.NewMockNativePriceSource(), logger)
	orchestrator := services.NewOrchestratorService(
		collector,
		resolver,
		services.NewNFTAggregatorService(logger),
		services.NewValuationService(logger),
		services.NewHiddenAssetService(testutil.NewMockHiddenAssetRepository(), 2, logger),
		walletRepo,
		snapshotRepo,
		testutil.NewMockOverrideRepository(),
		nil,
		logger,
	)
	return NewPortfolioHandler(orchestrator, logger)
}

func TestPortfolioHandler_GetSnapshot(t *testing.T) {
	t.Run("returns committed snapshot", func(t *testing.T) {
		snapshotRepo := testutil.NewMockSnapshotRepository()
		snapshotRepo.Committed = &entities.PortfolioSnapshot{
			ID:            7,
			TotalValueUSD: 68711.28,
			Assets: []entities.Asset{
				testutil.CreateTestAsset(),
			},
		}

		handler := setupPortfolioHandler(testutil.NewMockWalletRepository(), snapshotRepo)

		r := chi.NewRouter()
		handler.RegisterRoutes(r)

		req := httptest.NewRequest("GET", "/portfolio", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}

		var response entities.PortfolioSnapshot
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.TotalValueUSD != 68711.28 {
			t.Errorf("expected total 68711.28, got %v", response.TotalValueUSD)
		}
		if len(response.Assets) != 1 {
			t.Errorf("expected 1 asset, got %d", len(response.Assets))
		}
	})

	t.Run("returns not found before the first commit", func(t *testing.T) {
		handler := setupPortfolioHandler(testutil.NewMockWalletRepository(), testutil.NewMockSnapshotRepository())

		r := chi.NewRouter()
		handler.RegisterRoutes(r)

		req := httptest.NewRequest("GET", "/portfolio", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", w.Code)
		}
	})

	t.Run("returns error when storage fails", func(t *testing.T) {
		snapshotRepo := testutil.NewMockSnapshotRepository()
		snapshotRepo.GetLastFunc = func(ctx context.Context) (*entities.PortfolioSnapshot, error) {
			return nil, errors.New("database error")
		}

		handler := setupPortfolioHandler(testutil.NewMockWalletRepository(), snapshotRepo)

		r := chi.NewRouter()
		handler.RegisterRoutes(r)

		req := httptest.NewRequest("GET", "/portfolio", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
	})
}

func TestPortfolioHandler_GetStatus(t *testing.T) {
	t.Run("reports idle state before any cycle", func(t *testing.T) {
		handler := setupPortfolioHandler(testutil.NewMockWalletRepository(), testutil.NewMockSnapshotRepository())

		r := chi.NewRouter()
		handler.RegisterRoutes(r)

		req := httptest.NewRequest("GET", "/portfolio/status", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}

		var response StatusResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.State != entities.StateIdle {
			t.Errorf("expected idle state, got %s", response.State)
		}
		if response.CyclesTotal != 0 {
			t.Errorf("expected 0 cycles, got %d", response.CyclesTotal)
		}
		if response.LastCycleTime != "" {
			t.Errorf("expected no cycle time, got %s", response.LastCycleTime)
		}
	})
}

func TestPortfolioHandler_TriggerRefresh(t *testing.T) {
	t.Run("commits and returns a snapshot", func(t *testing.T) {
		snapshotRepo := testutil.NewMockSnapshotRepository()
		handler := setupPortfolioHandler(testutil.NewMockWalletRepository(), snapshotRepo)

		r := chi.NewRouter()
		handler.RegisterRoutes(r)

		req := httptest.NewRequest("POST", "/portfolio/refresh", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
		if snapshotRepo.Committed == nil {
			t.Error("expected snapshot committed")
		}
	})

	t.Run("returns conflict while a cycle is running", func(t *testing.T) {
		walletRepo := testutil.NewMockWalletRepository()
		release := make(chan struct{})
		started := make(chan struct{})
		var once sync.Once
		walletRepo.GetAllFunc = func(ctx context.Context) ([]entities.Wallet, error) {
			once.Do(func() { close(started) })
			<-release
			return nil, nil
		}

		handler := setupPortfolioHandler(walletRepo, testutil.NewMockSnapshotRepository())

		r := chi.NewRouter()
		handler.RegisterRoutes(r)

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			first := httptest.NewRecorder()
			r.ServeHTTP(first, httptest.NewRequest("POST", "/portfolio/refresh", nil))
		}()

		<-started
		second := httptest.NewRecorder()
		r.ServeHTTP(second, httptest.NewRequest("POST", "/portfolio/refresh", nil))

		if second.Code != http.StatusConflict {
			t.Errorf("expected status 409, got %d", second.Code)
		}

		close(release)
		wg.Wait()
	})

	t.Run("returns error when the cycle fails", func(t *testing.T) {
		walletRepo := testutil.NewMockWalletRepository()
		walletRepo.GetAllFunc = func(ctx context.Context) ([]entities.Wallet, error) {
			return nil, errors.New("database error")
		}

		handler := setupPortfolioHandler(walletRepo, testutil.NewMockSnapshotRepository())

		r := chi.NewRouter()
		handler.RegisterRoutes(r)

		req := httptest.NewRequest("POST", "/portfolio/refresh", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
	})
}
