package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/application/services"
	"github.com/chainfolio/valuator/internal/domain/entities"
)

// PortfolioHandler handles HTTP requests for portfolio endpoints
type PortfolioHandler struct {
	orchestrator *services.OrchestratorService
	logger       *zap.Logger
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(orchestrator *services.OrchestratorService, logger *zap.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		orchestrator: orchestrator,
		logger:       logger,
	}
}

// RegisterRoutes registers the portfolio routes on a chi router
func (h *PortfolioHandler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolio", func(r chi.Router) {
		r.Get("/", h.GetSnapshot)
		r.Get("/status", h.GetStatus)
		r.Post("/refresh", h.TriggerRefresh)
	})
}

// GetSnapshot handles GET /api/v1/portfolio
func (h *PortfolioHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.orchestrator.LastSnapshot(r.Context())
	if err != nil {
		h.logger.Error("Failed to get snapshot", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get portfolio snapshot")
		return
	}
	if snapshot == nil {
		h.respondError(w, http.StatusNotFound, "No snapshot committed yet")
		return
	}

	h.respondJSON(w, http.StatusOK, snapshot)
}

// StatusResponse reports the orchestrator's cycle state and counters
type StatusResponse struct {
	State          entities.CycleState `json:"state"`
	CyclesTotal    int64               `json:"cycles_total"`
	CyclesFailed   int64               `json:"cycles_failed"`
	LastCycleTime  string              `json:"last_cycle_time,omitempty"`
	LastDurationMs int64               `json:"last_duration_ms"`
	StaleAssets    int64               `json:"stale_assets"`
	PartialWallets int64               `json:"partial_wallets"`
}

// GetStatus handles GET /api/v1/portfolio/status
func (h *PortfolioHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	metrics := h.orchestrator.GetMetrics()

	response := StatusResponse{
		State:          h.orchestrator.State(),
		CyclesTotal:    metrics.CyclesTotal,
		CyclesFailed:   metrics.CyclesFailed,
		LastDurationMs: metrics.LastDurationMs,
		StaleAssets:    metrics.StaleAssets,
		PartialWallets: metrics.PartialWallets,
	}
	if !metrics.LastCycleTime.IsZero() {
		response.LastCycleTime = metrics.LastCycleTime.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	h.respondJSON(w, http.StatusOK, response)
}

// TriggerRefresh handles POST /api/v1/portfolio/refresh. A request arriving
// while a cycle is running gets 409 and must retry after it finishes.
func (h *PortfolioHandler) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.orchestrator.RefreshPortfolio(r.Context())
	if err != nil {
		if errors.Is(err, entities.ErrRefreshInProgress) {
			h.respondError(w, http.StatusConflict, "Refresh already in progress")
			return
		}
		h.logger.Error("Refresh failed", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Refresh failed")
		return
	}

	h.respondJSON(w, http.StatusOK, snapshot)
}

func (h *PortfolioHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *PortfolioHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func isValidAddress(addr string) bool {
	if len(addr) != 42 {
		return false
	}
	if !strings.HasPrefix(addr, "0x") {
		return false
	}
	return true
}
