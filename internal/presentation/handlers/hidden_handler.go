package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/chainfolio/valuator/internal/application/services"
)

// HiddenHandler handles HTTP requests for the hidden asset overlay
type HiddenHandler struct {
	hidden *services.HiddenAssetService
	logger *zap.Logger
}

// NewHiddenHandler creates a new hidden asset handler
func NewHiddenHandler(hidden *services.HiddenAssetService, logger *zap.Logger) *HiddenHandler {
	return &HiddenHandler{
		hidden: hidden,
		logger: logger,
	}
}

// RegisterRoutes registers the hidden asset routes on a chi router
func (h *HiddenHandler) RegisterRoutes(r chi.Router) {
	r.Route("/wallets/{walletID}/assets/{tokenAddress}", func(r chi.Router) {
		r.Post("/hide", h.Hide)
		r.Post("/unhide", h.Unhide)
	})
}

// Hide handles POST /api/v1/wallets/{walletID}/assets/{tokenAddress}/hide.
// A manual hide sticks until the user unhides, regardless of asset value.
func (h *HiddenHandler) Hide(w http.ResponseWriter, r *http.Request) {
	walletID, tokenAddress, ok := h.parseParams(w, r)
	if !ok {
		return
	}

	if err := h.hidden.Hide(r.Context(), walletID, tokenAddress); err != nil {
		h.logger.Error("Failed to hide asset",
			zap.Error(err),
			zap.Int64("wallet_id", walletID),
			zap.String("token", tokenAddress),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to hide asset")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "hidden"})
}

// Unhide handles POST /api/v1/wallets/{walletID}/assets/{tokenAddress}/unhide
func (h *HiddenHandler) Unhide(w http.ResponseWriter, r *http.Request) {
	walletID, tokenAddress, ok := h.parseParams(w, r)
	if !ok {
		return
	}

	if err := h.hidden.Unhide(r.Context(), walletID, tokenAddress); err != nil {
		h.logger.Error("Failed to unhide asset",
			zap.Error(err),
			zap.Int64("wallet_id", walletID),
			zap.String("token", tokenAddress),
		)
		h.respondError(w, http.StatusInternalServerError, "Failed to unhide asset")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "visible"})
}

func (h *HiddenHandler) parseParams(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	walletID, err := strconv.ParseInt(chi.URLParam(r, "walletID"), 10, 64)
	if err != nil || walletID <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid wallet id")
		return 0, "", false
	}

	tokenAddress := chi.URLParam(r, "tokenAddress")
	if !isValidAddress(tokenAddress) {
		h.respondError(w, http.StatusBadRequest, "Invalid token address format")
		return 0, "", false
	}

	return walletID, strings.ToLower(tokenAddress), true
}

func (h *HiddenHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (h *HiddenHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
