package api

import (
	"context"
	"net/http"
	"time"

	"ms-raffle/internal/analytics"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type AnalyticsService interface {
	GetRaffleAnalytics(ctx context.Context, raffleID string) (*analytics.RaffleAnalytics, error)
	TotalsSince(ctx context.Context, since time.Time) (int, float64, error)
}

type Handler struct {
	Service AnalyticsService
	Logger  *logger.Logger
}

func NewHandler(service AnalyticsService, log *logger.Logger) *Handler {
	return &Handler{Service: service, Logger: log}
}

func (h *Handler) GetRaffleAnalytics(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")
	if _, err := uuid.Parse(raffleID); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("invalid raffle id"))
		return
	}

	result, err := h.Service.GetRaffleAnalytics(r.Context(), raffleID)
	if err != nil {
		h.Logger.LogDatabase("SELECT", "orders", "raffle analytics query failed: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load analytics"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle analytics", result))
}

// GetSalesTotals reports quotas sold and revenue across all raffles for a
// period (?period=day|week|all, default all).
func (h *Handler) GetSalesTotals(w http.ResponseWriter, r *http.Request) {
	since := time.Time{}
	switch r.URL.Query().Get("period") {
	case "day":
		since = time.Now().AddDate(0, 0, -1)
	case "week":
		since = time.Now().AddDate(0, 0, -7)
	}

	quotas, revenue, err := h.Service.TotalsSince(r.Context(), since)
	if err != nil {
		h.Logger.LogDatabase("SELECT", "orders", "sales totals query failed: "+err.Error())
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("failed to load totals"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Sales totals", map[string]any{
		"quotas_sold": quotas,
		"revenue":     revenue,
	}))
}
