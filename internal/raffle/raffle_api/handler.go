package raffle_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/raffle"
	"ms-raffle/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *raffle.Service
	Logger  *logger.Logger
}

func NewHandler(service *raffle.Service, log *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, raffle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, raffle.ErrQuotaNotSold):
		return http.StatusNotFound
	case errors.Is(err, raffle.ErrFinished):
		return http.StatusConflict
	case errors.Is(err, raffle.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) CreateRaffle(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "CreateRaffle: received request")

	var req models.CreateRaffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error()))
		return
	}

	created, err := h.Service.Create(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateRaffle: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Raffle created", created))
}

func (h *Handler) GetRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	detail, err := h.Service.Get(r.Context(), raffleID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetRaffle: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle found", detail))
}

func (h *Handler) ListRaffles(w http.ResponseWriter, r *http.Request) {
	raffles, err := h.Service.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListRaffles: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffles listed", raffles))
}

func (h *Handler) UpdateRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	var req models.UpdateRaffleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error()))
		return
	}

	updated, err := h.Service.Update(r.Context(), raffleID, req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("UpdateRaffle: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle updated", updated))
}

func (h *Handler) DeleteRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	if err := h.Service.SoftDelete(r.Context(), raffleID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeleteRaffle: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) DrawRaffle(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	var req struct {
		SerialNumber int `json:"serial_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error()))
		return
	}
	if req.SerialNumber < 1 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("serial_number must be positive"))
		return
	}

	winner, err := h.Service.Draw(r.Context(), raffleID, req.SerialNumber)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("DrawRaffle: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Raffle drawn", winner))
}

func (h *Handler) SetFlags(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	var flags models.RaffleFlags
	if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error()))
		return
	}

	if err := h.Service.SetFlags(r.Context(), raffleID, flags); err != nil {
		h.Logger.Error("API", fmt.Sprintf("SetFlags: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Flags updated", nil))
}

func (h *Handler) SearchQuota(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")

	serial, err := strconv.Atoi(r.URL.Query().Get("number"))
	if err != nil || serial < 1 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("number must be a positive integer"))
		return
	}

	owner, err := h.Service.SearchQuota(r.Context(), raffleID, serial)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("SearchQuota: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Quota found", owner))
}
