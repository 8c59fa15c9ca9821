package users_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/users"
	"ms-raffle/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	Service *users.Service
	Logger  *logger.Logger
}

func NewHandler(service *users.Service, log *logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error()))
		return
	}

	user, err := h.Service.Register(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Register: %v", err))
		status := http.StatusInternalServerError
		if errors.Is(err, users.ErrInvalidWhatsapp) || req.Name == "" {
			status = http.StatusBadRequest
		}
		utils.WriteJSON(w, status, utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("User registered", user))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error()))
		return
	}

	resp, err := h.Service.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Invalid credentials"))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("Login: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Logged in", resp))
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	whatsapp := chi.URLParam(r, "whatsapp")

	user, err := h.Service.Get(r.Context(), whatsapp)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("User not found"))
			return
		}
		h.Logger.Error("API", fmt.Sprintf("GetUser: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("User found", user))
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.Service.List(r.Context())
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListUsers: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Users listed", list))
}
