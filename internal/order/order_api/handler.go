package order_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/order"
	"ms-raffle/internal/utils"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	OrderService *order.OrderService
	Logger       *logger.Logger
}

func NewHandler(orderService *order.OrderService, log *logger.Logger) *Handler {
	return &Handler{
		OrderService: orderService,
		Logger:       log,
	}
}

// statusForError maps the service error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, order.ErrRaffleNotFound),
		errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, order.ErrUserNotFound),
		errors.Is(err, order.ErrQuotaNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrOrderNotEligible),
		errors.Is(err, order.ErrCannotAlterAwardedQuota),
		errors.Is(err, order.ErrRaffleFinished),
		errors.Is(err, order.ErrConfirmationInProgress):
		return http.StatusConflict
	case errors.Is(err, order.ErrQuotaNumberTaken):
		return http.StatusConflict
	case errors.Is(err, order.ErrQuantityOutOfRange),
		errors.Is(err, order.ErrNoPriceTierMatched),
		errors.Is(err, order.ErrRaffleSoldOut):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	h.Logger.Info("API", "CreateOrder: received request")

	var req models.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: failed to decode request body: %v", err))
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error()))
		return
	}

	response, err := h.OrderService.CreateOrder(r.Context(), req)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("CreateOrder: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	h.Logger.Info("API", fmt.Sprintf("CreateOrder: order %s created", response.OrderID))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("Order created", response))
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("GetOrder: orderId=%s", orderID))

	orderData, err := h.OrderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetOrder: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order found", orderData))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	filters := models.OrderFilters{
		RaffleID: r.URL.Query().Get("raffle_id"),
		UserID:   r.URL.Query().Get("user_id"),
	}
	page := models.DefaultPagination()
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		page.Limit = v
	}

	result, err := h.OrderService.ListOrders(r.Context(), filters, page)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListOrders: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Orders listed", result))
}

func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	whatsapp := chi.URLParam(r, "whatsapp")
	h.Logger.Info("API", fmt.Sprintf("ListMyOrders: whatsapp=%s", whatsapp))

	orders, err := h.OrderService.ListOrdersForUser(r.Context(), whatsapp)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListMyOrders: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Orders listed", orders))
}

func (h *Handler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("DeleteOrder: orderId=%s", orderID))

	if err := h.OrderService.SoftDelete(r.Context(), orderID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("DeleteOrder: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PayManually(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	h.Logger.Info("API", fmt.Sprintf("PayManually: orderId=%s", orderID))

	if err := h.OrderService.PayManually(r.Context(), orderID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("PayManually: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order settled manually", nil))
}

func (h *Handler) ReassignOwner(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")

	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error()))
		return
	}
	if req.UserID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("user_id cannot be empty"))
		return
	}

	if err := h.OrderService.ReassignOwner(r.Context(), orderID, req.UserID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("ReassignOwner: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Order owner reassigned", nil))
}

func (h *Handler) AdjustQuotaNumber(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")
	quotaID := chi.URLParam(r, "quotaId")

	var req struct {
		SerialNumber int    `json:"serial_number"`
		UserID       string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body: "+err.Error()))
		return
	}
	if req.SerialNumber < 1 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("serial_number must be positive"))
		return
	}

	if err := h.OrderService.AdjustQuotaNumber(r.Context(), raffleID, quotaID, req.SerialNumber, req.UserID); err != nil {
		h.Logger.Error("API", fmt.Sprintf("AdjustQuotaNumber: %v", err))
		utils.WriteJSON(w, statusForError(err), utils.ErrorResponse(err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Quota number adjusted", nil))
}
