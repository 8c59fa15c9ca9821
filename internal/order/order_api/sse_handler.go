package order_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-raffle/internal/auth"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/sse"

	"github.com/go-chi/chi/v5"
)

// SSEHandler streams payment settlements over Server-Sent Events. Checkout
// pages hold a connection per order; admin dashboards hold one per raffle.
type SSEHandler struct {
	Logger       *logger.Logger
	EventEmitter *sse.PaymentEventEmitter
	Verifier     *auth.Verifier
}

func NewSSEHandler(log *logger.Logger, emitter *sse.PaymentEventEmitter, verifier *auth.Verifier) *SSEHandler {
	return &SSEHandler{
		Logger:       log,
		EventEmitter: emitter,
		Verifier:     verifier,
	}
}

// HandleOrderPayments streams settlement events for a single order. The
// endpoint is public: knowing the order UUID is the capability.
func (h *SSEHandler) HandleOrderPayments(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		http.Error(w, "Order ID is required", http.StatusBadRequest)
		return
	}

	h.setupSSEHeaders(w)

	// Context cancels when the client disconnects.
	ctx := r.Context()
	eventChan := h.EventEmitter.SubscribeToOrder(ctx, orderID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"orderID\":\"%s\"}\n\n", orderID)
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to payment events for order: %s", orderID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for order: %s", orderID))
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize payment event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: payment\ndata: %s\n\n", jsonData)
			w.(http.Flusher).Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from payment events for order: %s", orderID))
			return
		}
	}
}

// HandleRafflePayments streams every settlement in a raffle. Admin only.
func (h *SSEHandler) HandleRafflePayments(w http.ResponseWriter, r *http.Request) {
	raffleID := chi.URLParam(r, "raffleId")
	if raffleID == "" {
		http.Error(w, "Raffle ID is required", http.StatusBadRequest)
		return
	}

	if err := h.verifyAdminAccess(r); err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Admin access verification failed: %v", err))
		http.Error(w, "Unauthorized access", http.StatusUnauthorized)
		return
	}

	h.setupSSEHeaders(w)

	ctx := r.Context()
	eventChan := h.EventEmitter.SubscribeToRaffle(ctx, raffleID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"raffleID\":\"%s\"}\n\n", raffleID)
	w.(http.Flusher).Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Client connected to payment events for raffle: %s", raffleID))

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				h.Logger.Debug("SSE", fmt.Sprintf("Channel closed for raffle: %s", raffleID))
				return
			}

			jsonData, err := json.Marshal(event)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize payment event: %v", err))
				continue
			}

			fmt.Fprintf(w, "event: payment\ndata: %s\n\n", jsonData)
			w.(http.Flusher).Flush()

		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Client disconnected from payment events for raffle: %s", raffleID))
			return
		}
	}
}

// EmitPaymentEvent broadcasts a settlement to all subscribed clients.
func (h *SSEHandler) EmitPaymentEvent(event models.PaymentEvent) {
	h.EventEmitter.EmitPaymentEvent(event)
}

func (h *SSEHandler) setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

func (h *SSEHandler) verifyAdminAccess(r *http.Request) error {
	token, err := auth.ExtractTokenFromRequest(r)
	if err != nil {
		return fmt.Errorf("failed to extract token: %w", err)
	}

	claims, err := h.Verifier.Verify(token)
	if err != nil {
		return fmt.Errorf("failed to verify token: %w", err)
	}

	if !claims.HasRole("admin") {
		return fmt.Errorf("user %s is not an admin", claims.Subject)
	}
	return nil
}
