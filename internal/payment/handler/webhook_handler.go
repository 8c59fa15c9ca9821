package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/order"
	"ms-raffle/internal/payment/pix"
)

// ChargeFetcher looks a charge up at the gateway by its ID.
type ChargeFetcher interface {
	GetCharge(ctx context.Context, chargeID string) (*pix.Charge, error)
}

// PaymentConfirmer settles a paid order.
type PaymentConfirmer interface {
	ConfirmPayment(ctx context.Context, orderID string) error
}

// PaymentUpdater records gateway status changes that did not settle anything.
type PaymentUpdater interface {
	UpdateStatusByGatewayID(ctx context.Context, gatewayID string, status models.PaymentStatus) error
	GetOrderIDByGatewayID(ctx context.Context, gatewayID string) (string, error)
}

// StatusPublisher streams payment status changes to downstream consumers.
type StatusPublisher interface {
	PublishPaymentUpdated(event models.PaymentEvent) error
}

// WebhookHandler receives payment notifications from the gateway. The
// contract with the gateway is delivery-at-least-once: everything here must
// tolerate duplicates, and a non-2xx answer triggers redelivery.
type WebhookHandler struct {
	Gateway   ChargeFetcher
	Confirmer PaymentConfirmer
	Payments  PaymentUpdater
	Publisher StatusPublisher
	Logger    *logger.Logger
}

func NewWebhookHandler(gateway ChargeFetcher, confirmer PaymentConfirmer, payments PaymentUpdater, publisher StatusPublisher, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		Gateway:   gateway,
		Confirmer: confirmer,
		Payments:  payments,
		Publisher: publisher,
		Logger:    log,
	}
}

type webhookNotification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// HandleNotification is the gateway-facing endpoint. Notifications that are
// not about payments, or that merely announce charge creation, are
// acknowledged and dropped.
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	var notification webhookNotification
	if err := json.NewDecoder(r.Body).Decode(&notification); err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to decode notification: %v", err))
		http.Error(w, "invalid notification body", http.StatusBadRequest)
		return
	}

	if notification.Type != "payment" || notification.Action == "payment.created" {
		h.Logger.Debug("WEBHOOK", fmt.Sprintf("Ignoring notification type=%s action=%s", notification.Type, notification.Action))
		w.WriteHeader(http.StatusOK)
		return
	}

	if notification.Data.ID == "" {
		http.Error(w, "notification missing data.id", http.StatusBadRequest)
		return
	}

	h.Logger.Info("WEBHOOK", fmt.Sprintf("Payment notification: action=%s charge=%s", notification.Action, notification.Data.ID))

	charge, err := h.Gateway.GetCharge(r.Context(), notification.Data.ID)
	if err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to fetch charge %s: %v", notification.Data.ID, err))
		// Non-2xx so the gateway redelivers once we can reach it again.
		http.Error(w, "failed to fetch charge", http.StatusBadGateway)
		return
	}

	orderID := charge.OrderID
	if orderID == "" {
		// Old charges may predate order metadata; fall back to our own record.
		orderID, err = h.Payments.GetOrderIDByGatewayID(r.Context(), charge.ID)
		if err != nil || orderID == "" {
			h.Logger.Warn("WEBHOOK", fmt.Sprintf("Charge %s has no resolvable order, acknowledging", charge.ID))
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	if charge.Status != pix.StatusApproved {
		// Record the state change; nothing to settle.
		if err := h.Payments.UpdateStatusByGatewayID(r.Context(), charge.ID, models.PaymentStatus(charge.Status)); err != nil {
			h.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to record status %s for charge %s: %v", charge.Status, charge.ID, err))
			http.Error(w, "failed to record payment status", http.StatusInternalServerError)
			return
		}
		// Best effort: a lost event here is recoverable from the payment row.
		if err := h.Publisher.PublishPaymentUpdated(models.PaymentEvent{
			Type:      "payment_updated",
			OrderID:   orderID,
			Status:    models.PaymentStatus(charge.Status),
			Timestamp: time.Now(),
		}); err != nil {
			h.Logger.Warn("WEBHOOK", fmt.Sprintf("Failed to publish status change for order %s: %v", orderID, err))
		}
		w.WriteHeader(http.StatusOK)
		return
	}

	if err := h.Confirmer.ConfirmPayment(r.Context(), orderID); err != nil {
		h.Logger.Error("WEBHOOK", fmt.Sprintf("Failed to confirm payment for order %s: %v", orderID, err))
		if errors.Is(err, order.ErrConfirmationInProgress) {
			// Another worker holds the settlement lock. Non-2xx so the gateway
			// redelivers after the lock is released or its TTL expires; if the
			// holder crashed mid-settlement, the redelivery finishes the job.
			http.Error(w, "confirmation in progress", http.StatusServiceUnavailable)
			return
		}
		if errors.Is(err, order.ErrOrderNotEligible) {
			// Approved money against an unsettleable order needs a human; the
			// redelivery will hit the idempotency guard and stop.
			http.Error(w, "order not eligible for settlement", http.StatusConflict)
			return
		}
		http.Error(w, "failed to confirm payment", http.StatusInternalServerError)
		return
	}

	h.Logger.Info("WEBHOOK", fmt.Sprintf("Order %s confirmed from charge %s", orderID, charge.ID))
	w.WriteHeader(http.StatusOK)
}
