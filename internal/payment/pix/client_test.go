package pix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ms-raffle/internal/config"
	"ms-raffle/internal/logger"

	"github.com/stretchr/testify/assert"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.GatewayConfig{
		BaseURL:     baseURL,
		AccessToken: "test-token",
		Timeout:     2 * time.Second,
	}, logger.NewLogger())
}

func TestCreateCharge(t *testing.T) {
	var captured createPaymentBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{
			"id": 123456789,
			"status": "pending",
			"point_of_interaction": {
				"transaction_data": {
					"qr_code": "00020126pixcopypaste",
					"qr_code_base64": "aGVsbG8="
				}
			}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	charge, err := client.CreateCharge(context.Background(), ChargeRequest{
		OrderID:     "order-1",
		Amount:      12.00,
		Description: "150 cota(s) para iPhone 16 Pro",
		Payer:       Payer{FirstName: "Maria", LastName: "da Silva", Email: "11999990000@caradebone.com"},
	})

	assert.NoError(t, err)
	assert.Equal(t, "123456789", charge.ID)
	assert.Equal(t, "order-1", charge.OrderID)
	assert.Equal(t, "pending", charge.Status)
	assert.Equal(t, "00020126pixcopypaste", charge.QRCode)
	assert.Equal(t, "aGVsbG8=", charge.QRCodeBase64)

	assert.Equal(t, 12.00, captured.TransactionAmount)
	assert.Equal(t, "pix", captured.PaymentMethodID)
	assert.Equal(t, "order-1", captured.Metadata["order_id"])
	assert.NotEmpty(t, captured.DateOfExpiration)
}

func TestCreateChargeGatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "invalid payer"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	charge, err := client.CreateCharge(context.Background(), ChargeRequest{OrderID: "order-1", Amount: 1.00})

	assert.Error(t, err)
	assert.Nil(t, charge)
	assert.Contains(t, err.Error(), "400")
}

func TestGetCharge(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/payments/123456789", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		_, _ = w.Write([]byte(`{
			"id": 123456789,
			"status": "approved",
			"metadata": {"order_id": "order-1"}
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	charge, err := client.GetCharge(context.Background(), "123456789")

	assert.NoError(t, err)
	assert.Equal(t, StatusApproved, charge.Status)
	assert.Equal(t, "order-1", charge.OrderID)
}

func TestGetChargeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	charge, err := client.GetCharge(context.Background(), "unknown")

	assert.Error(t, err)
	assert.Nil(t, charge)
}

func TestCreateChargeHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := newTestClient(server.URL)
	_, err := client.CreateCharge(ctx, ChargeRequest{OrderID: "order-1", Amount: 1.00})
	assert.Error(t, err)
}
