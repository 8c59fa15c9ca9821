package pix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ms-raffle/internal/config"
	"ms-raffle/internal/expiry"
	"ms-raffle/internal/logger"

	"github.com/google/uuid"
)

// Client talks to the Mercado Pago payments API to create and look up PIX
// charges. The rest of the system only sees Charge values; gateway payloads
// never leave this package.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
	log         *logger.Logger
}

func NewClient(cfg config.GatewayConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:     cfg.BaseURL,
		accessToken: cfg.AccessToken,
		http:        &http.Client{Timeout: cfg.Timeout},
		log:         log,
	}
}

type Payer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type ChargeRequest struct {
	OrderID     string
	Amount      float64
	Description string
	Payer       Payer
}

type Charge struct {
	ID           string `json:"id"`
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
	QRCode       string `json:"qr_code,omitempty"`
	QRCodeBase64 string `json:"qr_code_base64,omitempty"`
}

// StatusApproved is the only gateway status that triggers order settlement.
const StatusApproved = "approved"

type createPaymentBody struct {
	TransactionAmount float64           `json:"transaction_amount"`
	Description       string            `json:"description"`
	PaymentMethodID   string            `json:"payment_method_id"`
	Payer             Payer             `json:"payer"`
	Metadata          map[string]string `json:"metadata"`
	DateOfExpiration  string            `json:"date_of_expiration"`
}

type paymentResponse struct {
	ID       json.Number `json:"id"`
	Status   string      `json:"status"`
	Metadata struct {
		OrderID string `json:"order_id"`
	} `json:"metadata"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

// CreateCharge creates a PIX charge carrying the order id in its metadata. The
// gateway-side expiry is set 65 minutes out; the application enforces its own
// 5 minute window, so the gateway deadline exists only as headroom and must
// never fire first.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	body := createPaymentBody{
		TransactionAmount: req.Amount,
		Description:       req.Description,
		PaymentMethodID:   "pix",
		Payer:             req.Payer,
		Metadata:          map[string]string{"order_id": req.OrderID},
		DateOfExpiration:  time.Now().Add(expiry.GatewayWindow).Format("2006-01-02T15:04:05.000-07:00"),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal charge request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build charge request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")
	// The gateway dedupes retried creations by this key.
	httpReq.Header.Set("X-Idempotency-Key", req.OrderID+"-"+uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		c.log.Error("PAYMENT", fmt.Sprintf("Gateway rejected charge for order %s: status %d body %s", req.OrderID, resp.StatusCode, string(raw)))
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}

	c.log.Info("PAYMENT", fmt.Sprintf("Created PIX charge %s for order %s (status %s)", pr.ID.String(), req.OrderID, pr.Status))
	return &Charge{
		ID:           pr.ID.String(),
		OrderID:      req.OrderID,
		Status:       pr.Status,
		QRCode:       pr.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64: pr.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}

// GetCharge fetches a charge by its gateway id and resolves the owning order
// from the metadata the charge was created with.
func (c *Client) GetCharge(ctx context.Context, chargeID string) (*Charge, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/payments/"+chargeID, nil)
	if err != nil {
		return nil, fmt.Errorf("build lookup request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var pr paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode charge response: %w", err)
	}

	return &Charge{
		ID:           pr.ID.String(),
		OrderID:      pr.Metadata.OrderID,
		Status:       pr.Status,
		QRCode:       pr.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64: pr.PointOfInteraction.TransactionData.QRCodeBase64,
	}, nil
}
