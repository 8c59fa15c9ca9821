package models

import (
	"time"

	"github.com/uptrace/bun"
)

type PaymentStatus string

// Payment statuses mirror the gateway vocabulary. The application only acts on
// approved (allocation trigger) and completed (terminal, immutable).
const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusExpired   PaymentStatus = "expired"
	PaymentStatusRejected  PaymentStatus = "rejected"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

const (
	GatewayMercadoPago = "MERCADO_PAGO"
	GatewayManual      = "MANUAL"

	// ManualGatewayID marks payments settled by an admin instead of the PSP.
	ManualGatewayID = "manual"
)

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID              string        `bun:"id,pk" json:"id"`
	OrderID         string        `bun:"order_id" json:"order_id"`
	Gateway         string        `bun:"gateway" json:"gateway"`
	GatewayID       string        `bun:"gateway_id" json:"gateway_id"`
	GatewayQRCode   string        `bun:"gateway_qrcode,nullzero" json:"gateway_qrcode,omitempty"`
	GatewayQRBase64 string        `bun:"gateway_qrcode_base64,nullzero" json:"gateway_qrcode_base64,omitempty"`
	Status          PaymentStatus `bun:"status" json:"status"`
	Amount          float64       `bun:"amount" json:"amount"`
	Active          bool          `bun:"active" json:"active"`
	CreatedAt       time.Time     `bun:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type PaymentSummary struct {
	Amount       float64 `json:"amount"`
	Gateway      string  `json:"gateway,omitempty"`
	QRCode       string  `json:"qr_code,omitempty"`
	QRCodeBase64 string  `json:"qr_code_base64,omitempty"`
	Type         string  `json:"type,omitempty"`
}

// PaymentEvent is what the confirmation path publishes to Kafka and SSE
// subscribers waiting on an order.
type PaymentEvent struct {
	Type      string        `json:"type"`
	OrderID   string        `json:"order_id"`
	RaffleID  string        `json:"raffle_id"`
	Status    PaymentStatus `json:"status"`
	Quotas    []int         `json:"quotas,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
