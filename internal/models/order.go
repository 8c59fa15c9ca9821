package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Order statuses. An order is born pending, moves to waiting_payment once the
// gateway charge exists, to paid when the confirmation lands, and to completed
// only after every quota has been allocated. Expiry is evaluated lazily on
// read paths.
const (
	OrderStatusPending        = "pending"
	OrderStatusWaitingPayment = "waiting_payment"
	OrderStatusPaid           = "paid"
	OrderStatusCompleted      = "completed"
	OrderStatusExpired        = "expired"
)

type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID             string    `bun:"id,pk" json:"id"`
	UserID         string    `bun:"user_id" json:"user_id"`
	RaffleID       string    `bun:"raffle_id" json:"raffle_id"`
	QuotasQuantity int       `bun:"quotas_quantity" json:"quotas_quantity"`
	Status         string    `bun:"status" json:"status"`
	Active         bool      `bun:"active" json:"active"`
	CreatedAt      time.Time `bun:"created_at" json:"created_at"`
}

type CreateOrderRequest struct {
	UserID   string `json:"user_id"`
	RaffleID string `json:"raffle_id"`
	Quantity int    `json:"quantity"`
}

type CreateOrderResponse struct {
	OrderID string         `json:"order_id"`
	Status  string         `json:"status"`
	Payment PaymentSummary `json:"payment"`
}

// OrderWithPayment is the listing read model: the stored order joined with its
// payment summary and, once completed, the allocated serial numbers.
type OrderWithPayment struct {
	ID             string          `json:"id"`
	RaffleID       string          `json:"raffle_id"`
	RaffleTitle    string          `json:"raffle_title,omitempty"`
	UserID         string          `json:"user_id"`
	QuotasQuantity int             `json:"quotas_quantity"`
	Status         string          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	ExpiresIn      string          `json:"expires_in,omitempty"`
	Payment        *PaymentSummary `json:"payment,omitempty"`
	Quotas         []int           `json:"quotas"`
	IsWinner       bool            `json:"is_winner"`
	WinnerQuotas   []int           `json:"winner_quotas,omitempty"`
}

type OrderFilters struct {
	RaffleID string
	UserID   string
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

func DefaultPagination() Pagination {
	return Pagination{Page: 1, Limit: 20}
}

type OrderPage struct {
	Data       []OrderWithPayment `json:"data"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	Limit      int                `json:"limit"`
	TotalPages int                `json:"total_pages"`
}
