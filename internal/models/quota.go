package models

import (
	"time"

	"github.com/uptrace/bun"
)

// QuotaStatusReserved is the only quota state: a serial number does not exist
// as a row until allocation claims it.
const QuotaStatusReserved = "reserved"

type Quota struct {
	bun.BaseModel `bun:"table:quotas"`

	ID             string    `bun:"id,pk" json:"id"`
	RaffleID       string    `bun:"raffle_id" json:"raffle_id"`
	OrderID        string    `bun:"order_id" json:"order_id"`
	SerialNumber   int       `bun:"serial_number" json:"serial_number"`
	Status         string    `bun:"status" json:"status"`
	AwardedQuotaID string    `bun:"awarded_quota_id,nullzero" json:"awarded_quota_id,omitempty"`
	Active         bool      `bun:"active" json:"active"`
	CreatedAt      time.Time `bun:"created_at" json:"created_at"`
}

// AllocatedQuota is what the allocator hands back per claimed number.
type AllocatedQuota struct {
	SerialNumber   int    `json:"serial_number"`
	IsAwarded      bool   `json:"is_awarded"`
	AwardedQuotaID string `json:"awarded_quota_id,omitempty"`
}

// QuotaOwner is the admin search read model for a single serial number.
type QuotaOwner struct {
	QuotaID      string `bun:"id" json:"quota_id"`
	SerialNumber int    `bun:"serial_number" json:"serial_number"`
	OwnerName    string `bun:"owner_name" json:"owner_name"`
	OwnerPhone   string `bun:"owner_phone" json:"owner_phone"`
	IsAwarded    bool   `bun:"is_awarded" json:"is_awarded"`
}
