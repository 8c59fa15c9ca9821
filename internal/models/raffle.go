package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Raffle struct {
	bun.BaseModel `bun:"table:raffles"`

	ID            string    `bun:"id,pk" json:"id"`
	Title         string    `bun:"title" json:"title"`
	Description   string    `bun:"description" json:"description"`
	ImagesURLs    []string  `bun:"images_urls,type:jsonb" json:"images_urls"`
	WinnerQuotaID string    `bun:"winner_quota_id,nullzero" json:"winner_quota_id,omitempty"`
	MinQuantity   int       `bun:"min_quantity" json:"min_quantity"`
	MaxQuantity   int       `bun:"max_quantity" json:"max_quantity"`
	PreQuantities []int     `bun:"pre_quantities,type:jsonb" json:"pre_quantities"`
	Active        bool      `bun:"active" json:"active"`
	CreatedAt     time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

// Status derives the raffle lifecycle from the winning quota: a raffle is
// finished once the draw has bound a winner, active until then.
func (r *Raffle) Status() string {
	if r.WinnerQuotaID != "" {
		return "finished"
	}
	return "active"
}

type RafflePrice struct {
	bun.BaseModel `bun:"table:raffles_prices"`

	ID        string    `bun:"id,pk" json:"id"`
	RaffleID  string    `bun:"raffle_id" json:"raffle_id"`
	Quantity  int       `bun:"quantity" json:"quantity"`
	Price     float64   `bun:"price" json:"price"`
	Active    bool      `bun:"active" json:"active"`
	CreatedAt time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type AwardedQuota struct {
	bun.BaseModel `bun:"table:raffles_awarded_quotas"`

	ID              string    `bun:"id,pk" json:"id"`
	RaffleID        string    `bun:"raffle_id" json:"raffle_id"`
	ReferenceNumber int       `bun:"reference_number" json:"reference_number"`
	Gift            string    `bun:"gift" json:"gift"`
	UserID          string    `bun:"user_id,nullzero" json:"user_id,omitempty"`
	UserName        string    `bun:"user_name,scanonly" json:"user_name,omitempty"`
	Active          bool      `bun:"active" json:"active"`
	CreatedAt       time.Time `bun:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type RaffleFlags struct {
	bun.BaseModel `bun:"table:raffles_flags"`

	ID                string `bun:"id,pk" json:"id"`
	FlagTopBuyers     bool   `bun:"flag_top_buyers" json:"flag_top_buyers"`
	FlagTopBuyersWeek bool   `bun:"flag_top_buyers_week" json:"flag_top_buyers_week"`
	FlagTopBuyersDay  bool   `bun:"flag_top_buyers_day" json:"flag_top_buyers_day"`
	FlagLowestQuota   bool   `bun:"flag_lowest_quota" json:"flag_lowest_quota"`
	FlagHighestQuota  bool   `bun:"flag_highest_quota" json:"flag_highest_quota"`
}

type TopBuyer struct {
	UserID   string `bun:"user_id" json:"user_id"`
	Name     string `bun:"name" json:"name"`
	Quantity int    `bun:"quantity" json:"quantity"`
}

type EdgeQuota struct {
	UserID       string `bun:"user_id" json:"user_id"`
	Name         string `bun:"name" json:"name"`
	SerialNumber int    `bun:"serial_number" json:"serial_number"`
}

// RaffleDetail is the read model served to clients: the raffle row plus
// everything the storefront renders alongside it.
type RaffleDetail struct {
	Raffle        Raffle         `json:"raffle"`
	Prices        []RafflePrice  `json:"prices"`
	AwardedQuotas []AwardedQuota `json:"awarded_quotas"`
	Flags         *RaffleFlags   `json:"flags,omitempty"`
	QuotasSold    int            `json:"quotas_sold"`
	TopBuyers     []TopBuyer     `json:"top_buyers,omitempty"`
	TopBuyersWeek []TopBuyer     `json:"top_buyers_week,omitempty"`
	TopBuyersDay  []TopBuyer     `json:"top_buyers_day,omitempty"`
	HighestQuota  *EdgeQuota     `json:"highest_quota,omitempty"`
	LowestQuota   *EdgeQuota     `json:"lowest_quota,omitempty"`
}

type PriceTierInput struct {
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type AwardedQuotaInput struct {
	ReferenceNumber int    `json:"reference_number"`
	Gift            string `json:"gift"`
}

type CreateRaffleRequest struct {
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	ImagesURLs     []string            `json:"images_urls"`
	Prices         []PriceTierInput    `json:"prices"`
	AwardedNumbers []AwardedQuotaInput `json:"awarded_numbers"`
	MinQuantity    int                 `json:"min_quantity"`
	MaxQuantity    int                 `json:"max_quantity"`
	PreQuantities  []int               `json:"pre_quantities"`
}

type UpdateRaffleRequest struct {
	Title          string              `json:"title"`
	Description    string              `json:"description"`
	ImagesURLs     []string            `json:"images_urls"`
	Prices         []PriceTierInput    `json:"prices"`
	AwardedNumbers []AwardedQuotaInput `json:"awarded_numbers"`
	MinQuantity    int                 `json:"min_quantity"`
	MaxQuantity    int                 `json:"max_quantity"`
	PreQuantities  []int               `json:"pre_quantities"`
}
