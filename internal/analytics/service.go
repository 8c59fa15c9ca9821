package analytics

import (
	"context"
	"time"

	"ms-raffle/internal/models"

	"github.com/uptrace/bun"
)

// Service aggregates sales numbers for the admin dashboard.
type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db: db}
}

// RaffleAnalytics is the aggregated sales picture of one raffle.
type RaffleAnalytics struct {
	RaffleID        string              `json:"raffle_id"`
	TotalRevenue    float64             `json:"total_revenue"`
	TotalOrders     int                 `json:"total_orders"`
	TotalQuotasSold int                 `json:"total_quotas_sold"`
	DailySales      []DailySalesMetrics `json:"daily_sales"`
}

// DailySalesMetrics contains sales metrics for a single day.
type DailySalesMetrics struct {
	Date       string  `bun:"date" json:"date"`
	OrdersPaid int     `bun:"orders_paid" json:"orders_paid"`
	QuotasSold int     `bun:"quotas_sold" json:"quotas_sold"`
	Revenue    float64 `bun:"revenue" json:"revenue"`
}

// GetRaffleAnalytics aggregates completed orders and their payments. Only
// settled money counts: pending and expired payments are excluded.
func (s *Service) GetRaffleAnalytics(ctx context.Context, raffleID string) (*RaffleAnalytics, error) {
	result := &RaffleAnalytics{RaffleID: raffleID}

	err := s.db.NewSelect().
		ColumnExpr("COALESCE(SUM(p.amount), 0) AS total_revenue").
		ColumnExpr("COUNT(o.id) AS total_orders").
		ColumnExpr("COALESCE(SUM(o.quotas_quantity), 0) AS total_quotas_sold").
		TableExpr("orders AS o").
		Join("JOIN payments AS p ON p.order_id = o.id AND p.active = TRUE").
		Where("o.raffle_id = ?", raffleID).
		Where("o.status = ?", models.OrderStatusCompleted).
		Where("o.active = ?", true).
		Where("p.status = ?", models.PaymentStatusCompleted).
		Scan(ctx, &result.TotalRevenue, &result.TotalOrders, &result.TotalQuotasSold)
	if err != nil {
		return nil, err
	}

	daily, err := s.getDailySales(ctx, raffleID)
	if err != nil {
		return nil, err
	}
	result.DailySales = daily

	return result, nil
}

func (s *Service) getDailySales(ctx context.Context, raffleID string) ([]DailySalesMetrics, error) {
	var daily []DailySalesMetrics
	err := s.db.NewSelect().
		ColumnExpr("DATE(o.created_at) AS date").
		ColumnExpr("COUNT(o.id) AS orders_paid").
		ColumnExpr("COALESCE(SUM(o.quotas_quantity), 0) AS quotas_sold").
		ColumnExpr("COALESCE(SUM(p.amount), 0) AS revenue").
		TableExpr("orders AS o").
		Join("JOIN payments AS p ON p.order_id = o.id AND p.active = TRUE").
		Where("o.raffle_id = ?", raffleID).
		Where("o.status = ?", models.OrderStatusCompleted).
		Where("o.active = ?", true).
		Where("p.status = ?", models.PaymentStatusCompleted).
		GroupExpr("DATE(o.created_at)").
		OrderExpr("date ASC").
		Scan(ctx, &daily)
	if err != nil {
		return nil, err
	}
	if daily == nil {
		daily = []DailySalesMetrics{}
	}
	return daily, nil
}

// TotalsSince reports quotas sold and revenue across every raffle in a
// window, for the landing page counters.
func (s *Service) TotalsSince(ctx context.Context, since time.Time) (int, float64, error) {
	var quotas int
	var revenue float64
	err := s.db.NewSelect().
		ColumnExpr("COALESCE(SUM(o.quotas_quantity), 0)").
		ColumnExpr("COALESCE(SUM(p.amount), 0)").
		TableExpr("orders AS o").
		Join("JOIN payments AS p ON p.order_id = o.id AND p.active = TRUE").
		Where("o.status = ?", models.OrderStatusCompleted).
		Where("o.active = ?", true).
		Where("p.status = ?", models.PaymentStatusCompleted).
		Where("o.created_at >= ?", since).
		Scan(ctx, &quotas, &revenue)
	if err != nil {
		return 0, 0, err
	}
	return quotas, revenue, nil
}
