package analytics_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-raffle/internal/analytics"
	"ms-raffle/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Order)(nil),
		(*models.Payment)(nil),
	} {
		if _, err := bunDB.NewCreateTable().Model(model).Exec(ctx); err != nil {
			t.Fatalf("Failed to create table for %T: %v", model, err)
		}
	}

	return bunDB
}

func insertPaidOrder(t *testing.T, bunDB *bun.DB, raffleID string, quantity int, amount float64, createdAt time.Time, orderStatus string, paymentStatus models.PaymentStatus) {
	t.Helper()
	ctx := context.Background()

	order := models.Order{
		ID:             uuid.NewString(),
		UserID:         "+5511999990000",
		RaffleID:       raffleID,
		QuotasQuantity: quantity,
		Status:         orderStatus,
		Active:         true,
		CreatedAt:      createdAt,
	}
	_, err := bunDB.NewInsert().Model(&order).Exec(ctx)
	assert.NoError(t, err)

	payment := models.Payment{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		Amount:    amount,
		Status:    paymentStatus,
		Active:    true,
		CreatedAt: createdAt,
	}
	_, err = bunDB.NewInsert().Model(&payment).Exec(ctx)
	assert.NoError(t, err)
}

func TestGetRaffleAnalytics(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()

	svc := analytics.NewService(bunDB)
	raffleID := uuid.NewString()
	day1 := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 11, 9, 30, 0, 0, time.UTC)

	insertPaidOrder(t, bunDB, raffleID, 100, 8.00, day1, models.OrderStatusCompleted, models.PaymentStatusCompleted)
	insertPaidOrder(t, bunDB, raffleID, 50, 5.00, day1, models.OrderStatusCompleted, models.PaymentStatusCompleted)
	insertPaidOrder(t, bunDB, raffleID, 10, 1.00, day2, models.OrderStatusCompleted, models.PaymentStatusCompleted)

	// Noise: an unpaid order, an expired one, and a completed order in
	// another raffle. None should count.
	insertPaidOrder(t, bunDB, raffleID, 500, 40.00, day2, models.OrderStatusWaitingPayment, models.PaymentStatusPending)
	insertPaidOrder(t, bunDB, raffleID, 200, 16.00, day1, models.OrderStatusExpired, models.PaymentStatusExpired)
	insertPaidOrder(t, bunDB, uuid.NewString(), 30, 3.00, day1, models.OrderStatusCompleted, models.PaymentStatusCompleted)

	result, err := svc.GetRaffleAnalytics(context.Background(), raffleID)
	assert.NoError(t, err)
	assert.Equal(t, raffleID, result.RaffleID)
	assert.Equal(t, 3, result.TotalOrders)
	assert.Equal(t, 160, result.TotalQuotasSold)
	assert.InDelta(t, 14.00, result.TotalRevenue, 0.001)

	assert.Len(t, result.DailySales, 2)
	assert.Equal(t, 2, result.DailySales[0].OrdersPaid)
	assert.Equal(t, 150, result.DailySales[0].QuotasSold)
	assert.InDelta(t, 13.00, result.DailySales[0].Revenue, 0.001)
	assert.Equal(t, 1, result.DailySales[1].OrdersPaid)
	assert.Equal(t, 10, result.DailySales[1].QuotasSold)
}

func TestGetRaffleAnalyticsEmpty(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()

	svc := analytics.NewService(bunDB)

	result, err := svc.GetRaffleAnalytics(context.Background(), uuid.NewString())
	assert.NoError(t, err)
	assert.Equal(t, 0, result.TotalOrders)
	assert.Equal(t, 0, result.TotalQuotasSold)
	assert.Equal(t, 0.0, result.TotalRevenue)
	assert.Empty(t, result.DailySales)
	assert.NotNil(t, result.DailySales)
}

func TestTotalsSince(t *testing.T) {
	bunDB := setupTestDB(t)
	defer bunDB.Close()

	svc := analytics.NewService(bunDB)
	raffleID := uuid.NewString()
	now := time.Now()

	insertPaidOrder(t, bunDB, raffleID, 100, 8.00, now.AddDate(0, 0, -10), models.OrderStatusCompleted, models.PaymentStatusCompleted)
	insertPaidOrder(t, bunDB, raffleID, 20, 2.00, now.Add(-2*time.Hour), models.OrderStatusCompleted, models.PaymentStatusCompleted)

	quotas, revenue, err := svc.TotalsSince(context.Background(), now.AddDate(0, 0, -1))
	assert.NoError(t, err)
	assert.Equal(t, 20, quotas)
	assert.InDelta(t, 2.00, revenue, 0.001)

	// Zero time means all history.
	quotas, revenue, err = svc.TotalsSince(context.Background(), time.Time{})
	assert.NoError(t, err)
	assert.Equal(t, 120, quotas)
	assert.InDelta(t, 10.00, revenue, 0.001)
}
