package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"ms-raffle/internal/allocation"
	"ms-raffle/internal/models"

	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// isUniqueViolation recognizes a unique-index conflict from either backend:
// Postgres in production, SQLite in the in-memory test suite.
func isUniqueViolation(err error) bool {
	var pgErr *pq.Error
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ---------------- ORDERS ----------------

func (d *DB) CreateOrder(ctx context.Context, order models.Order) error {
	_, err := d.Bun.NewInsert().Model(&order).Exec(ctx)
	return err
}

func (d *DB) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := d.Bun.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// TransitionOrder moves an order to the target status only when its current
// status is one of the eligible source states. The conditional UPDATE is what
// makes concurrent confirmations safe: exactly one caller wins the row.
func (d *DB) TransitionOrder(ctx context.Context, id string, from []string, to string) (*models.Order, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("active = ?", true).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, nil
	}
	return d.GetOrder(ctx, id)
}

func (d *DB) UpdateOrderStatus(ctx context.Context, id, status string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status = ?", status).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) SetOrderUser(ctx context.Context, id, userID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("user_id = ?", userID).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) SoftDeleteOrder(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("active = ?", false).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

func (d *DB) ListOrders(ctx context.Context, filters models.OrderFilters, page models.Pagination) ([]models.Order, int, error) {
	q := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Where("active = ?", true)
	if filters.RaffleID != "" {
		q = q.Where("raffle_id = ?", filters.RaffleID)
	}
	if filters.UserID != "" {
		q = q.Where("user_id = ?", filters.UserID)
	}

	total, err := q.Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	err = q.
		Order("created_at DESC").
		Limit(page.Limit).
		Offset((page.Page - 1) * page.Limit).
		Scan(ctx, &orders)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (d *DB) ListOrdersByUser(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("user_id = ?", userID).
		Where("active = ?", true).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ---------------- QUOTAS ----------------

func (d *DB) ExistsSerial(ctx context.Context, raffleID string, serialNumber int) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Quota)(nil)).
		Where("raffle_id = ?", raffleID).
		Where("serial_number = ?", serialNumber).
		Where("active = ?", true).
		Exists(ctx)
}

// InsertQuota relies on the partial unique index over (raffle_id,
// serial_number) for active rows; a conflict surfaces as ErrSerialTaken so the
// allocator can resample.
func (d *DB) InsertQuota(ctx context.Context, quota models.Quota) error {
	_, err := d.Bun.NewInsert().Model(&quota).Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return allocation.ErrSerialTaken
	}
	return err
}

func (d *DB) CountByOrder(ctx context.Context, orderID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Quota)(nil)).
		Where("order_id = ?", orderID).
		Where("active = ?", true).
		Count(ctx)
}

func (d *DB) CountByRaffle(ctx context.Context, raffleID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Quota)(nil)).
		Where("raffle_id = ?", raffleID).
		Where("active = ?", true).
		Count(ctx)
}

func (d *DB) GetQuota(ctx context.Context, quotaID string) (*models.Quota, error) {
	var quota models.Quota
	err := d.Bun.NewSelect().
		Model(&quota).
		Where("id = ?", quotaID).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quota, nil
}

func (d *DB) UpdateQuotaSerial(ctx context.Context, quotaID string, serialNumber int, awardedQuotaID string) error {
	q := d.Bun.NewUpdate().
		Model((*models.Quota)(nil)).
		Set("serial_number = ?", serialNumber).
		Where("id = ?", quotaID)
	if awardedQuotaID != "" {
		q = q.Set("awarded_quota_id = ?", awardedQuotaID)
	}
	_, err := q.Exec(ctx)
	if err != nil && isUniqueViolation(err) {
		return allocation.ErrSerialTaken
	}
	return err
}

func (d *DB) GetSerialsByOrder(ctx context.Context, orderID string) ([]int, error) {
	var serials []int
	err := d.Bun.NewSelect().
		Column("serial_number").
		Table("quotas").
		Where("order_id = ?", orderID).
		Where("active = ?", true).
		Order("serial_number ASC").
		Scan(ctx, &serials)
	if err != nil {
		return nil, err
	}
	if serials == nil {
		serials = []int{}
	}
	return serials, nil
}

func (d *DB) GetAwardedSerialsByOrder(ctx context.Context, orderID string) ([]int, error) {
	var serials []int
	err := d.Bun.NewSelect().
		Column("serial_number").
		Table("quotas").
		Where("order_id = ?", orderID).
		Where("active = ?", true).
		Where("awarded_quota_id IS NOT NULL").
		Order("serial_number ASC").
		Scan(ctx, &serials)
	if err != nil {
		return nil, err
	}
	return serials, nil
}

// IsWinningOrder reports whether the raffle's drawn winner quota belongs to
// this order.
func (d *DB) IsWinningOrder(ctx context.Context, orderID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.Quota)(nil)).
		Join("JOIN raffles AS r ON r.winner_quota_id = quota.id").
		Where("quota.order_id = ?", orderID).
		Where("quota.active = ?", true).
		Exists(ctx)
}

// ---------------- PAYMENTS ----------------

func (d *DB) CreatePayment(ctx context.Context, payment models.Payment) error {
	_, err := d.Bun.NewInsert().Model(&payment).Exec(ctx)
	return err
}

func (d *DB) GetPaymentByOrder(ctx context.Context, orderID string) (*models.Payment, error) {
	var payment models.Payment
	err := d.Bun.NewSelect().
		Model(&payment).
		Where("order_id = ?", orderID).
		Where("active = ?", true).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (d *DB) UpdatePaymentStatus(ctx context.Context, orderID string, status models.PaymentStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("active = ?", true).
		Exec(ctx)
	return err
}

// UpdateStatusByGatewayID records a gateway-reported status. Completed
// payments are immutable: a stale or out-of-order notification must not
// overwrite a settlement.
func (d *DB) UpdateStatusByGatewayID(ctx context.Context, gatewayID string, status models.PaymentStatus) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now()).
		Where("gateway_id = ?", gatewayID).
		Where("active = ?", true).
		Where("status != ?", models.PaymentStatusCompleted).
		Exec(ctx)
	return err
}

// MarkManual stamps the manual-gateway sentinels without touching the status:
// settlement itself goes through the shared confirmation path.
func (d *DB) MarkManual(ctx context.Context, orderID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("gateway = ?", models.GatewayManual).
		Set("gateway_id = ?", models.ManualGatewayID).
		Set("updated_at = ?", time.Now()).
		Where("order_id = ?", orderID).
		Where("active = ?", true).
		Exec(ctx)
	return err
}

// GetOrderIDByGatewayID resolves the order a gateway charge belongs to, used
// by the webhook when the charge metadata is missing.
func (d *DB) GetOrderIDByGatewayID(ctx context.Context, gatewayID string) (string, error) {
	var orderID string
	err := d.Bun.NewSelect().
		Column("order_id").
		Table("payments").
		Where("gateway_id = ?", gatewayID).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx, &orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return orderID, nil
}
