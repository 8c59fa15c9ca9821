package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"ms-raffle/internal/models"

	"github.com/uptrace/bun"
)

type DB struct {
	Bun *bun.DB
}

// ---------------- RAFFLES ----------------

func (d *DB) CreateRaffle(ctx context.Context, raffle models.Raffle) error {
	_, err := d.Bun.NewInsert().Model(&raffle).Exec(ctx)
	return err
}

func (d *DB) GetRaffle(ctx context.Context, raffleID string) (*models.Raffle, error) {
	var raffle models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffle).
		Where("id = ?", raffleID).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &raffle, nil
}

func (d *DB) GetRaffleTitle(ctx context.Context, raffleID string) (string, error) {
	var title string
	err := d.Bun.NewSelect().
		Column("title").
		Table("raffles").
		Where("id = ?", raffleID).
		Limit(1).
		Scan(ctx, &title)
	if err != nil {
		return "", err
	}
	return title, nil
}

func (d *DB) ListRaffles(ctx context.Context) ([]models.Raffle, error) {
	var raffles []models.Raffle
	err := d.Bun.NewSelect().
		Model(&raffles).
		Where("active = ?", true).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return raffles, nil
}

func (d *DB) UpdateRaffle(ctx context.Context, raffle models.Raffle) error {
	_, err := d.Bun.NewUpdate().
		Model(&raffle).
		Column("title", "description", "images_urls", "min_quantity", "max_quantity", "pre_quantities", "updated_at").
		Where("id = ?", raffle.ID).
		Exec(ctx)
	return err
}

func (d *DB) SetWinnerQuota(ctx context.Context, raffleID, quotaID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Raffle)(nil)).
		Set("winner_quota_id = ?", quotaID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", raffleID).
		Exec(ctx)
	return err
}

func (d *DB) SoftDeleteRaffle(ctx context.Context, raffleID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Raffle)(nil)).
		Set("active = ?", false).
		Where("id = ?", raffleID).
		Exec(ctx)
	return err
}

// ---------------- PRICES ----------------

func (d *DB) CreatePrices(ctx context.Context, prices []models.RafflePrice) error {
	if len(prices) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&prices).Exec(ctx)
	return err
}

func (d *DB) GetActivePrices(ctx context.Context, raffleID string) ([]models.RafflePrice, error) {
	var prices []models.RafflePrice
	err := d.Bun.NewSelect().
		Model(&prices).
		Where("raffle_id = ?", raffleID).
		Where("active = ?", true).
		Order("quantity ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return prices, nil
}

func (d *DB) DeactivatePrices(ctx context.Context, priceIDs []string) error {
	if len(priceIDs) == 0 {
		return nil
	}
	_, err := d.Bun.NewUpdate().
		Model((*models.RafflePrice)(nil)).
		Set("active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(priceIDs)).
		Exec(ctx)
	return err
}

// ---------------- AWARDED QUOTAS ----------------

func (d *DB) CreateAwardedQuotas(ctx context.Context, awarded []models.AwardedQuota) error {
	if len(awarded) == 0 {
		return nil
	}
	_, err := d.Bun.NewInsert().Model(&awarded).Exec(ctx)
	return err
}

func (d *DB) GetActiveAwardedQuotas(ctx context.Context, raffleID string) ([]models.AwardedQuota, error) {
	var awarded []models.AwardedQuota
	err := d.Bun.NewSelect().
		Model(&awarded).
		ColumnExpr("awarded_quota.*").
		ColumnExpr("u.name AS user_name").
		Join("LEFT JOIN users AS u ON u.whatsapp = awarded_quota.user_id").
		Where("awarded_quota.raffle_id = ?", raffleID).
		Where("awarded_quota.active = ?", true).
		Order("awarded_quota.reference_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return awarded, nil
}

// FindActiveByNumber returns the undrawn or drawn prize sitting on a serial
// number, nil when the number carries no prize.
func (d *DB) FindActiveByNumber(ctx context.Context, raffleID string, serialNumber int) (*models.AwardedQuota, error) {
	var awarded models.AwardedQuota
	err := d.Bun.NewSelect().
		Model(&awarded).
		Where("raffle_id = ?", raffleID).
		Where("reference_number = ?", serialNumber).
		Where("active = ?", true).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &awarded, nil
}

// BindUser claims a prize for a user. First writer wins: a prize already
// bound to someone else is left untouched and the call reports false.
func (d *DB) BindUser(ctx context.Context, awardedQuotaID, userID string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.AwardedQuota)(nil)).
		Set("user_id = ?", userID).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", awardedQuotaID).
		Where("user_id IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// CascadeOwner follows an order's quotas to the prizes they claimed and
// repoints those prizes at the order's new owner.
func (d *DB) CascadeOwner(ctx context.Context, orderID, userID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.AwardedQuota)(nil)).
		Set("user_id = ?", userID).
		Set("updated_at = ?", time.Now()).
		Where("id IN (SELECT awarded_quota_id FROM quotas WHERE order_id = ? AND awarded_quota_id IS NOT NULL AND active = ?)", orderID, true).
		Exec(ctx)
	return err
}

func (d *DB) DeactivateAwardedQuotas(ctx context.Context, awardedIDs []string) error {
	if len(awardedIDs) == 0 {
		return nil
	}
	// A prize already claimed by a quota stays on the books.
	_, err := d.Bun.NewUpdate().
		Model((*models.AwardedQuota)(nil)).
		Set("active = ?", false).
		Set("updated_at = ?", time.Now()).
		Where("id IN (?)", bun.In(awardedIDs)).
		Where("user_id IS NULL").
		Exec(ctx)
	return err
}

// ---------------- FLAGS ----------------

func (d *DB) CreateFlags(ctx context.Context, flags models.RaffleFlags) error {
	_, err := d.Bun.NewInsert().Model(&flags).Exec(ctx)
	return err
}

func (d *DB) GetFlags(ctx context.Context, raffleID string) (*models.RaffleFlags, error) {
	var flags models.RaffleFlags
	err := d.Bun.NewSelect().
		Model(&flags).
		Where("id = ?", raffleID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flags, nil
}

func (d *DB) UpdateFlags(ctx context.Context, flags models.RaffleFlags) error {
	_, err := d.Bun.NewUpdate().
		Model(&flags).
		Column("flag_top_buyers", "flag_top_buyers_week", "flag_top_buyers_day", "flag_lowest_quota", "flag_highest_quota").
		Where("id = ?", flags.ID).
		Exec(ctx)
	return err
}

// ---------------- STATS ----------------

func (d *DB) CountQuotasSold(ctx context.Context, raffleID string) (int, error) {
	return d.Bun.NewSelect().
		Model((*models.Quota)(nil)).
		Where("raffle_id = ?", raffleID).
		Where("active = ?", true).
		Count(ctx)
}

// TopBuyers ranks users by quotas bought in the raffle since the cutoff. A
// zero cutoff ranks over the raffle's whole lifetime.
func (d *DB) TopBuyers(ctx context.Context, raffleID string, since time.Time, limit int) ([]models.TopBuyer, error) {
	q := d.Bun.NewSelect().
		ColumnExpr("o.user_id AS user_id").
		ColumnExpr("u.name AS name").
		ColumnExpr("COUNT(q.id) AS quantity").
		TableExpr("quotas AS q").
		Join("JOIN orders AS o ON o.id = q.order_id").
		Join("JOIN users AS u ON u.whatsapp = o.user_id").
		Where("q.raffle_id = ?", raffleID).
		Where("q.active = ?", true).
		GroupExpr("o.user_id, u.name").
		OrderExpr("quantity DESC").
		Limit(limit)
	if !since.IsZero() {
		q = q.Where("q.created_at >= ?", since)
	}

	var buyers []models.TopBuyer
	if err := q.Scan(ctx, &buyers); err != nil {
		return nil, err
	}
	return buyers, nil
}

// EdgeQuota returns the owner of the highest or lowest allocated number.
func (d *DB) EdgeQuota(ctx context.Context, raffleID string, highest bool) (*models.EdgeQuota, error) {
	direction := "ASC"
	if highest {
		direction = "DESC"
	}

	var edge models.EdgeQuota
	err := d.Bun.NewSelect().
		ColumnExpr("o.user_id AS user_id").
		ColumnExpr("u.name AS name").
		ColumnExpr("q.serial_number AS serial_number").
		TableExpr("quotas AS q").
		Join("JOIN orders AS o ON o.id = q.order_id").
		Join("JOIN users AS u ON u.whatsapp = o.user_id").
		Where("q.raffle_id = ?", raffleID).
		Where("q.active = ?", true).
		OrderExpr("q.serial_number "+direction).
		Limit(1).
		Scan(ctx, &edge)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// SearchQuotaOwner resolves who holds a serial number in a raffle.
func (d *DB) SearchQuotaOwner(ctx context.Context, raffleID string, serialNumber int) (*models.QuotaOwner, error) {
	var owner models.QuotaOwner
	err := d.Bun.NewSelect().
		ColumnExpr("q.id AS id").
		ColumnExpr("q.serial_number AS serial_number").
		ColumnExpr("u.name AS owner_name").
		ColumnExpr("u.whatsapp AS owner_phone").
		ColumnExpr("q.awarded_quota_id IS NOT NULL AS is_awarded").
		TableExpr("quotas AS q").
		Join("JOIN orders AS o ON o.id = q.order_id").
		Join("JOIN users AS u ON u.whatsapp = o.user_id").
		Where("q.raffle_id = ?", raffleID).
		Where("q.serial_number = ?", serialNumber).
		Where("q.active = ?", true).
		Limit(1).
		Scan(ctx, &owner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &owner, nil
}

// GetQuotaBySerial fetches the quota row holding a serial number.
func (d *DB) GetQuotaBySerial(ctx context.Context, raffleID string, serialNumber int) (*models.Quota, error) {
	var quota models.Quota
	err := d.Bun.NewSelect().
		Model(&quota).
		Where("raffle_id = ?", raffleID).
		Where("serial_number = ?", serialNumber).
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
