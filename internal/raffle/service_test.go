package raffle_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ms-raffle/internal/logger"
	"ms-raffle/internal/models"
	"ms-raffle/internal/numbering"
	"ms-raffle/internal/raffle"
	raffledb "ms-raffle/internal/raffle/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

func setupService(t *testing.T) (*raffle.Service, *raffledb.DB, *bun.DB) {
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Raffle)(nil),
		(*models.RafflePrice)(nil),
		(*models.AwardedQuota)(nil),
		(*models.RaffleFlags)(nil),
		(*models.Quota)(nil),
		(*models.Order)(nil),
		(*models.User)(nil),
	} {
		_, err := bunDB.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}

	store := &raffledb.DB{Bun: bunDB}
	svc := raffle.NewService(store, numbering.NewSpace(numbering.DefaultMax), logger.NewLogger())
	return svc, store, bunDB
}

func createTestRaffle(t *testing.T, svc *raffle.Service) *models.Raffle {
	t.Helper()
	created, err := svc.Create(context.Background(), models.CreateRaffleRequest{
		Title:       "iPhone 16 Pro",
		Description: "Sorteio beneficente",
		ImagesURLs:  []string{"https://cdn.example.com/iphone.jpg"},
		Prices: []models.PriceTierInput{
			{Quantity: 1, Price: 0.10},
			{Quantity: 100, Price: 0.08},
		},
		AwardedNumbers: []models.AwardedQuotaInput{
			{ReferenceNumber: 777777, Gift: "R$500 no PIX"},
		},
		MinQuantity:   1,
		MaxQuantity:   10000,
		PreQuantities: []int{10, 50, 100},
	})
	require.NoError(t, err)
	return created
}

// seedSoldQuota inserts a user, a completed order and one quota row holding
// the serial number.
func seedSoldQuota(t *testing.T, bunDB *bun.DB, raffleID, whatsapp, name string, serial int, createdAt time.Time) string {
	t.Helper()
	ctx := context.Background()

	user := models.User{Whatsapp: whatsapp, Name: name, Roles: []string{"customer"}, Active: true, CreatedAt: createdAt}
	_, err := bunDB.NewInsert().Model(&user).On("CONFLICT DO NOTHING").Exec(ctx)
	require.NoError(t, err)

	order := models.Order{
		ID:             uuid.NewString(),
		UserID:         whatsapp,
		RaffleID:       raffleID,
		QuotasQuantity: 1,
		Status:         models.OrderStatusCompleted,
		Active:         true,
		CreatedAt:      createdAt,
	}
	_, err = bunDB.NewInsert().Model(&order).Exec(ctx)
	require.NoError(t, err)

	quota := models.Quota{
		ID:           uuid.NewString(),
		RaffleID:     raffleID,
		OrderID:      order.ID,
		SerialNumber: serial,
		Status:       models.QuotaStatusReserved,
		Active:       true,
		CreatedAt:    createdAt,
	}
	_, err = bunDB.NewInsert().Model(&quota).Exec(ctx)
	require.NoError(t, err)

	return quota.ID
}

func TestCreateAndGetRaffle(t *testing.T) {
	svc, _, bunDB := setupService(t)
	defer bunDB.Close()

	created := createTestRaffle(t, svc)
	assert.Equal(t, "active", created.Status())

	detail, err := svc.Get(context.Background(), created.ID)
	assert.NoError(t, err)
	assert.Equal(t, "iPhone 16 Pro", detail.Raffle.Title)
	assert.Len(t, detail.Prices, 2)
	// Tiers come back ordered by quantity ascending.
	assert.Equal(t, 1, detail.Prices[0].Quantity)
	assert.Equal(t, 100, detail.Prices[1].Quantity)
	assert.Len(t, detail.AwardedQuotas, 1)
	assert.Equal(t, 777777, detail.AwardedQuotas[0].ReferenceNumber)
	assert.Equal(t, 0, detail.QuotasSold)
	assert.NotNil(t, detail.Flags)
}

func TestCreateValidation(t *testing.T) {
	svc, _, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	_, err := svc.Create(ctx, models.CreateRaffleRequest{Title: ""})
	assert.ErrorIs(t, err, raffle.ErrInvalidInput)

	_, err = svc.Create(ctx, models.CreateRaffleRequest{Title: "No tiers"})
	assert.ErrorIs(t, err, raffle.ErrInvalidInput)

	_, err = svc.Create(ctx, models.CreateRaffleRequest{
		Title:  "Free tier",
		Prices: []models.PriceTierInput{{Quantity: 1, Price: 0}},
	})
	assert.ErrorIs(t, err, raffle.ErrInvalidInput)

	_, err = svc.Create(ctx, models.CreateRaffleRequest{
		Title:          "Prize out of range",
		Prices:         []models.PriceTierInput{{Quantity: 1, Price: 0.10}},
		AwardedNumbers: []models.AwardedQuotaInput{{ReferenceNumber: numbering.DefaultMax + 1}},
	})
	assert.ErrorIs(t, err, raffle.ErrInvalidInput)
}

func TestUpdateReconcilesPricesAndPrizes(t *testing.T) {
	svc, store, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := createTestRaffle(t, svc)

	before, err := store.GetActivePrices(ctx, created.ID)
	require.NoError(t, err)
	var keptTierID string
	for _, p := range before {
		if p.Quantity == 1 {
			keptTierID = p.ID
		}
	}

	_, err = svc.Update(ctx, created.ID, models.UpdateRaffleRequest{
		Title:       "iPhone 16 Pro Max",
		Description: created.Description,
		Prices: []models.PriceTierInput{
			{Quantity: 1, Price: 0.10},   // unchanged, row must survive
			{Quantity: 1000, Price: 0.05}, // new
		},
		AwardedNumbers: []models.AwardedQuotaInput{
			{ReferenceNumber: 123456, Gift: "Fone de ouvido"}, // replaces 777777
		},
		MinQuantity: 1,
		MaxQuantity: 10000,
	})
	assert.NoError(t, err)

	after, err := store.GetActivePrices(ctx, created.ID)
	assert.NoError(t, err)
	assert.Len(t, after, 2)
	quantities := map[int]string{}
	for _, p := range after {
		quantities[p.Quantity] = p.ID
	}
	// The matching tier kept its identity, the dropped one is gone.
	assert.Equal(t, keptTierID, quantities[1])
	assert.Contains(t, quantities, 1000)
	assert.NotContains(t, quantities, 100)

	awarded, err := store.GetActiveAwardedQuotas(ctx, created.ID)
	assert.NoError(t, err)
	assert.Len(t, awarded, 1)
	assert.Equal(t, 123456, awarded[0].ReferenceNumber)

	updated, err := store.GetRaffle(ctx, created.ID)
	assert.NoError(t, err)
	assert.Equal(t, "iPhone 16 Pro Max", updated.Title)
}

func TestUpdateKeepsClaimedPrize(t *testing.T) {
	svc, store, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := createTestRaffle(t, svc)

	awarded, err := store.GetActiveAwardedQuotas(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, awarded, 1)

	seedSoldQuota(t, bunDB, created.ID, "+5511999990000", "Maria da Silva", 777777, time.Now())
	won, err := store.BindUser(ctx, awarded[0].ID, "+5511999990000")
	require.NoError(t, err)
	require.True(t, won)

	// The update drops number 777777 from the prize list, but the prize is
	// already claimed and must survive.
	_, err = svc.Update(ctx, created.ID, models.UpdateRaffleRequest{
		Title:          created.Title,
		Prices:         []models.PriceTierInput{{Quantity: 1, Price: 0.10}},
		AwardedNumbers: []models.AwardedQuotaInput{{ReferenceNumber: 111111, Gift: "Novo brinde"}},
	})
	assert.NoError(t, err)

	after, err := store.GetActiveAwardedQuotas(ctx, created.ID)
	assert.NoError(t, err)
	numbers := map[int]bool{}
	for _, a := range after {
		numbers[a.ReferenceNumber] = true
	}
	assert.True(t, numbers[777777], "claimed prize must not be deactivated")
	assert.True(t, numbers[111111])
}

func TestDraw(t *testing.T) {
	svc, store, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := createTestRaffle(t, svc)

	// Unsold number cannot win.
	_, err := svc.Draw(ctx, created.ID, 42137)
	assert.ErrorIs(t, err, raffle.ErrQuotaNotSold)

	quotaID := seedSoldQuota(t, bunDB, created.ID, "+5511999990000", "Maria da Silva", 42137, time.Now())

	winner, err := svc.Draw(ctx, created.ID, 42137)
	assert.NoError(t, err)
	assert.Equal(t, quotaID, winner.QuotaID)
	assert.Equal(t, "Maria da Silva", winner.OwnerName)
	assert.Equal(t, "+5511999990000", winner.OwnerPhone)

	closed, err := store.GetRaffle(ctx, created.ID)
	assert.NoError(t, err)
	assert.Equal(t, "finished", closed.Status())
	assert.Equal(t, quotaID, closed.WinnerQuotaID)

	// The draw is final.
	_, err = svc.Draw(ctx, created.ID, 42137)
	assert.ErrorIs(t, err, raffle.ErrFinished)
}

func TestGetWithLeaderboardFlags(t *testing.T) {
	svc, _, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := createTestRaffle(t, svc)
	now := time.Now()

	seedSoldQuota(t, bunDB, created.ID, "+5511999990000", "Maria da Silva", 10, now)
	seedSoldQuota(t, bunDB, created.ID, "+5511999990000", "Maria da Silva", 20, now)
	seedSoldQuota(t, bunDB, created.ID, "+5511888880000", "Joao Souza", 900, now)

	err := svc.SetFlags(ctx, created.ID, models.RaffleFlags{
		FlagTopBuyers:    true,
		FlagHighestQuota: true,
		FlagLowestQuota:  true,
	})
	assert.NoError(t, err)

	detail, err := svc.Get(ctx, created.ID)
	assert.NoError(t, err)
	assert.Equal(t, 3, detail.QuotasSold)

	require.Len(t, detail.TopBuyers, 2)
	assert.Equal(t, "Maria da Silva", detail.TopBuyers[0].Name)
	assert.Equal(t, 2, detail.TopBuyers[0].Quantity)

	require.NotNil(t, detail.HighestQuota)
	assert.Equal(t, 900, detail.HighestQuota.SerialNumber)
	assert.Equal(t, "Joao Souza", detail.HighestQuota.Name)
	require.NotNil(t, detail.LowestQuota)
	assert.Equal(t, 10, detail.LowestQuota.SerialNumber)

	// Disabled blocks stay empty.
	assert.Empty(t, detail.TopBuyersWeek)
	assert.Empty(t, detail.TopBuyersDay)
}

func TestSearchQuota(t *testing.T) {
	svc, _, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := createTestRaffle(t, svc)
	seedSoldQuota(t, bunDB, created.ID, "+5511999990000", "Maria da Silva", 555, time.Now())

	owner, err := svc.SearchQuota(ctx, created.ID, 555)
	assert.NoError(t, err)
	assert.Equal(t, 555, owner.SerialNumber)
	assert.Equal(t, "Maria da Silva", owner.OwnerName)
	assert.False(t, owner.IsAwarded)

	_, err = svc.SearchQuota(ctx, created.ID, 556)
	assert.ErrorIs(t, err, raffle.ErrQuotaNotSold)
}

func TestSoftDeleteRaffle(t *testing.T) {
	svc, _, bunDB := setupService(t)
	defer bunDB.Close()
	ctx := context.Background()

	created := createTestRaffle(t, svc)

	assert.NoError(t, svc.SoftDelete(ctx, created.ID))

	_, err := svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, raffle.ErrNotFound)

	list, err := svc.List(ctx)
	assert.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, svc.SoftDelete(ctx, created.ID), raffle.ErrNotFound)
}
