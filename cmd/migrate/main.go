package main

import (
	"context"
	"database/sql"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-raffle/internal/config"
	"ms-raffle/internal/models"
	"ms-raffle/internal/users"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}
	cfg := config.Load()

	sqldb, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqldb.Close()

	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	db := bun.NewDB(sqldb, pgdialect.New())

	log.Println("Dropping tables...")
	dropTables(ctx, db)

	log.Println("Creating tables...")
	createTables(ctx, db)

	log.Println("Creating indexes...")
	createIndexes(ctx, db)

	log.Println("Seeding sample data...")
	seedData(ctx, db)

	log.Println("✅ Done.")
}

func dropTables(ctx context.Context, db *bun.DB) {
	// Reverse dependency order.
	tables := []interface{}{
		(*models.Quota)(nil),
		(*models.Payment)(nil),
		(*models.Order)(nil),
		(*models.RaffleFlags)(nil),
		(*models.AwardedQuota)(nil),
		(*models.RafflePrice)(nil),
		(*models.Raffle)(nil),
		(*models.User)(nil),
	}
	for _, m := range tables {
		_, _ = db.NewDropTable().Model(m).IfExists().Cascade().Exec(ctx)
	}
}

func createTables(ctx context.Context, db *bun.DB) {
	tables := []interface{}{
		(*models.User)(nil),
		(*models.Raffle)(nil),
		(*models.RafflePrice)(nil),
		(*models.AwardedQuota)(nil),
		(*models.RaffleFlags)(nil),
		(*models.Order)(nil),
		(*models.Payment)(nil),
		(*models.Quota)(nil),
	}
	for _, m := range tables {
		if _, err := db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			log.Fatalf("❌ Failed to create table for %T: %v", m, err)
		}
	}
}

func createIndexes(ctx context.Context, db *bun.DB) {
	// The partial unique index is what makes quota allocation race safe: two
	// transactions claiming the same number in the same raffle and one loses.
	indexes := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_quotas_raffle_serial
			ON quotas (raffle_id, serial_number) WHERE active`,
		`CREATE INDEX IF NOT EXISTS ix_quotas_order ON quotas (order_id)`,
		`CREATE INDEX IF NOT EXISTS ix_orders_raffle ON orders (raffle_id)`,
		`CREATE INDEX IF NOT EXISTS ix_orders_user ON orders (user_id)`,
		`CREATE INDEX IF NOT EXISTS ix_payments_order ON payments (order_id)`,
		`CREATE INDEX IF NOT EXISTS ix_payments_gateway ON payments (gateway_id)`,
		`CREATE INDEX IF NOT EXISTS ix_awarded_raffle_number
			ON raffles_awarded_quotas (raffle_id, reference_number)`,
	}
	for _, stmt := range indexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			log.Fatalf("❌ Failed to create index: %v", err)
		}
	}
}

func seedData(ctx context.Context, db *bun.DB) {
	now := time.Now()

	adminHash, err := users.HashPassword("admin123")
	if err != nil {
		log.Fatalf("❌ Failed to hash admin password: %v", err)
	}
	seedUsers := []models.User{
		{
			Whatsapp:  "+5511999990000",
			Name:      "Admin",
			Roles:     []string{"admin", "customer"},
			Password:  adminHash,
			Active:    true,
			CreatedAt: now,
		},
		{
			Whatsapp:  "+5511888880000",
			Name:      "Maria Silva",
			Roles:     []string{"customer"},
			Active:    true,
			CreatedAt: now,
		},
	}
	_, _ = db.NewInsert().Model(&seedUsers).Exec(ctx)

	raffleID := uuid.NewString()
	raffle := models.Raffle{
		ID:            raffleID,
		Title:         "iPhone 16 Pro",
		Description:   "Sorteio beneficente - concorra a um iPhone 16 Pro.",
		ImagesURLs:    []string{"https://example.com/iphone.jpg"},
		MinQuantity:   1,
		MaxQuantity:   10000,
		PreQuantities: []int{10, 50, 100, 500},
		Active:        true,
		CreatedAt:     now,
	}
	_, _ = db.NewInsert().Model(&raffle).Exec(ctx)

	prices := []models.RafflePrice{
		{ID: uuid.NewString(), RaffleID: raffleID, Quantity: 1, Price: 0.10, Active: true, CreatedAt: now},
		{ID: uuid.NewString(), RaffleID: raffleID, Quantity: 100, Price: 0.08, Active: true, CreatedAt: now},
		{ID: uuid.NewString(), RaffleID: raffleID, Quantity: 1000, Price: 0.05, Active: true, CreatedAt: now},
	}
	_, _ = db.NewInsert().Model(&prices).Exec(ctx)

	awarded := []models.AwardedQuota{
		{ID: uuid.NewString(), RaffleID: raffleID, ReferenceNumber: 777777, Gift: "R$ 500,00 no PIX", Active: true, CreatedAt: now},
		{ID: uuid.NewString(), RaffleID: raffleID, ReferenceNumber: 123456, Gift: "R$ 200,00 no PIX", Active: true, CreatedAt: now},
	}
	_, _ = db.NewInsert().Model(&awarded).Exec(ctx)

	flags := models.RaffleFlags{
		ID:            raffleID,
		FlagTopBuyers: true,
	}
	_, _ = db.NewInsert().Model(&flags).Exec(ctx)
}
