package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-raffle/internal/allocation"
	"ms-raffle/internal/analytics"
	analyticsapi "ms-raffle/internal/analytics/api"
	"ms-raffle/internal/auth"
	"ms-raffle/internal/config"
	"ms-raffle/internal/kafka"
	"ms-raffle/internal/logger"
	"ms-raffle/internal/numbering"
	"ms-raffle/internal/order"
	orderdb "ms-raffle/internal/order/db"
	"ms-raffle/internal/order/order_api"
	rediswrap "ms-raffle/internal/order/redis"
	"ms-raffle/internal/payment/handler"
	"ms-raffle/internal/payment/pix"
	"ms-raffle/internal/raffle"
	raffledb "ms-raffle/internal/raffle/db"
	"ms-raffle/internal/raffle/raffle_api"
	"ms-raffle/internal/sse"
	"ms-raffle/internal/users"
	usersdb "ms-raffle/internal/users/db"
	"ms-raffle/internal/users/users_api"
)

func verifyConnections(ctx context.Context, cfg *config.Config, log *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Raffle Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	log.Info("APP", "Verifying database connections")
	bunDB, redisClient := verifyConnections(ctx, cfg, log)
	defer bunDB.Close()
	defer redisClient.Close()

	kafkaProducer := kafka.NewProducer(cfg.Kafka, log)
	defer kafkaProducer.Close()
	if cfg.Kafka.Enabled {
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for brokers %v", cfg.Kafka.Brokers))
		requiredTopics := []string{
			cfg.Kafka.Topics.OrderCreated,
			cfg.Kafka.Topics.OrderPaid,
			cfg.Kafka.Topics.OrderExpired,
			cfg.Kafka.Topics.PaymentUpdated,
			cfg.Kafka.Topics.QuotaAwarded,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
	} else {
		log.Warn("KAFKA", "Kafka publishing disabled by configuration")
	}

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	space := numbering.NewSpace(numbering.DefaultMax)
	gateway := pix.NewClient(cfg.Gateway, log)
	emitter := sse.NewPaymentEventEmitter()

	orderStore := &orderdb.DB{Bun: bunDB}
	raffleStore := &raffledb.DB{Bun: bunDB}
	userStore := &usersdb.DB{Bun: bunDB}

	allocator := allocation.NewAllocator(orderStore, raffleStore, space, log)

	orderService := order.NewOrderService(
		orderStore,
		orderStore,
		orderStore,
		raffleStore,
		raffleStore,
		userStore,
		gateway,
		allocator,
		rediswrap.NewRedis(redisClient),
		kafkaProducer,
		emitter,
		space,
		log,
	)
	raffleService := raffle.NewService(raffleStore, space, log)
	userService := users.NewService(userStore, issuer, log)
	analyticsService := analytics.NewService(bunDB)

	orderHandler := order_api.NewHandler(orderService, log)
	sseHandler := order_api.NewSSEHandler(log, emitter, verifier)
	raffleHandler := raffle_api.NewHandler(raffleService, log)
	userHandler := users_api.NewHandler(userService, log)
	webhookHandler := handler.NewWebhookHandler(gateway, orderService, orderStore, kafkaProducer, log)
	analyticsHandler := analyticsapi.NewHandler(analyticsService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Route("/api", func(r chi.Router) {
		r.Post("/webhooks/payments", webhookHandler.HandleNotification)

		r.Post("/users", userHandler.Register)
		r.Post("/users/login", userHandler.Login)

		r.Get("/raffles", raffleHandler.ListRaffles)
		r.Get("/raffles/{raffleId}", raffleHandler.GetRaffle)

		r.Post("/orders", orderHandler.CreateOrder)
		r.Get("/orders/{orderId}", orderHandler.GetOrder)
		r.Get("/orders/{orderId}/events", sseHandler.HandleOrderPayments)
		r.Get("/users/{whatsapp}/orders", orderHandler.ListMyOrders)
	})
	log.Info("ROUTER", "Public routes registered under /api")

	// --- Admin Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier))
		r.Use(auth.RequireRole("admin"))
		log.Info("AUTH", "JWT middleware applied to admin API routes")

		r.Route("/api/admin", func(r chi.Router) {
			r.Get("/users", userHandler.ListUsers)
			r.Get("/users/{whatsapp}", userHandler.GetUser)

			r.Post("/raffles", raffleHandler.CreateRaffle)
			r.Put("/raffles/{raffleId}", raffleHandler.UpdateRaffle)
			r.Delete("/raffles/{raffleId}", raffleHandler.DeleteRaffle)
			r.Post("/raffles/{raffleId}/draw", raffleHandler.DrawRaffle)
			r.Put("/raffles/{raffleId}/flags", raffleHandler.SetFlags)
			r.Get("/raffles/{raffleId}/quotas/search", raffleHandler.SearchQuota)
			r.Put("/raffles/{raffleId}/quotas/{quotaId}", orderHandler.AdjustQuotaNumber)
			r.Get("/raffles/{raffleId}/events", sseHandler.HandleRafflePayments)

			r.Get("/orders", orderHandler.ListOrders)
			r.Delete("/orders/{orderId}", orderHandler.DeleteOrder)
			r.Post("/orders/{orderId}/pay", orderHandler.PayManually)
			r.Put("/orders/{orderId}/owner", orderHandler.ReassignOwner)

			r.Get("/analytics/raffles/{raffleId}", analyticsHandler.GetRaffleAnalytics)
			r.Get("/analytics/totals", analyticsHandler.GetSalesTotals)
		})
	})
	log.Info("ROUTER", "Admin routes registered under /api/admin")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Raffle Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Raffle Service shutdown complete")
	}
}
