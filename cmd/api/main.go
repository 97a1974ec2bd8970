package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/config"
	"github.com/ton-deals/backend/internal/db"
	"github.com/ton-deals/backend/internal/escrow"
	"github.com/ton-deals/backend/internal/events"
	apphttp "github.com/ton-deals/backend/internal/http"
	"github.com/ton-deals/backend/internal/http/handlers"
	"github.com/ton-deals/backend/internal/postcheck"
	"github.com/ton-deals/backend/internal/repositories"
	"github.com/ton-deals/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	// Run migrations
	if err := db.RunMigrations(ctx, pool, "migrations", log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repositories
	userRepo := repositories.NewUserRepo(pool)
	channelRepo := repositories.NewChannelRepo(pool)
	dealRepo := repositories.NewDealRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	walletRepo := repositories.NewWalletRepo(pool)
	campaignRepo := repositories.NewCampaignRepo(pool)

	// Events
	publisher := events.NewRedisPublisher(rdb, log)
	subscriber := events.NewRedisSubscriber(rdb, log)

	// Escrow
	vault := escrow.NewVault(escrowRepo, cfg.EscrowSecretKey, log)
	bridge, err := escrow.NewBridge(ctx, cfg, vault, escrowRepo, escrowRepo, log)
	if err != nil {
		log.Fatal("failed to initialize escrow bridge", zap.Error(err))
	}

	// Services
	botClient := services.NewBotClient(cfg.BotInternalURL, log)
	checker := postcheck.NewChecker(cfg.TMEFetchTimeoutMS, cfg.TMEFetchMaxRetries, log)
	dealService := services.NewDealService(
		dealRepo, channelRepo, campaignRepo, userRepo, auditRepo,
		vault, bridge, botClient, checker, postcheck.ParsePostLink,
		publisher, cfg, log,
	)
	walletService := services.NewWalletService(walletRepo, auditRepo, cfg, log)

	// Handlers
	authHandler := handlers.NewAuthHandler(userRepo, cfg, log)
	userHandler := handlers.NewUserHandler(userRepo, log)
	dealHandler := handlers.NewDealHandler(dealService, log)
	paymentHandler := handlers.NewPaymentHandler(dealService, log)
	walletHandler := handlers.NewWalletHandler(walletService, log)
	wsHub := handlers.NewWSHub(cfg, subscriber, log)

	// Start WS hub
	wsHub.Start(ctx)

	// Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	apphttp.SetupRouter(app, cfg, log, rdb, authHandler, userHandler, dealHandler, paymentHandler, walletHandler, wsHub)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.Shutdown()
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
