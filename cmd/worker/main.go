package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/config"
	"github.com/ton-deals/backend/internal/db"
	"github.com/ton-deals/backend/internal/escrow"
	"github.com/ton-deals/backend/internal/events"
	"github.com/ton-deals/backend/internal/postcheck"
	"github.com/ton-deals/backend/internal/repositories"
	"github.com/ton-deals/backend/internal/scheduler"
	"github.com/ton-deals/backend/internal/services"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Repos
	userRepo := repositories.NewUserRepo(pool)
	channelRepo := repositories.NewChannelRepo(pool)
	dealRepo := repositories.NewDealRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	campaignRepo := repositories.NewCampaignRepo(pool)

	// Escrow
	vault := escrow.NewVault(escrowRepo, cfg.EscrowSecretKey, log)
	bridge, err := escrow.NewBridge(ctx, cfg, vault, escrowRepo, escrowRepo, log)
	if err != nil {
		log.Fatal("failed to initialize escrow bridge", zap.Error(err))
	}

	// Services
	publisher := events.NewRedisPublisher(rdb, log)
	botClient := services.NewBotClient(cfg.BotInternalURL, log)
	checker := postcheck.NewChecker(cfg.TMEFetchTimeoutMS, cfg.TMEFetchMaxRetries, log)
	dealService := services.NewDealService(
		dealRepo, channelRepo, campaignRepo, userRepo, auditRepo,
		vault, bridge, botClient, checker, postcheck.ParsePostLink,
		publisher, cfg, log,
	)

	// Background jobs
	registry := scheduler.NewRegistry(log)
	scheduler.RegisterDealJobs(registry, dealService, cfg)
	registry.Start(ctx)

	log.Info("worker started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down worker")
	cancel()
	registry.Stop()
}
