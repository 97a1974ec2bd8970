package http

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ton-deals/backend/internal/config"
	"github.com/ton-deals/backend/internal/http/handlers"
	"github.com/ton-deals/backend/internal/middleware"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	dealHandler *handlers.DealHandler,
	paymentHandler *handlers.PaymentHandler,
	walletHandler *handlers.WalletHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	// Auth (public)
	api.Post("/auth/telegram", authHandler.TelegramAuth)

	api.Use(middleware.RateLimitMiddleware(rdb, 100, time.Minute))

	// Protected endpoints
	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	// User
	protected.Get("/me", userHandler.GetMe)
	protected.Post("/me/ping", userHandler.Ping)

	// Wallet (TON Connect + Proof)
	protected.Post("/me/wallet/proof-payload", walletHandler.GeneratePayload)
	protected.Post("/me/wallet/connect", walletHandler.ConnectWallet)
	protected.Delete("/me/wallet", walletHandler.DisconnectWallet)
	protected.Get("/me/wallet", walletHandler.GetWallet)

	// Deals: lifecycle
	protected.Post("/deals", dealHandler.CreateDeal)
	protected.Post("/deals/from-application/:application_id", dealHandler.CreateDealFromApplication)
	protected.Get("/deals", dealHandler.ListDeals)
	protected.Get("/deals/:id", dealHandler.GetDeal)
	protected.Post("/deals/:id/accept", dealHandler.AcceptDeal)
	protected.Post("/deals/:id/reject", dealHandler.RejectDeal)
	protected.Post("/deals/:id/cancel", dealHandler.CancelDeal)
	protected.Post("/deals/:id/draft", dealHandler.SubmitDraft)
	protected.Post("/deals/:id/draft/review", dealHandler.ReviewDraft)
	protected.Post("/deals/:id/posted", dealHandler.MarkPosted)
	protected.Post("/deals/:id/verify", dealHandler.VerifyPost)
	protected.Get("/deals/:id/events", dealHandler.GetDealEvents)

	// Deals: escrow / payments
	protected.Post("/deals/:id/payment", paymentHandler.InitiatePayment)
	protected.Post("/deals/:id/payment/verify", paymentHandler.VerifyPayment)
	protected.Post("/deals/:id/payment/confirm", paymentHandler.ConfirmPayment)
	protected.Get("/deals/:id/escrow", paymentHandler.GetEscrowStatus)
	protected.Get("/deals/:id/transactions", paymentHandler.GetTransactions)
	protected.Post("/deals/:id/refund", paymentHandler.RefundDeal)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
