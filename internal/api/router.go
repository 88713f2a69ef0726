package api

import (
	"github.com/assignx/payments/internal/api/handler"
	"github.com/assignx/payments/internal/api/middleware"
	"github.com/assignx/payments/internal/api/spec"
	"github.com/assignx/payments/internal/config"
	"github.com/assignx/payments/internal/idempotency"
	"github.com/assignx/payments/internal/ledger"
	"github.com/assignx/payments/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
)

// Router assembles the HTTP surface from its dependencies.
type Router struct {
	cfg          *config.Config
	logger       *zap.Logger
	db           *pgxpool.Pool
	redis        redis.Cmdable
	ledger       ledger.Store
	orchestrator *service.PaymentOrchestrator
	idemStore    *idempotency.Store
}

func NewRouter(cfg *config.Config, logger *zap.Logger, db *pgxpool.Pool, redisClient redis.Cmdable, ledgerStore ledger.Store, orchestrator *service.PaymentOrchestrator, idemStore *idempotency.Store) *Router {
	return &Router{
		cfg:          cfg,
		logger:       logger,
		db:           db,
		redis:        redisClient,
		ledger:       ledgerStore,
		orchestrator: orchestrator,
		idemStore:    idemStore,
	}
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.logger))
	r.Use(middleware.MetricsMiddleware)
	r.Use(middleware.RecoverMiddleware(api.logger))

	healthHandler := handler.NewHealthHandler(api.db, api.redis)
	orderHandler := handler.NewOrderHandler(api.orchestrator)
	walletHandler := handler.NewWalletHandler(api.ledger, api.orchestrator)
	webhookHandler := handler.NewWebhookHandler(api.orchestrator)

	idem := middleware.IdempotencyMiddleware(api.idemStore, api.logger)

	// Public routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.cfg.PublicRateLimitRPS))

		r.Get("/healthz", healthHandler.Live)
		r.Get("/readyz", healthHandler.Ready)
		r.Get("/openapi.yaml", spec.OpenAPIHandler())
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.yaml")))

		// Gateway-to-server notification; authenticated by its HMAC
		// signature, not by a user token.
		r.Post("/v1/webhooks/payment", webhookHandler.HandlePaymentWebhook)
	})

	r.Handle("/metrics", promhttp.Handler())

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware)
		r.Use(middleware.AuthRateLimiter(api.cfg.AuthRateLimitRPS))

		// Wallets
		r.Post("/v1/wallets", walletHandler.CreateWallet)
		r.Get("/v1/wallets/{id}/balance", walletHandler.GetBalance)
		r.Get("/v1/wallets/{id}/entries", walletHandler.GetEntries)
		r.With(idem).Post("/v1/wallets/{id}/debits", walletHandler.CreateDebit)

		// Payment orders
		r.With(idem).Post("/v1/payments/orders", orderHandler.CreateOrder)
		r.Get("/v1/payments/orders/{id}", orderHandler.GetOrder)
		r.With(idem).Post("/v1/payments/orders/{id}/confirm", orderHandler.ConfirmOrder)
		r.With(idem).Post("/v1/payments/orders/{id}/cancel", orderHandler.CancelOrder)
	})

	return r
}
