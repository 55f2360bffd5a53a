package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mahima-medicare/healthstack-backend/api/routes"
	"github.com/mahima-medicare/healthstack-backend/internal/cart"
	"github.com/mahima-medicare/healthstack-backend/internal/catalog"
	"github.com/mahima-medicare/healthstack-backend/internal/checkout"
	"github.com/mahima-medicare/healthstack-backend/internal/fulfillment"
	"github.com/mahima-medicare/healthstack-backend/internal/invoices"
	"github.com/mahima-medicare/healthstack-backend/internal/notifications"
	"github.com/mahima-medicare/healthstack-backend/internal/orders"
	"github.com/mahima-medicare/healthstack-backend/internal/payments"
	"github.com/mahima-medicare/healthstack-backend/internal/prescriptions"
	"github.com/mahima-medicare/healthstack-backend/internal/users"
	gatewaywebhook "github.com/mahima-medicare/healthstack-backend/internal/webhooks/gateway"
	"github.com/mahima-medicare/healthstack-backend/pkg/config"
	"github.com/mahima-medicare/healthstack-backend/pkg/db"
	"github.com/mahima-medicare/healthstack-backend/pkg/gateway"
	"github.com/mahima-medicare/healthstack-backend/pkg/logger"
	"github.com/mahima-medicare/healthstack-backend/pkg/mailer"
	"github.com/mahima-medicare/healthstack-backend/pkg/metrics"
	"github.com/mahima-medicare/healthstack-backend/pkg/migrate"
	"github.com/mahima-medicare/healthstack-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gatewayClient, err := gateway.NewClient(context.Background(), cfg.Gateway, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap payment gateway client", err)
		os.Exit(1)
	}

	mailClient, err := mailer.New(cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap mailer", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := metrics.NewPaymentMetrics(registry)
	gatewayClient.WithMetrics(paymentMetrics)

	conn := dbClient.DB()
	policies := orders.NewPolicies(cfg.Policy)
	orderRepo := orders.NewRepository(conn)
	catalogRepo := catalog.NewRepository(conn)

	directory := users.NewDirectory(users.NewRepository(conn))
	emailer, err := notifications.NewEmailer(mailClient, directory, cfg.Sendgrid, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap notifications", err)
		os.Exit(1)
	}

	catalogSvc, err := catalog.NewService(catalogRepo, cfg.Policy.ExpiryWarningDays)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}
	cartSvc, err := cart.NewService(dbClient, cart.NewRepository(conn), catalogRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}
	checkoutSvc, err := checkout.NewService(dbClient, cart.NewRepository(conn), orderRepo, policies, logg, emailer)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}
	invoiceSvc, err := invoices.NewService(dbClient, invoices.NewRepository(conn), policies, paymentMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create invoice service", err)
		os.Exit(1)
	}
	paymentSvc, err := payments.NewService(dbClient, payments.NewRepository(conn), orderRepo, policies, gatewayClient, invoiceSvc, emailer, paymentMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payment service", err)
		os.Exit(1)
	}
	fulfillSvc, err := fulfillment.NewService(dbClient, orderRepo, policies, paymentSvc, emailer, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create fulfillment service", err)
		os.Exit(1)
	}
	presSvc, err := prescriptions.NewService(dbClient, prescriptions.NewRepository(conn), catalogRepo, orderRepo, policies, logg, emailer)
	if err != nil {
		logg.Error(context.Background(), "failed to create prescription service", err)
		os.Exit(1)
	}

	eventGuard, err := gatewaywebhook.NewIdempotencyGuard(redisClient, cfg.Webhook.EventGuardTTL, "gateway")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook event guard", err)
		os.Exit(1)
	}
	webhookSvc, err := gatewaywebhook.NewService(gatewaywebhook.ServiceParams{
		Verifier: gatewayClient,
		Guard:    eventGuard,
		Payments: paymentSvc,
		Metrics:  paymentMetrics,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:        cfg,
			Logger:        logg,
			Registry:      registry,
			DB:            dbClient,
			Redis:         redisClient,
			Catalog:       catalogSvc,
			Cart:          cartSvc,
			Checkout:      checkoutSvc,
			Orders:        orderRepo,
			Payments:      paymentSvc,
			Invoices:      invoiceSvc,
			Fulfillment:   fulfillSvc,
			Prescriptions: presSvc,
			Webhook:       webhookSvc,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
