package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sppg-platform/budget-engine/api/routes"
	"github.com/sppg-platform/budget-engine/internal/approvals"
	"github.com/sppg-platform/budget-engine/internal/disbursements"
	"github.com/sppg-platform/budget-engine/internal/escalation"
	"github.com/sppg-platform/budget-engine/internal/ledger"
	"github.com/sppg-platform/budget-engine/internal/procurement"
	"github.com/sppg-platform/budget-engine/internal/tenants"
	"github.com/sppg-platform/budget-engine/internal/transactions"
	"github.com/sppg-platform/budget-engine/pkg/config"
	"github.com/sppg-platform/budget-engine/pkg/db"
	"github.com/sppg-platform/budget-engine/pkg/logger"
	"github.com/sppg-platform/budget-engine/pkg/metrics"
	"github.com/sppg-platform/budget-engine/pkg/migrate"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

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
		Environment: cfg.App.Env,
		Level:       cfg.App.LogLevel,
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

	registry := prometheus.NewRegistry()
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	services, err := buildServices(cfg, logg, dbClient, ledgerMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Metrics:     registry,
		}, services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, ledgerMetrics *metrics.LedgerMetrics) (routes.Services, error) {
	emitter := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(dbClient.DB()), dbClient, emitter, ledgerMetrics, logg)
	if err != nil {
		return routes.Services{}, err
	}
	txnSvc, err := transactions.NewService(transactions.NewRepository(dbClient.DB()), ledgerSvc, dbClient, emitter)
	if err != nil {
		return routes.Services{}, err
	}
	disbSvc, err := disbursements.NewService(
		disbursements.NewRepository(dbClient.DB()),
		ledgerSvc,
		dbClient,
		emitter,
		logg,
		cfg.Budget.BreakdownTolerance(),
	)
	if err != nil {
		return routes.Services{}, err
	}
	approvalRepo := approvals.NewRepository(dbClient.DB())
	approvalSvc, err := approvals.NewService(approvalRepo, dbClient, emitter)
	if err != nil {
		return routes.Services{}, err
	}
	procSvc, err := procurement.NewService(procurement.NewRepository(dbClient.DB()), dbClient, emitter)
	if err != nil {
		return routes.Services{}, err
	}
	tenantSvc, err := tenants.NewService(tenants.NewRepository(dbClient.DB()))
	if err != nil {
		return routes.Services{}, err
	}
	escSvc, err := escalation.NewService(escalation.ServiceParams{
		Tenants:       tenantSvc,
		Approvals:     approvalRepo,
		DB:            dbClient,
		Outbox:        emitter,
		Metrics:       ledgerMetrics,
		Logger:        logg,
		TenantTimeout: cfg.Escalation.TenantTimeout,
	})
	if err != nil {
		return routes.Services{}, err
	}

	return routes.Services{
		Ledger:        ledgerSvc,
		Transactions:  txnSvc,
		Disbursements: disbSvc,
		Approvals:     approvalSvc,
		Procurement:   procSvc,
		Escalation:    escSvc,
		Tenants:       tenantSvc,
	}, nil
}
