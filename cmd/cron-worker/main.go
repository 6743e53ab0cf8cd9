package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/sppg-platform/budget-engine/internal/approvals"
	"github.com/sppg-platform/budget-engine/internal/cron"
	"github.com/sppg-platform/budget-engine/internal/escalation"
	"github.com/sppg-platform/budget-engine/internal/tenants"
	"github.com/sppg-platform/budget-engine/pkg/config"
	"github.com/sppg-platform/budget-engine/pkg/db"
	"github.com/sppg-platform/budget-engine/pkg/instance"
	"github.com/sppg-platform/budget-engine/pkg/logger"
	"github.com/sppg-platform/budget-engine/pkg/metrics"
	"github.com/sppg-platform/budget-engine/pkg/migrate"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/redis"
)

const (
	serviceKind = "cron-worker"
	lockName    = "cron-worker:%s"
)

func main() {
	once := flag.Bool("once", false, "run a single locked cycle and exit")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Environment: cfg.App.Env,
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
		"interval":    cfg.Escalation.SweepInterval.String(),
	})

	if err := run(ctx, cfg, logg, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		stop()
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	var lock cron.Lock = &cron.LocalLock{}
	if redis.Configured(cfg.Redis) {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		key := redisClient.LockKey(fmt.Sprintf(lockName, envOrLocal(cfg.App.Env)))
		if lock, err = cron.NewRedisLock(redisClient.Locker(), key, cfg.Escalation.LockTTL); err != nil {
			return fmt.Errorf("create cron lock: %w", err)
		}
	} else {
		logg.Warn(ctx, "redis not configured, cron lock only guards this process")
	}

	service, err := buildService(cfg, logg, dbClient, lock)
	if err != nil {
		return err
	}

	if once {
		logg.Info(ctx, "running single cron cycle")
		return service.RunOnce(ctx)
	}

	logg.Info(ctx, "starting cron worker")
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.App.MetricsPort, prometheus.DefaultGatherer, logg)
	})
	group.Go(func() error {
		return service.Run(groupCtx)
	})
	return group.Wait()
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, lock cron.Lock) (*cron.Service, error) {
	outboxRepo := outbox.NewRepository(dbClient.DB())
	tenantSvc, err := tenants.NewService(tenants.NewRepository(dbClient.DB()))
	if err != nil {
		return nil, fmt.Errorf("create tenant service: %w", err)
	}
	sweeper, err := escalation.NewService(escalation.ServiceParams{
		Tenants:       tenantSvc,
		Approvals:     approvals.NewRepository(dbClient.DB()),
		DB:            dbClient,
		Outbox:        outbox.NewService(outboxRepo, logg),
		Metrics:       metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
		Logger:        logg,
		TenantTimeout: cfg.Escalation.TenantTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("create escalation service: %w", err)
	}

	escalationJob, err := cron.NewEscalationJob(cron.EscalationJobParams{Logger: logg, Sweeper: sweeper})
	if err != nil {
		return nil, fmt.Errorf("create escalation job: %w", err)
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:                 logg,
		DB:                     dbClient,
		Repository:             outboxRepo,
		PublishedRetentionDays: cfg.Outbox.PublishedRetentionDays,
		ParkedRetentionDays:    cfg.Outbox.ParkedRetentionDays,
		MinAttempts:            cfg.Outbox.MaxAttempts,
		BatchSize:              cfg.Outbox.PruneBatchSize,
	})
	if err != nil {
		return nil, fmt.Errorf("create outbox retention job: %w", err)
	}

	return cron.NewService(cron.ServiceParams{
		Logger:     logg,
		Registry:   cron.NewRegistry(escalationJob, retentionJob),
		Lock:       lock,
		Metrics:    metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval:   cfg.Escalation.SweepInterval,
		JobTimeout: cfg.Escalation.JobTimeout,
	})
}

func envOrLocal(env string) string {
	if env == "" {
		return "local"
	}
	return env
}
