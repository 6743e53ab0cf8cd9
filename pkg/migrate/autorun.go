package migrate

import (
	"context"
	"fmt"

	"github.com/sppg-platform/budget-engine/pkg/config"
	"github.com/sppg-platform/budget-engine/pkg/db"
	"github.com/sppg-platform/budget-engine/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on boot when running in dev with
// SPPG_AUTO_MIGRATE enabled.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	src := Embedded()
	pending, err := Pending(sqlDB, src)
	if err != nil {
		return err
	}
	ctx = logg.WithFields(ctx, map[string]any{"pending": pending})
	if pending == 0 {
		logg.Info(ctx, "schema up to date")
		return nil
	}

	logg.Info(ctx, "applying migrations (dev auto-run)")
	if err := Run(ctx, sqlDB, src, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}
	logg.Info(ctx, "migrations applied")
	return nil
}
