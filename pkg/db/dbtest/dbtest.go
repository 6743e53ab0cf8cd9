// Package dbtest opens throwaway sqlite databases carrying the full model set.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/pkg/db"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
)

// Open returns a client over a private in-memory sqlite database.
// The pool is pinned to one connection so writers serialize the way
// row locks serialize them on postgres. Code running inside WithTx must
// use the tx handle for every query or it will block on the pool.
func Open(t testing.TB) *db.Client {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return db.FromGorm(conn)
}

// SeedTenant inserts an active tenant and returns it.
func SeedTenant(t testing.TB, client *db.Client, code string) models.Tenant {
	t.Helper()
	tenant := models.Tenant{Code: code, Name: "SPPG " + code, IsActive: true}
	if err := client.DB().Create(&tenant).Error; err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant
}
