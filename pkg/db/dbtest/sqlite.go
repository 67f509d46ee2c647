// Package dbtest opens isolated in-memory SQLite databases for package tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/basketcase/pkg/db"
)

// Open returns a fresh in-memory database migrated with the provided models. Each call
// gets its own named memory database so parallel packages do not share rows.
func Open(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to get sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(models) > 0 {
		if err := conn.AutoMigrate(models...); err != nil {
			t.Fatalf("failed to migrate sqlite: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a db.Client.
func Client(t *testing.T, models ...any) *db.Client {
	t.Helper()
	return db.NewFromGorm(Open(t, models...))
}
