package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/basketcase/pkg/db/dbtest"
	"github.com/angelmondragon/basketcase/pkg/logger"
)

func TestEmbeddedMigrationsValidate(t *testing.T) {
	require.NoError(t, ValidateDir("migrations"))
}

func TestMigrationsDeclareUniqueConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, matches)

	var all strings.Builder
	for _, path := range matches {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		all.Write(data)
	}
	content := all.String()

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stores",
		"store_id     varchar(8) PRIMARY KEY",
		"product_id   text PRIMARY KEY",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_products_upc",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_categories_name",
		"PRIMARY KEY (basket_id, product_id)",
		"REFERENCES baskets (id) ON DELETE CASCADE",
		"CHECK (price > 0)",
		"CREATE INDEX IF NOT EXISTS idx_price_history_partition",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_inflation_indices_basket_scope",
		"CREATE TABLE IF NOT EXISTS error_log",
	}
	for _, sub := range checks {
		require.Contains(t, content, sub)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "001_bad.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644))
	require.ErrorContains(t, ValidateDir(dir), "invalid migration filename")

	empty := t.TempDir()
	require.ErrorContains(t, ValidateDir(empty), "no migrations found")
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	body := []byte("-- +goose Up\n-- +goose Down\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_a.sql"), body, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20260101000000_b.sql"), body, 0o644))
	require.ErrorContains(t, ValidateDir(dir), "duplicate migration version")
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := CreateSQLMigration(dir, "Add Store Hours!")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(path, "_add_store_hours.sql"), path)
	require.NoError(t, ValidateDir(dir))

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(body), "-- add_store_hours\n"))
	require.Contains(t, string(body), "-- +goose Up")

	_, err = CreateSQLMigration(dir, "add  store-hours")
	require.ErrorContains(t, err, "already exists")

	_, err = CreateSQLMigration(dir, "!!!")
	require.Error(t, err)
}

func TestApplyAutoMigratesSQLite(t *testing.T) {
	client := dbtest.Client(t)
	require.NoError(t, Apply(context.Background(), logger.Nop(), client))

	for _, table := range []string{"stores", "categories", "products", "baskets", "basket_items", "price_history", "inflation_indices", "error_log"} {
		require.True(t, client.DB().Migrator().HasTable(table), table)
	}
}
