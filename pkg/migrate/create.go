package migrate

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var unsafeNameChars = regexp.MustCompile(`[^a-z0-9]+`)

// migrationTemplate is the skeleton of a new schema change. Statements run on postgres in
// production and on sqlite for `basketcase init`, so the header reminds authors of both.
const migrationTemplate = `-- %[1]s
-- Runs on postgres and sqlite: prefer portable DDL (TEXT, NUMERIC(10,2), TIMESTAMP) and guard
-- dialect-specific statements. The price_history and error_log tables are append-only.

-- +goose Up
-- +goose StatementBegin
-- apply %[1]s
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
-- revert %[1]s
-- +goose StatementEnd
`

// migrationSlug lowercases name and collapses anything outside [a-z0-9] to single underscores.
func migrationSlug(name string) string {
	slug := unsafeNameChars.ReplaceAllString(strings.ToLower(name), "_")
	return strings.Trim(slug, "_")
}

// CreateSQLMigration writes <dir>/<UTC timestamp>_<slug>.sql and returns its path. A name
// that an existing migration in dir already uses is rejected.
func CreateSQLMigration(dir string, name string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", fmt.Errorf("migrations dir is required")
	}
	slug := migrationSlug(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir %q: %w", dir, err)
	}

	existing, err := filepath.Glob(filepath.Join(dir, "*_"+slug+".sql"))
	if err != nil {
		return "", fmt.Errorf("scan migrations dir: %w", err)
	}
	if len(existing) > 0 {
		return "", fmt.Errorf("migration %q already exists: %s", slug, filepath.Base(existing[0]))
	}

	path := filepath.Join(dir, time.Now().UTC().Format("20060102150405")+"_"+slug+".sql")
	body := fmt.Sprintf(migrationTemplate, slug)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("write migration %q: %w", path, err)
	}
	return path, nil
}
