package postgres

import (
	"context"
	"embed"

	"gorm.io/gorm"

	"github.com/viralforge/taskboard/internal/platform/pg"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ApplyMigrations runs the embedded identity schema against db.
func ApplyMigrations(ctx context.Context, db *gorm.DB) error {
	return pg.Migrate(ctx, db, migrationFiles, "migrations")
}
