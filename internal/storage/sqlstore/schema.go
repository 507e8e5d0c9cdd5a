package sqlstore

import (
	"context"
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate creates the video and outbox tables for the connected dialect.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	var name string
	switch db.DriverName() {
	case driverPostgres:
		name = "migrations/postgres.sql"
	case driverSQLite:
		name = "migrations/sqlite.sql"
	default:
		return fmt.Errorf("migrate: unsupported driver %q", db.DriverName())
	}

	ddl, err := migrations.ReadFile(name)
	if err != nil {
		return fmt.Errorf("migrate: read %s: %w", name, err)
	}
	if _, err := db.ExecContext(ctx, string(ddl)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}
