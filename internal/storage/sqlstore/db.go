package sqlstore

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const (
	driverPostgres = "pgx"
	driverSQLite   = "sqlite"
)

func init() {
	// modernc registers itself as "sqlite", which sqlx does not know about.
	sqlx.BindDriver(driverSQLite, sqlx.QUESTION)
}

func ConnectPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driverPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// SQLiteConfig defines SQLite operational parameters.
type SQLiteConfig struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 4,
	}
}

// OpenSQLite opens a WAL-mode database file. The pragmas go into the DSN so
// every pooled connection gets them.
func OpenSQLite(ctx context.Context, path string, cfg SQLiteConfig) (*sqlx.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		path, cfg.BusyTimeout.Milliseconds())

	db, err := sqlx.ConnectContext(ctx, driverSQLite, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(time.Hour)

	return db, nil
}
