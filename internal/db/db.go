// Package db открывает хранилище и применяет миграции.
package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open подключается к базе выбранного драйвера.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverPostgres:
		return NewPostgres(ctx, dsn)
	case DriverSQLite:
		return NewSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("db: неизвестный драйвер %q", driver)
	}
}

// OpenAndMigrate открывает базу и сразу применяет миграции.
func OpenAndMigrate(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	conn, err := Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}
