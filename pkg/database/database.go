// Package database opens the relational store behind the service. Two
// drivers are supported: postgres for server deployments and sqlite for
// the embedded CLI store and tests. Schema migrations are applied with
// goose on every connect.
package database

import (
	"context"
	"embed"
	"fmt"
	"net"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "pgx"
	DriverSqlite   = "sqlite3"
)

type Config struct {
	Driver   string `yaml:"driver" envconfig:"DB_DRIVER" default:"sqlite3"`
	Host     string `yaml:"host" envconfig:"DB_HOST" default:"localhost"`
	Port     string `yaml:"port" envconfig:"DB_PORT" default:"5432"`
	User     string `yaml:"user" envconfig:"DB_USER" default:"postgres"`
	Password string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name     string `yaml:"name" envconfig:"DB_NAME" default:"lending"`
	SSLMode  string `yaml:"sslmode" envconfig:"DB_SSLMODE" default:"disable"`
	Path     string `yaml:"path" envconfig:"DB_PATH" default:"biblioteka.db"`
}

// New connects, pings and migrates the configured database.
func New(ctx context.Context, cfg *Config, migrationFiles embed.FS) (*sqlx.DB, error) {
	var (
		db           *sqlx.DB
		err          error
		dialect, dir string
	)
	switch cfg.Driver {
	case DriverPostgres, "postgres":
		dsn := fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s",
			cfg.User, cfg.Password, net.JoinHostPort(cfg.Host, cfg.Port), cfg.Name, cfg.SSLMode)
		db, err = sqlx.ConnectContext(ctx, DriverPostgres, dsn)
		dialect, dir = "postgres", "postgres"
	case DriverSqlite:
		dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", cfg.Path)
		db, err = sqlx.ConnectContext(ctx, DriverSqlite, dsn)
		dialect, dir = "sqlite3", "sqlite"
	default:
		return nil, errors.Errorf("unsupported db driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "db connect")
	}

	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "goose dialect")
	}
	if err := goose.Up(db.DB, dir); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrations up")
	}
	return db, nil
}

// Placeholder returns the squirrel placeholder format matching a driver.
func Placeholder(driverName string) sq.PlaceholderFormat {
	if driverName == DriverPostgres {
		return sq.Dollar
	}
	return sq.Question
}
