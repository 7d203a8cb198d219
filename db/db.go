// Package db is the persistence layer for the two things ManageSieve
// itself owns: user credentials (for LOGIN/AUTHENTICATE) and a user's
// Sieve scripts (for PUTSCRIPT/GETSCRIPT/SETACTIVE/...), plus the
// vacation-response ledger the vacation action consults. The actual
// mail store — mailboxes, messages, delivery — is an external
// collaborator per spec §1 and is not modeled here.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Database holds the connection pool every store method hangs off.
type Database struct {
	Pool *pgxpool.Pool
}

// Config is the set of connection parameters NewDatabase needs; it
// mirrors the sievegate_database_* settings named in spec §6.
type Config struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

func (c Config) dsn() string {
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, sslmode)
}

// NewDatabase opens the pool, verifies connectivity, and applies any
// pending migrations before returning.
func NewDatabase(ctx context.Context, cfg Config) (*Database, error) {
	connString := cfg.dsn()
	log.Printf("connecting to database: postgres://%s@%s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.Name)

	poolCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	poolCfg.ConnConfig.Tracer = &CustomTracer{}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	d := &Database{Pool: pool}
	if err := d.migrate(connString); err != nil {
		pool.Close()
		return nil, err
	}
	return d, nil
}

// migrate applies every migration in db/migrations that hasn't run
// yet, using the pack's migration library (golang-migrate) rather
// than the single embedded schema.sql a simpler store might Exec
// directly, since sievegate's schema grows across releases.
//
// golang-migrate's pgx driver operates on a database/sql handle, not
// on a pgxpool.Pool, so migration uses its own short-lived sql.DB
// opened through pgx's stdlib adapter and closed once the migrator
// is done with it.
func (d *Database) migrate(connString string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	sqlDB, err := sql.Open("pgx", connString)
	if err != nil {
		return fmt.Errorf("opening migration connection: %w", err)
	}
	defer sqlDB.Close()

	driver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("initializing migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "pgx", driver)
	if err != nil {
		return fmt.Errorf("initializing migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (d *Database) Close() {
	if d.Pool != nil {
		d.Pool.Close()
	}
}
