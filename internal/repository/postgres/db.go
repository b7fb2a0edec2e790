package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/stalestock/internal/config"
)

type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

var (
	dbInstance *DB
	dbErr      error
	once       sync.Once
)

// NewDB creates a new database connection pool
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	once.Do(func() {
		dbInstance, dbErr = open(cfg)
	})

	return dbInstance, dbErr
}

func open(cfg *config.DatabaseConfig) (*DB, error) {
	driver := driverName(cfg.Driver)
	db, err := sqlx.Connect(driver, buildDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	if driver == "sqlite3" {
		// every sqlite connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}
	db.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		DB:  db,
		sem: semaphore.NewWeighted(10), // Limit to 10 concurrent operations
	}, nil
}

// driverName maps DB_DRIVER to a registered database/sql driver.
func driverName(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx":
		return "pgx"
	case "sqlite", "sqlite3":
		return "sqlite3"
	default:
		return "postgres"
	}
}

func buildDSN(cfg *config.DatabaseConfig) string {
	if driverName(cfg.Driver) == "sqlite3" {
		if cfg.DBName == "" {
			return ":memory:"
		}
		return cfg.DBName
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// acquire blocks until one of the limited database slots is free.
func (db *DB) acquire(ctx context.Context) (func(), error) {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("could not acquire semaphore: %w", err)
	}
	return func() { db.sem.Release(1) }, nil
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	release, err := db.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx.Tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}
