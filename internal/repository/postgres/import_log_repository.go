package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/andresuchdata/stalestock/internal/domain"
)

const (
	defaultRecentImports = 20
	maxRecentImports     = 500
)

const importLogTable = `
	CREATE TABLE IF NOT EXISTS stale_inventory_imports (
		id              TEXT PRIMARY KEY,
		dataset_id      TEXT NOT NULL DEFAULT '',
		file_name       TEXT NOT NULL,
		size_bytes      BIGINT NOT NULL DEFAULT 0,
		encoding        TEXT NOT NULL DEFAULT '',
		encoding_source TEXT NOT NULL DEFAULT '',
		row_count       INTEGER NOT NULL DEFAULT 0,
		status          TEXT NOT NULL,
		message         TEXT NOT NULL DEFAULT '',
		created_at      %s
	)`

const importLogIndex = `CREATE INDEX IF NOT EXISTS idx_stale_inventory_imports_created_at
		ON stale_inventory_imports (created_at DESC)`

// importLogSchema returns the DDL for the given database/sql driver.
func importLogSchema(driver string) []string {
	createdAt := "TIMESTAMPTZ NOT NULL DEFAULT NOW()"
	if driver == "sqlite3" {
		createdAt = "TIMESTAMP NOT NULL"
	}
	return []string{fmt.Sprintf(importLogTable, createdAt), importLogIndex}
}

type importLogRepository struct {
	db *DB
}

func NewImportLogRepository(db *DB) *importLogRepository {
	return &importLogRepository{db: db}
}

// EnsureSchema creates the import log table if it does not exist.
func (r *importLogRepository) EnsureSchema(ctx context.Context) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range importLogSchema(r.db.DriverName()) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create import log schema: %w", err)
			}
		}
		return nil
	})
}

func (r *importLogRepository) Record(ctx context.Context, entry *domain.ImportLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO stale_inventory_imports (
			id, dataset_id, file_name, size_bytes, encoding,
			encoding_source, row_count, status, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			entry.ID,
			entry.DatasetID,
			entry.FileName,
			entry.SizeBytes,
			entry.Encoding,
			entry.EncodingSource,
			entry.Rows,
			string(entry.Status),
			entry.Message,
			entry.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert import log: %w", err)
		}
		return nil
	})
}

func (r *importLogRepository) Recent(ctx context.Context, limit int) ([]domain.ImportLogEntry, error) {
	release, err := r.db.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	query := `
		SELECT id, dataset_id, file_name, size_bytes, encoding,
			encoding_source, row_count, status, message, created_at
		FROM stale_inventory_imports
		ORDER BY created_at DESC
		LIMIT $1
	`

	entries := []domain.ImportLogEntry{}
	if err := sqlx.SelectContext(ctx, r.db, &entries, query, clampLimit(limit)); err != nil {
		return nil, fmt.Errorf("failed to list import log: %w", err)
	}
	return entries, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultRecentImports
	case limit > maxRecentImports:
		return maxRecentImports
	}
	return limit
}
