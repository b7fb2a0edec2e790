// internal/repository/import_log_repository.go
package repository

import (
	"context"

	"github.com/andresuchdata/stalestock/internal/domain"
)

// ImportLogRepository records every load attempt.
type ImportLogRepository interface {
	Record(ctx context.Context, entry *domain.ImportLogEntry) error
	Recent(ctx context.Context, limit int) ([]domain.ImportLogEntry, error)
}

type noopImportLogRepository struct{}

// NewNoopImportLogRepository is used when no database is configured.
func NewNoopImportLogRepository() ImportLogRepository {
	return noopImportLogRepository{}
}

func (noopImportLogRepository) Record(ctx context.Context, entry *domain.ImportLogEntry) error {
	return nil
}

func (noopImportLogRepository) Recent(ctx context.Context, limit int) ([]domain.ImportLogEntry, error) {
	return []domain.ImportLogEntry{}, nil
}
