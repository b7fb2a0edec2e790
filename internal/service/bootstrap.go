package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stalestock/internal/cache"
	"github.com/andresuchdata/stalestock/internal/config"
	"github.com/andresuchdata/stalestock/internal/drive"
	"github.com/andresuchdata/stalestock/internal/ingest"
	"github.com/andresuchdata/stalestock/internal/repository"
	"github.com/andresuchdata/stalestock/internal/repository/postgres"
	"github.com/andresuchdata/stalestock/internal/storage"
)

// NewLoader builds the dataset loader from the ingest settings.
func NewLoader(cfg config.IngestConfig) (*ingest.Loader, error) {
	resolver, err := ingest.NewResolver(cfg.Encodings, cfg.DefaultEncoding, cfg.SampleSize)
	if err != nil {
		return nil, fmt.Errorf("invalid ingest encodings: %w", err)
	}

	var aliases ingest.AliasTable
	if cfg.AliasFile != "" {
		aliases, err = ingest.LoadAliasFile(cfg.AliasFile)
		if err != nil {
			return nil, err
		}
	}
	return ingest.NewLoader(resolver, aliases), nil
}

// NewFromConfig wires the service and its optional integrations. The returned
// cleanup releases the database connection when one was opened.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*InventoryService, func(), error) {
	cleanup := func() {}

	loader, err := NewLoader(cfg.Ingest)
	if err != nil {
		return nil, cleanup, err
	}

	store, err := cache.NewDatasetStore(cfg.Cache, time.Duration(cfg.Session.TTLSeconds)*time.Second)
	if err != nil {
		return nil, cleanup, err
	}

	imports := repository.NewNoopImportLogRepository()
	if cfg.Database.Enabled {
		db, err := postgres.NewDB(&cfg.Database)
		if err != nil {
			return nil, cleanup, err
		}
		cleanup = func() {
			if err := db.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close database")
			}
		}

		repo := postgres.NewImportLogRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			cleanup()
			return nil, func() {}, err
		}
		imports = repo
	}

	archive, err := storage.New(cfg.Storage)
	switch {
	case errors.Is(err, storage.ErrStorageDisabled):
		archive = nil
	case err != nil:
		cleanup()
		return nil, func() {}, err
	}

	var source DriveSource
	driveService, err := drive.NewService(ctx, cfg.Drive.CredentialsJSON)
	switch {
	case errors.Is(err, drive.ErrDriveDisabled):
	case err != nil:
		cleanup()
		return nil, func() {}, err
	default:
		source = driveService
	}

	log.Info().
		Bool("redis", cfg.Cache.Enabled).
		Bool("import_log", cfg.Database.Enabled).
		Bool("archive", archive != nil).
		Bool("drive", source != nil).
		Msg("inventory service configured")

	svc := NewInventoryService(Options{
		Loader:        loader,
		Store:         store,
		Imports:       imports,
		Archive:       archive,
		ArchivePrefix: cfg.Storage.Prefix,
		Drive:         source,
		Analytics:     cfg.Analytics,
		MaxFileSize:   cfg.Ingest.MaxFileSize,
	})
	return svc, cleanup, nil
}
