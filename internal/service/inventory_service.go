package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stalestock/internal/analytics"
	"github.com/andresuchdata/stalestock/internal/cache"
	"github.com/andresuchdata/stalestock/internal/config"
	"github.com/andresuchdata/stalestock/internal/domain"
	"github.com/andresuchdata/stalestock/internal/drive"
	"github.com/andresuchdata/stalestock/internal/export"
	"github.com/andresuchdata/stalestock/internal/ingest"
	"github.com/andresuchdata/stalestock/internal/repository"
	"github.com/andresuchdata/stalestock/internal/storage"
)

// ErrFileTooLarge is returned for uploads above the configured size limit.
var ErrFileTooLarge = errors.New("file exceeds the upload size limit")

// DriveSource is the part of the Google Drive client the service needs.
type DriveSource interface {
	ListFiles(ctx context.Context, folderID string) ([]*drive.File, error)
	FindFolderByPath(ctx context.Context, path string) (string, error)
	Fetch(ctx context.Context, fileID string) (string, []byte, error)
}

// Options wires the optional collaborators. Nil values fall back to an
// in-memory store, a noop import log, and disabled archive and Drive sources.
type Options struct {
	Loader        *ingest.Loader
	Store         cache.DatasetStore
	Imports       repository.ImportLogRepository
	Archive       storage.ObjectStorage
	ArchivePrefix string
	Drive         DriveSource
	Analytics     config.AnalyticsConfig
	MaxFileSize   int64
}

type InventoryService struct {
	loader        *ingest.Loader
	store         cache.DatasetStore
	imports       repository.ImportLogRepository
	archive       storage.ObjectStorage
	archivePrefix string
	drive         DriveSource
	defaults      config.AnalyticsConfig
	maxFileSize   int64
	now           func() time.Time
}

func NewInventoryService(opts Options) *InventoryService {
	if opts.Loader == nil {
		opts.Loader = ingest.NewLoader(nil, nil)
	}
	if opts.Store == nil {
		opts.Store = cache.NewMemoryDatasetStore(0)
	}
	if opts.Imports == nil {
		opts.Imports = repository.NewNoopImportLogRepository()
	}
	if opts.Analytics.TopN <= 0 {
		opts.Analytics.TopN = analytics.DefaultTopN
	}
	if opts.Analytics.ReportTopN <= 0 {
		opts.Analytics.ReportTopN = analytics.DefaultReportTopN
	}

	return &InventoryService{
		loader:        opts.Loader,
		store:         opts.Store,
		imports:       opts.Imports,
		archive:       opts.Archive,
		archivePrefix: opts.ArchivePrefix,
		drive:         opts.Drive,
		defaults:      opts.Analytics,
		maxFileSize:   opts.MaxFileSize,
		now:           time.Now,
	}
}

// Upload loads an uploaded file into a new dataset and records the attempt.
func (s *InventoryService) Upload(ctx context.Context, file domain.UploadedFile) (*domain.DatasetMeta, error) {
	entry := &domain.ImportLogEntry{
		FileName:  file.Filename,
		SizeBytes: int64(len(file.Data)),
	}

	if s.maxFileSize > 0 && int64(len(file.Data)) > s.maxFileSize {
		err := fmt.Errorf("%w: %d bytes > %d bytes", ErrFileTooLarge, len(file.Data), s.maxFileSize)
		s.recordImport(ctx, entry, err)
		return nil, err
	}

	result, err := s.loader.Load(file.Data, ingest.LoadOptions{
		FileName: file.Filename,
		Encoding: file.Encoding,
	})
	if err != nil {
		s.recordImport(ctx, entry, err)
		return nil, err
	}

	ds := result.Dataset
	ds.ID = uuid.NewString()
	ds.LoadedAt = s.now().UTC()

	entry.DatasetID = ds.ID
	entry.Encoding = result.Encoding
	entry.EncodingSource = result.EncodingSource
	entry.Rows = len(ds.Records)

	if err := s.store.Save(ctx, ds); err != nil {
		s.recordImport(ctx, entry, err)
		return nil, fmt.Errorf("failed to store dataset: %w", err)
	}
	s.recordImport(ctx, entry, nil)

	meta := ds.Meta()
	meta.Warnings = result.Warnings
	return &meta, nil
}

// LoadFromDrive downloads a Drive file and loads it like an upload.
func (s *InventoryService) LoadFromDrive(ctx context.Context, fileID, encoding string) (*domain.DatasetMeta, error) {
	if s.drive == nil {
		return nil, drive.ErrDriveDisabled
	}

	name, data, err := s.drive.Fetch(ctx, fileID)
	if err != nil {
		return nil, err
	}

	return s.Upload(ctx, domain.UploadedFile{Filename: name, Data: data, Encoding: encoding})
}

// DriveFiles lists loadable files by folder ID, or by slash separated path when given.
func (s *InventoryService) DriveFiles(ctx context.Context, folderID, path string) ([]*drive.File, error) {
	if s.drive == nil {
		return nil, drive.ErrDriveDisabled
	}

	if path != "" {
		id, err := s.drive.FindFolderByPath(ctx, path)
		if err != nil {
			return nil, err
		}
		folderID = id
	}
	return s.drive.ListFiles(ctx, folderID)
}

func (s *InventoryService) recordImport(ctx context.Context, entry *domain.ImportLogEntry, loadErr error) {
	var missing *ingest.MissingColumnsError
	switch {
	case loadErr == nil:
		entry.Status = domain.ImportAccepted
		entry.Message = domain.ImportAccepted.Label()
	case errors.As(loadErr, &missing):
		entry.Status = domain.ImportRejected
		entry.Message = loadErr.Error()
	default:
		entry.Status = domain.ImportFailed
		entry.Message = loadErr.Error()
	}

	logEvent := log.Info()
	if loadErr != nil {
		logEvent = log.Warn().Err(loadErr)
	}
	logEvent.Str("file", entry.FileName).Str("status", string(entry.Status)).Int("rows", entry.Rows).Msg("import attempt")

	if err := s.imports.Record(ctx, entry); err != nil {
		log.Warn().Err(err).Str("file", entry.FileName).Msg("failed to record import log")
	}
}

func (s *InventoryService) Dataset(ctx context.Context, id string) (*domain.Dataset, error) {
	return s.store.Get(ctx, id)
}

func (s *InventoryService) Meta(ctx context.Context, id string) (*domain.DatasetMeta, error) {
	ds, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	meta := ds.Meta()
	return &meta, nil
}

// MaxFileSize is the upload limit in bytes; 0 means unlimited.
func (s *InventoryService) MaxFileSize() int64 { return s.maxFileSize }

func (s *InventoryService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Purge drops every session dataset.
func (s *InventoryService) Purge(ctx context.Context) (int, error) {
	n, err := s.store.Purge(ctx)
	if err != nil {
		return 0, err
	}
	log.Info().Int("datasets", n).Msg("dataset store purged")
	return n, nil
}

func (s *InventoryService) Options(ctx context.Context, id string) (*domain.DatasetOptions, error) {
	ds, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	opts := analytics.Options(ds)
	return &opts, nil
}

// view loads the dataset and applies the view filter.
func (s *InventoryService) view(ctx context.Context, id string, view domain.ViewConfig) (*domain.Dataset, []domain.Record, error) {
	ds, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return ds, analytics.ApplyFilter(ds.Records, view.Filter), nil
}

func (s *InventoryService) topN(view domain.ViewConfig) int {
	if view.TopN > 0 {
		return view.TopN
	}
	return s.defaults.TopN
}

func (s *InventoryService) bins(view domain.ViewConfig) int {
	if view.Bins > 0 {
		return view.Bins
	}
	return s.defaults.HistogramBins
}

func (s *InventoryService) Summary(ctx context.Context, id string, view domain.ViewConfig) (*domain.Summary, error) {
	_, records, err := s.view(ctx, id, view)
	if err != nil {
		return nil, err
	}
	summary := analytics.Summarize(records)
	return &summary, nil
}

func (s *InventoryService) Trend(ctx context.Context, id string, view domain.ViewConfig) ([]domain.GroupTotal, error) {
	ds, records, err := s.view(ctx, id, view)
	if err != nil {
		return nil, err
	}
	return analytics.Trend(records, view.GroupBy, ds.HasDate)
}

func (s *InventoryService) TopProducts(ctx context.Context, id string, view domain.ViewConfig) ([]domain.ProductRank, error) {
	_, records, err := s.view(ctx, id, view)
	if err != nil {
		return nil, err
	}
	return analytics.TopProducts(records, s.topN(view)), nil
}

func (s *InventoryService) StoreRanking(ctx context.Context, id string, view domain.ViewConfig) ([]domain.StoreRank, error) {
	_, records, err := s.view(ctx, id, view)
	if err != nil {
		return nil, err
	}
	return analytics.StoreRanking(records, s.topN(view)), nil
}

func (s *InventoryService) Distribution(ctx context.Context, id string, view domain.ViewConfig) ([]domain.HistogramBin, error) {
	_, records, err := s.view(ctx, id, view)
	if err != nil {
		return nil, err
	}
	return analytics.ChangeDistribution(records, s.bins(view)), nil
}

func (s *InventoryService) Rows(ctx context.Context, id string, view domain.ViewConfig) (*domain.TableView, error) {
	ds, records, err := s.view(ctx, id, view)
	if err != nil {
		return nil, err
	}
	table, err := analytics.Table(records, view.Columns, ds.AllColumns(), view.SortBy, view.Descending)
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// ExportCSV writes the filtered rows with every column and returns the download name.
func (s *InventoryService) ExportCSV(ctx context.Context, id string, view domain.ViewConfig, w io.Writer) (string, error) {
	ds, records, err := s.view(ctx, id, view)
	if err != nil {
		return "", err
	}
	if err := export.WriteCSV(w, ds.AllColumns(), records); err != nil {
		return "", err
	}
	return export.FileName(s.now(), "csv"), nil
}

func (s *InventoryService) ExportXLSX(ctx context.Context, id string, view domain.ViewConfig, w io.Writer) (string, error) {
	ds, records, err := s.view(ctx, id, view)
	if err != nil {
		return "", err
	}
	if err := export.WriteXLSX(w, ds.AllColumns(), records); err != nil {
		return "", err
	}
	return export.FileName(s.now(), "xlsx"), nil
}

// Report builds the text report; view.TopN overrides the report's product count.
func (s *InventoryService) Report(ctx context.Context, id string, view domain.ViewConfig) (string, error) {
	_, records, err := s.view(ctx, id, view)
	if err != nil {
		return "", err
	}
	n := view.TopN
	if n <= 0 {
		n = s.defaults.ReportTopN
	}
	return export.BuildReport(records, s.now(), n), nil
}

func (s *InventoryService) Chart(ctx context.Context, id, kind string, view domain.ViewConfig, w io.Writer) error {
	ds, records, err := s.view(ctx, id, view)
	if err != nil {
		return err
	}
	return export.RenderChart(w, kind, records, export.ChartOptions{
		GroupBy: view.GroupBy,
		HasDate: ds.HasDate,
		TopN:    s.topN(view),
		Bins:    s.bins(view),
	})
}

// Archive uploads the filtered CSV export and the text report to object storage.
func (s *InventoryService) Archive(ctx context.Context, id string, view domain.ViewConfig) (*domain.ArchiveResult, error) {
	if s.archive == nil {
		return nil, storage.ErrStorageDisabled
	}

	var csvBuf bytes.Buffer
	csvName, err := s.ExportCSV(ctx, id, view, &csvBuf)
	if err != nil {
		return nil, err
	}
	report, err := s.Report(ctx, id, view)
	if err != nil {
		return nil, err
	}

	objects := []struct {
		name string
		data []byte
	}{
		{csvName, csvBuf.Bytes()},
		{"report.txt", []byte(report)},
	}

	result := &domain.ArchiveResult{DatasetID: id, Keys: make([]string, 0, len(objects)), CreatedAt: s.now().UTC()}
	for _, obj := range objects {
		key := storage.ArchiveKey(s.archivePrefix, id, obj.name)
		if err := s.archive.UploadObject(ctx, key, obj.data); err != nil {
			return nil, err
		}
		result.Keys = append(result.Keys, key)
	}

	log.Info().Str("dataset_id", id).Strs("keys", result.Keys).Msg("dataset archived")
	return result, nil
}

func (s *InventoryService) RecentImports(ctx context.Context, limit int) ([]domain.ImportLogEntry, error) {
	return s.imports.Recent(ctx, limit)
}

// Instructions returns the upload guide with the encodings this service accepts.
func (s *InventoryService) Instructions() export.Guide {
	candidates := s.loader.Resolver().Candidates()
	names := make([]string, 0, len(candidates))
	for _, c := range candidates {
		names = append(names, c.Name)
	}
	return export.Instructions(names)
}
