package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stalestock/internal/analytics"
	"github.com/andresuchdata/stalestock/internal/export"
	"github.com/andresuchdata/stalestock/internal/ingest"
)

// Worker turns one input file into an export CSV and a text report.
type Worker struct {
	loader *ingest.Loader
	config BatchConfig
	now    func() time.Time
}

func NewWorker(loader *ingest.Loader, config BatchConfig) *Worker {
	return &Worker{loader: loader, config: config, now: time.Now}
}

// Process handles a single file. Failures are recorded on the job rather than
// returned so one bad file never stops a batch.
func (w *Worker) Process(ctx context.Context, job *FileJob) {
	startTime := time.Now()
	job.Status = FileStatusProcessing

	if err := w.process(ctx, job); err != nil {
		job.Status = FileStatusFailed
		job.Err = err
		job.ErrorMessage = err.Error()
		log.Warn().Err(err).Str("file", job.Path).Msg("batch file failed")
	} else {
		job.Status = FileStatusCompleted
		log.Info().Str("file", job.Path).Int("rows", job.Rows).Dur("duration", time.Since(startTime)).Msg("batch file completed")
	}
	job.Duration = time.Since(startTime)
}

func (w *Worker) process(ctx context.Context, job *FileJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := os.ReadFile(job.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", job.Path, err)
	}

	result, err := w.loader.Load(data, ingest.LoadOptions{
		FileName: filepath.Base(job.Path),
		Encoding: w.config.Encoding,
	})
	if err != nil {
		return err
	}
	job.Encoding = result.Encoding
	job.EncodingSource = result.EncodingSource
	job.Warnings = result.Warnings

	ds := result.Dataset
	records := analytics.ApplyFilter(ds.Records, w.config.Filter)
	job.Rows = len(records)

	var csvBuf bytes.Buffer
	if err := export.WriteCSV(&csvBuf, ds.AllColumns(), records); err != nil {
		return err
	}

	base := job.outputBase
	if base == "" {
		base = fileStem(job.Path)
	}
	exportPath := filepath.Join(w.config.OutputDir, base+"_export.csv")
	if err := os.WriteFile(exportPath, csvBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", exportPath, err)
	}
	job.ExportPath = exportPath

	report := export.BuildReport(records, w.now(), w.config.ReportTopN)
	reportPath := filepath.Join(w.config.OutputDir, base+"_report.txt")
	if err := os.WriteFile(reportPath, []byte(report), 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", reportPath, err)
	}
	job.ReportPath = reportPath

	return nil
}

func fileStem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
