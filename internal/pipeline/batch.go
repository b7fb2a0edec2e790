package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/stalestock/internal/ingest"
)

// Batch runs the load, export and report steps over many files with a bounded
// number of concurrent workers.
type Batch struct {
	cfg    BatchConfig
	worker *Worker
}

func NewBatch(loader *ingest.Loader, cfg BatchConfig) *Batch {
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.ReportTopN <= 0 {
		cfg.ReportTopN = DefaultBatchConfig().ReportTopN
	}
	if loader == nil {
		loader = ingest.NewLoader(nil, nil)
	}
	return &Batch{cfg: cfg, worker: NewWorker(loader, cfg)}
}

// Run processes files and returns one job per file in input order. The error
// is non-nil only when the run itself could not proceed (output directory,
// cancellation); per-file failures live on the jobs.
func (b *Batch) Run(ctx context.Context, files []string) (*BatchResult, error) {
	result := &BatchResult{StartedAt: time.Now()}
	if len(files) == 0 {
		result.CompletedAt = result.StartedAt
		return result, nil
	}

	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	log.Info().Int("files", len(files)).Int("workers", b.cfg.WorkerCount).Msg("starting batch")

	bases := outputBases(files)
	result.Jobs = make([]*FileJob, len(files))
	for i, file := range files {
		result.Jobs[i] = &FileJob{Path: file, Status: FileStatusQueued, outputBase: bases[i]}
	}

	sem := semaphore.NewWeighted(int64(b.cfg.WorkerCount))
	g, gctx := errgroup.WithContext(ctx)

	for _, job := range result.Jobs {
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			b.worker.Process(gctx, job)
			return nil
		})
	}
	_ = g.Wait()

	result.CompletedAt = time.Now()
	if err := ctx.Err(); err != nil {
		return result, err
	}

	log.Info().
		Int("succeeded", result.Succeeded()).
		Int("failed", result.Failed()).
		Dur("duration", result.CompletedAt.Sub(result.StartedAt)).
		Msg("batch completed")

	return result, nil
}

// outputBases names the outputs of each file after its stem. A stem already
// taken earlier in the run (stock.csv then stock.xlsx) gets the extension
// appended, then a counter, so no two jobs write the same file.
func outputBases(files []string) []string {
	taken := make(map[string]bool, len(files))
	bases := make([]string, len(files))
	for i, file := range files {
		base := fileStem(file)
		if taken[strings.ToLower(base)] {
			if ext := strings.TrimPrefix(filepath.Ext(file), "."); ext != "" {
				base = base + "_" + ext
			}
			candidate := base
			for n := 2; taken[strings.ToLower(candidate)]; n++ {
				candidate = fmt.Sprintf("%s_%d", base, n)
			}
			base = candidate
		}
		taken[strings.ToLower(base)] = true
		bases[i] = base
	}
	return bases
}

// CollectFiles lists the CSV and XLSX files directly under dir, sorted by name.
// Files produced by an earlier batch run are skipped.
func CollectFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".csv", ".xlsx":
		default:
			continue
		}
		if strings.HasSuffix(name, "_export.csv") {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}

	sort.Strings(files)
	return files, nil
}
