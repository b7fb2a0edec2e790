package pipeline

import (
	"time"

	"github.com/andresuchdata/stalestock/internal/domain"
)

// FileStatus represents the processing state of one batch file.
type FileStatus string

const (
	FileStatusQueued     FileStatus = "queued"
	FileStatusProcessing FileStatus = "processing"
	FileStatusCompleted  FileStatus = "completed"
	FileStatusFailed     FileStatus = "failed"
)

// BatchConfig holds configuration for a batch run.
type BatchConfig struct {
	WorkerCount int
	OutputDir   string
	// Encoding is applied to every file; empty means detect per file.
	Encoding   string
	Filter     domain.Filter
	ReportTopN int
}

// DefaultBatchConfig returns sensible defaults.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		WorkerCount: 4,
		OutputDir:   ".",
		ReportTopN:  5,
	}
}

// FileJob is the outcome of processing one input file.
type FileJob struct {
	Path           string        `json:"path"`
	Status         FileStatus    `json:"status"`
	Rows           int           `json:"rows"`
	Encoding       string        `json:"encoding,omitempty"`
	EncodingSource string        `json:"encoding_source,omitempty"`
	ExportPath     string        `json:"export_path,omitempty"`
	ReportPath     string        `json:"report_path,omitempty"`
	Warnings       []string      `json:"warnings,omitempty"`
	ErrorMessage   string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
	Err            error         `json:"-"`

	// outputBase prefixes the export and report names; unique within a run.
	outputBase string
}

// BatchResult collects the per-file jobs of a run in input order.
type BatchResult struct {
	Jobs        []*FileJob `json:"jobs"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
}

func (r *BatchResult) Succeeded() int { return r.count(FileStatusCompleted) }

func (r *BatchResult) Failed() int { return r.count(FileStatusFailed) }

func (r *BatchResult) count(status FileStatus) int {
	n := 0
	for _, job := range r.Jobs {
		if job.Status == status {
			n++
		}
	}
	return n
}
