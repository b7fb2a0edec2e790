package drive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DownloadOptions controls how files are pulled from Google Drive.
type DownloadOptions struct {
	FolderID    string
	DownloadDir string
}

// Downloader wraps Service to download files from a specific folder.
type Downloader struct {
	service *Service
}

func NewDownloader(s *Service) *Downloader {
	return &Downloader{service: s}
}

// DownloadFolder saves every CSV, XLSX and Google Sheet of a folder into
// DownloadDir and returns the local paths for batch processing.
func (d *Downloader) DownloadFolder(ctx context.Context, opts DownloadOptions) ([]string, error) {
	if opts.DownloadDir == "" {
		return nil, fmt.Errorf("download dir is required")
	}
	if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download dir: %w", err)
	}

	files, err := d.service.ListFiles(ctx, opts.FolderID)
	if err != nil {
		return nil, err
	}

	localPaths := make([]string, 0, len(files))
	taken := make(map[string]bool, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		localPath := filepath.Join(opts.DownloadDir, uniqueName(filepath.Base(f.LocalName()), taken))
		out, err := os.Create(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create local file %s: %w", localPath, err)
		}
		err = d.service.DownloadFile(ctx, f, out)
		closeErr := out.Close()
		if err != nil {
			return nil, err
		}
		if closeErr != nil {
			return nil, fmt.Errorf("failed to write %s: %w", localPath, closeErr)
		}
		localPaths = append(localPaths, localPath)
	}

	return localPaths, nil
}

// uniqueName returns name, or name with a " (n)" suffix before the extension
// when an earlier file of the same folder already took it. Drive allows
// several files with one name.
func uniqueName(name string, taken map[string]bool) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for n := 2; taken[strings.ToLower(candidate)]; n++ {
		candidate = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	taken[strings.ToLower(candidate)] = true
	return candidate
}
