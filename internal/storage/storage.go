package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/andresuchdata/stalestock/internal/config"
)

// ErrStorageDisabled is returned when no archive driver is configured.
var ErrStorageDisabled = errors.New("object storage is not configured")

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the archive and
// batch commands need.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// New picks the client for cfg.Driver. "sevalla" and "s3" go through the
// chartmuseum backend, "minio" through minio-go.
func New(cfg config.StorageConfig) (ObjectStorage, error) {
	conn := SevallaConfig{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Bucket:    cfg.Bucket,
		Region:    cfg.Region,
		UseSSL:    cfg.UseSSL,
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "":
		return nil, ErrStorageDisabled
	case "sevalla", "s3":
		return NewSevallaClient(conn)
	case "minio":
		return NewMinioClient(conn)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// ResolveObjectKey joins a configured prefix with a caller supplied key unless
// the key already carries the prefix.
func ResolveObjectKey(prefix, override string) string {
	if override == "" {
		return strings.TrimSpace(prefix)
	}
	if prefix == "" {
		return strings.TrimPrefix(override, "/")
	}

	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	overrideTrimmed := strings.TrimPrefix(strings.TrimSpace(override), "/")

	if strings.HasPrefix(overrideTrimmed, prefixTrimmed) {
		return overrideTrimmed
	}
	return fmt.Sprintf("%s/%s", prefixTrimmed, overrideTrimmed)
}

// ArchiveKey is where an export of a dataset lands: <prefix>/<dataset id>/<file>.
func ArchiveKey(prefix, datasetID, fileName string) string {
	return ResolveObjectKey(prefix, path.Join(datasetID, path.Base(fileName)))
}

// ObjectRelativePath strips prefix from key so downloads mirror the bucket layout.
func ObjectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return path.Base(key)
	}
	return rel
}
