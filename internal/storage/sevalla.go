package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chartmuseum/storage"
	"github.com/rs/zerolog/log"
)

// SevallaConfig encapsulates the connection info for an S3-compatible bucket.
type SevallaConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// SevallaClient implements ObjectStorage for Sevalla / S3-compatible services.
type SevallaClient struct {
	backend storage.Backend
}

// NewSevallaClient builds a new SevallaClient backed by chartmuseum's Amazon storage backend.
func NewSevallaClient(cfg SevallaConfig) (*SevallaClient, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	endpoint := cfg.endpointURL()
	region := cfg.region()

	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	backend := storage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		"", // no prefix
		region,
		endpoint,
		"",
		&storage.AmazonS3Options{
			S3ForcePathStyle: awsBool(true),
		},
	)

	log.Info().Str("bucket", cfg.Bucket).Str("endpoint", endpoint).Msg("s3 archive storage ready")

	return &SevallaClient{
		backend: backend,
	}, nil
}

func (cfg SevallaConfig) validate() error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("storage endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return fmt.Errorf("storage credentials must be provided")
	}
	if cfg.Bucket == "" {
		return fmt.Errorf("storage bucket must be provided")
	}
	return nil
}

// endpointURL adds a scheme to bare host endpoints.
func (cfg SevallaConfig) endpointURL() string {
	endpoint := cfg.Endpoint
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	scheme := "https"
	if !cfg.UseSSL {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(endpoint, "//"))
}

func (cfg SevallaConfig) region() string {
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		return "us-east-1"
	}
	return region
}

// ListObjects lists all objects for a given prefix.
func (c *SevallaClient) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	files, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("s3 list failed: %w", err)
	}
	results := make([]ObjectInfo, 0)
	for _, object := range files {
		results = append(results, ObjectInfo{
			Key:  object.Path,
			Size: int64(len(object.Content)),
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (c *SevallaClient) DownloadObject(ctx context.Context, key, destPath string) error {
	object, err := c.backend.GetObject(key)
	if err != nil {
		return fmt.Errorf("s3 get %s failed: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, object.Content, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

// UploadObject writes data under key, replacing any existing object.
func (c *SevallaClient) UploadObject(ctx context.Context, key string, data []byte) error {
	if err := c.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("s3 put %s failed: %w", key, err)
	}
	return nil
}

var _ ObjectStorage = (*SevallaClient)(nil)

func awsBool(v bool) *bool {
	return &v
}
