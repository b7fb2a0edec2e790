// internal/config/config.go
package config

import (
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Ingest    IngestConfig
	Session   SessionConfig
	Cache     CacheConfig
	Database  DatabaseConfig
	Storage   StorageConfig
	Drive     DriveConfig
	Analytics AnalyticsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
	// UploadRPS limits dataset loads per client IP; 0 disables the limit.
	UploadRPS   float64
	UploadBurst int
}

type LogConfig struct {
	Level  string
	Format string
}

// IngestConfig controls how uploaded files are decoded and validated.
type IngestConfig struct {
	SampleSize      int
	Encodings       []string
	DefaultEncoding string
	MaxFileSize     int64
	// AliasFile is an optional YAML file with extra header aliases.
	AliasFile string
}

type SessionConfig struct {
	TTLSeconds int
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

type DatabaseConfig struct {
	Enabled  bool
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// StorageConfig describes the optional S3-compatible archive bucket.
// An empty Driver disables archiving.
type StorageConfig struct {
	Driver    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
	Prefix    string
}

type DriveConfig struct {
	CredentialsJSON string
}

type AnalyticsConfig struct {
	TopN          int
	ReportTopN    int
	HistogramBins int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance = load(viper.New())
	})

	return instance
}

func load(v *viper.Viper) *Config {
	// Set default values
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER_UPLOAD_RPS", 2.0)
	v.SetDefault("SERVER_UPLOAD_BURST", 5)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("INGEST_SAMPLE_SIZE", 10000)
	v.SetDefault("INGEST_ENCODINGS", []string{"utf-8", "gbk", "gb2312", "latin1", "cp1252", "iso-8859-1"})
	v.SetDefault("INGEST_DEFAULT_ENCODING", "utf-8")
	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 200<<20)
	v.SetDefault("INGEST_ALIAS_FILE", "")
	v.SetDefault("SESSION_TTL_SECONDS", 3600)
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_KEY_PREFIX", "stalestock:dataset")
	v.SetDefault("DB_ENABLED", false)
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "stalestock")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("STORAGE_DRIVER", "")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("STORAGE_PREFIX", "stale-inventory")
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("ANALYTICS_TOP_N", 10)
	v.SetDefault("ANALYTICS_REPORT_TOP_N", 5)
	v.SetDefault("ANALYTICS_HISTOGRAM_BINS", 0)

	// Read from environment variables
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			UploadRPS:      v.GetFloat64("SERVER_UPLOAD_RPS"),
			UploadBurst:    v.GetInt("SERVER_UPLOAD_BURST"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Ingest: IngestConfig{
			SampleSize:      v.GetInt("INGEST_SAMPLE_SIZE"),
			Encodings:       splitList(v.GetStringSlice("INGEST_ENCODINGS")),
			DefaultEncoding: v.GetString("INGEST_DEFAULT_ENCODING"),
			MaxFileSize:     v.GetInt64("UPLOAD_MAX_FILE_SIZE"),
			AliasFile:       v.GetString("INGEST_ALIAS_FILE"),
		},
		Session: SessionConfig{
			TTLSeconds: v.GetInt("SESSION_TTL_SECONDS"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
			KeyPrefix:     v.GetString("CACHE_KEY_PREFIX"),
		},
		Database: DatabaseConfig{
			Enabled:  v.GetBool("DB_ENABLED"),
			Driver:   v.GetString("DB_DRIVER"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Storage: StorageConfig{
			Driver:    strings.ToLower(v.GetString("STORAGE_DRIVER")),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
			Prefix:    v.GetString("STORAGE_PREFIX"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
		},
		Analytics: AnalyticsConfig{
			TopN:          v.GetInt("ANALYTICS_TOP_N"),
			ReportTopN:    v.GetInt("ANALYTICS_REPORT_TOP_N"),
			HistogramBins: v.GetInt("ANALYTICS_HISTOGRAM_BINS"),
		},
	}
}

// splitList flattens comma-separated env values ("utf-8,gbk") into a list.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
