package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dgallion1/pdfrag/internal/store"
)

// Keys double as cobra flag names. Environment variables are the upper-case
// form with dashes turned into underscores (chunk-size -> CHUNK_SIZE).
const (
	KeyPort                 = "port"
	KeyAPIKey               = "pdfrag-api-key"
	KeyLogLevel             = "log-level"
	KeyLogFormat            = "log-format"
	KeyWorkerCount          = "worker-count"
	KeyMaxQueueSize         = "max-queue-size"
	KeyMaxConcurrentStore   = "max-concurrent-store"
	KeyMaxUploadBytes       = "max-upload-bytes"
	KeyChunkSize            = "chunk-size"
	KeyChunkOverlap         = "chunk-overlap"
	KeyMaxHeadingLevels     = "max-heading-levels"
	KeyDropPreamble         = "drop-preamble"
	KeyJobTTL               = "job-ttl"
	KeyPDFFallbackPdftotext = "pdf-fallback-pdftotext"
	KeyMarkdownMinRatio     = "markdown-min-ratio"
	KeyStoreBackend         = "store-backend"
	KeyMongoURI             = "mongo-uri"
	KeyMongoDatabase        = "mongo-database"
	KeyMongoCollection      = "mongo-collection"
	KeyPostgresDSN          = "postgres-dsn"
	KeyPathstoreURL         = "pathstore-url"
	KeyPathstoreAPIKey      = "pathstore-api-key"
	KeyPathstorePrefix      = "pathstore-prefix"
)

// EnvConfigFile names an optional YAML/JSON/TOML config file.
const EnvConfigFile = "PDFRAG_CONFIG"

type Config struct {
	Port string

	// Auth
	APIKey string

	// Logging
	LogLevel  string
	LogFormat string

	// Worker pool
	WorkerCount        int
	MaxQueueSize       int
	MaxConcurrentStore int

	// Upload limits
	MaxUploadBytes int64

	// Structure and chunking defaults
	ChunkSize        int
	ChunkOverlap     int
	MaxHeadingLevels int
	DropPreamble     bool

	// Job state
	JobTTL time.Duration

	// Extraction
	PDFFallbackPdftotext bool
	MarkdownMinRatio     float64

	// Persistence
	StoreBackend    string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	PostgresDSN     string
	PathstoreURL    string
	PathstoreAPIKey string
	PathstorePrefix string
}

// SetDefaults registers every key's default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8090")
	v.SetDefault(KeyAPIKey, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
	v.SetDefault(KeyWorkerCount, 4)
	v.SetDefault(KeyMaxQueueSize, 100)
	v.SetDefault(KeyMaxConcurrentStore, 10)
	v.SetDefault(KeyMaxUploadBytes, int64(52428800)) // 50MB
	v.SetDefault(KeyChunkSize, 1000)
	v.SetDefault(KeyChunkOverlap, 200)
	v.SetDefault(KeyMaxHeadingLevels, 2)
	v.SetDefault(KeyDropPreamble, false)
	v.SetDefault(KeyJobTTL, time.Hour)
	v.SetDefault(KeyPDFFallbackPdftotext, true)
	v.SetDefault(KeyMarkdownMinRatio, 0.3)
	v.SetDefault(KeyStoreBackend, "memory")
	v.SetDefault(KeyMongoURI, "")
	v.SetDefault(KeyMongoDatabase, "pdfrag")
	v.SetDefault(KeyMongoCollection, "documents")
	v.SetDefault(KeyPostgresDSN, "")
	v.SetDefault(KeyPathstoreURL, "http://localhost:8080")
	v.SetDefault(KeyPathstoreAPIKey, "")
	v.SetDefault(KeyPathstorePrefix, "pdfrag")
}

// Load reads configuration from the global viper instance.
func Load() (Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom applies defaults, environment variables and the optional config
// file to v, then reads the result. Flags bound on v before the call win.
func LoadFrom(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	return Read(v)
}

// Read is LoadFrom without applying defaults, for callers that adjust them
// after SetDefaults.
func Read(v *viper.Viper) (Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	file := v.ConfigFileUsed()
	if file == "" {
		file = os.Getenv(EnvConfigFile)
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:      v.GetString(KeyPort),
		APIKey:    v.GetString(KeyAPIKey),
		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),

		WorkerCount:        v.GetInt(KeyWorkerCount),
		MaxQueueSize:       v.GetInt(KeyMaxQueueSize),
		MaxConcurrentStore: v.GetInt(KeyMaxConcurrentStore),
		MaxUploadBytes:     v.GetInt64(KeyMaxUploadBytes),

		ChunkSize:        v.GetInt(KeyChunkSize),
		ChunkOverlap:     v.GetInt(KeyChunkOverlap),
		MaxHeadingLevels: v.GetInt(KeyMaxHeadingLevels),
		DropPreamble:     v.GetBool(KeyDropPreamble),

		JobTTL: v.GetDuration(KeyJobTTL),

		PDFFallbackPdftotext: v.GetBool(KeyPDFFallbackPdftotext),
		MarkdownMinRatio:     v.GetFloat64(KeyMarkdownMinRatio),

		StoreBackend:    strings.ToLower(v.GetString(KeyStoreBackend)),
		MongoURI:        v.GetString(KeyMongoURI),
		MongoDatabase:   v.GetString(KeyMongoDatabase),
		MongoCollection: v.GetString(KeyMongoCollection),
		PostgresDSN:     v.GetString(KeyPostgresDSN),
		PathstoreURL:    v.GetString(KeyPathstoreURL),
		PathstoreAPIKey: v.GetString(KeyPathstoreAPIKey),
		PathstorePrefix: v.GetString(KeyPathstorePrefix),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentStore <= 0 {
		cfg.MaxConcurrentStore = 10
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = time.Hour
	}
	return cfg, nil
}

// Validate checks settings every binary depends on.
func (c Config) Validate() error {
	var errs []error
	if c.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("CHUNK_SIZE must be positive, got %d", c.ChunkSize))
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		errs = append(errs, fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_SIZE), got %d", c.ChunkOverlap))
	}
	if c.MaxHeadingLevels < 1 {
		errs = append(errs, fmt.Errorf("MAX_HEADING_LEVELS must be at least 1, got %d", c.MaxHeadingLevels))
	}
	if c.MarkdownMinRatio < 0 || c.MarkdownMinRatio > 1 {
		errs = append(errs, fmt.Errorf("MARKDOWN_MIN_RATIO must be within [0, 1], got %g", c.MarkdownMinRatio))
	}

	switch c.StoreBackend {
	case "memory":
	case "mongo":
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo backend"))
		}
	case "postgres":
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("POSTGRES_DSN is required for the postgres backend"))
		}
	case "pathstore":
		if c.PathstoreURL == "" {
			errs = append(errs, errors.New("PATHSTORE_URL is required for the pathstore backend"))
		}
		if c.PathstoreAPIKey == "" {
			errs = append(errs, errors.New("PATHSTORE_API_KEY is required for the pathstore backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend))
	}
	return errors.Join(errs...)
}

// ValidateServer adds the checks only the HTTP server needs.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return errors.New("PDFRAG_API_KEY is required")
	}
	return nil
}

// StoreSettings maps the persistence settings onto store.Settings.
func (c Config) StoreSettings() store.Settings {
	return store.Settings{
		Backend:         c.StoreBackend,
		MongoURI:        c.MongoURI,
		MongoDatabase:   c.MongoDatabase,
		MongoCollection: c.MongoCollection,
		PostgresDSN:     c.PostgresDSN,
		PathstoreURL:    c.PathstoreURL,
		PathstoreAPIKey: c.PathstoreAPIKey,
		PathstorePrefix: c.PathstorePrefix,

		WriteConcurrency: c.MaxConcurrentStore,
	}
}

// NewLogger builds a JSON production logger, or a console development
// logger when format is "console".
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	var zc zap.Config
	if format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

// Logger builds the logger described by LogLevel and LogFormat.
func (c Config) Logger() (*zap.Logger, error) {
	return NewLogger(c.LogLevel, c.LogFormat)
}
