package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/edvin/backupvault/internal/crypto"
)

type Config struct {
	ServiceName       string
	DatabaseURL       string
	HTTPListenAddr    string
	MetricsListenAddr string
	LogLevel          string

	// EncryptionKey protects stored credentials and backup artifacts. When
	// EncryptionKeySalt is set the key is derived from it with PBKDF2.
	EncryptionKey     string
	EncryptionKeySalt string

	JWTSecret string
	JWTIssuer string

	// Dispatcher selects how backup jobs run: "pool" runs them in-process,
	// "temporal" hands them to the backupvault-worker.
	Dispatcher        string
	WorkerConcurrency int
	TemporalAddress   string
	TemporalTaskQueue string

	ExportTimeout     time.Duration
	ExportConcurrency int
	UploadTimeout     time.Duration

	NotionAPIURL string
	TrelloAPIURL string
	TrelloAPIKey string

	DropboxContentURL   string
	GoogleUploadURL     string
	GraphAPIURL         string
	BackblazeS3Endpoint string
	BackblazeRegion     string

	MollieAPIKey string
	MollieAPIURL string
}

// Load reads configuration from the environment. A .env file in the working
// directory, if present, is loaded first without overriding existing vars.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	concurrency, err := getEnvInt("WORKER_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	exportConcurrency, err := getEnvInt("EXPORT_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	exportTimeout, err := getEnvDuration("EXPORT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	uploadTimeout, err := getEnvDuration("UPLOAD_TIMEOUT", 2*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ServiceName:         getEnv("SERVICE_NAME", "backupvault"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		HTTPListenAddr:      getEnv("HTTP_LISTEN_ADDR", ":8080"),
		MetricsListenAddr:   getEnv("METRICS_LISTEN_ADDR", ":9090"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		EncryptionKey:       getEnv("ENCRYPTION_KEY", ""),
		EncryptionKeySalt:   getEnv("ENCRYPTION_KEY_SALT", ""),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		JWTIssuer:           getEnv("JWT_ISSUER", "backupvault"),
		Dispatcher:          getEnv("DISPATCHER", "pool"),
		WorkerConcurrency:   concurrency,
		TemporalAddress:     getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		TemporalTaskQueue:   getEnv("TEMPORAL_TASK_QUEUE", "backupvault-backups"),
		ExportTimeout:       exportTimeout,
		ExportConcurrency:   exportConcurrency,
		UploadTimeout:       uploadTimeout,
		NotionAPIURL:        getEnv("NOTION_API_URL", "https://api.notion.com/v1"),
		TrelloAPIURL:        getEnv("TRELLO_API_URL", "https://api.trello.com/1"),
		TrelloAPIKey:        getEnv("TRELLO_API_KEY", ""),
		DropboxContentURL:   getEnv("DROPBOX_CONTENT_URL", "https://content.dropboxapi.com/2"),
		GoogleUploadURL:     getEnv("GOOGLE_UPLOAD_URL", "https://www.googleapis.com/upload/drive/v3"),
		GraphAPIURL:         getEnv("GRAPH_API_URL", "https://graph.microsoft.com/v1.0"),
		BackblazeS3Endpoint: getEnv("BACKBLAZE_S3_ENDPOINT", ""),
		BackblazeRegion:     getEnv("BACKBLAZE_REGION", "us-west-004"),
		MollieAPIKey:        getEnv("MOLLIE_API_KEY", ""),
		MollieAPIURL:        getEnv("MOLLIE_API_URL", "https://api.mollie.com/v2"),
	}

	return cfg, nil
}

// Validate checks the fields a given binary needs: "api" or "worker".
func (c *Config) Validate(component string) error {
	var missing []string

	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.EncryptionKey == "" {
		missing = append(missing, "ENCRYPTION_KEY")
	}

	switch component {
	case "api":
		if c.HTTPListenAddr == "" {
			missing = append(missing, "HTTP_LISTEN_ADDR")
		}
		if c.JWTSecret == "" {
			missing = append(missing, "JWT_SECRET")
		}
		if c.Dispatcher == "temporal" && c.TemporalAddress == "" {
			missing = append(missing, "TEMPORAL_ADDRESS")
		}
	case "worker":
		if c.TemporalAddress == "" {
			missing = append(missing, "TEMPORAL_ADDRESS")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}

	if c.EncryptionKeySalt == "" && len(c.EncryptionKey) < crypto.KeyLength {
		return fmt.Errorf("ENCRYPTION_KEY must be at least %d bytes", crypto.KeyLength)
	}
	if component == "api" && len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.Dispatcher != "pool" && c.Dispatcher != "temporal" {
		return fmt.Errorf("DISPATCHER must be \"pool\" or \"temporal\", got %q", c.Dispatcher)
	}
	if c.WorkerConcurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive")
	}
	if c.ExportConcurrency < 1 {
		return fmt.Errorf("EXPORT_CONCURRENCY must be positive")
	}
	return nil
}

// Key returns the process-wide encryption key.
func (c *Config) Key() []byte {
	if c.EncryptionKeySalt != "" {
		return crypto.DeriveKey(c.EncryptionKey, c.EncryptionKeySalt)
	}
	return []byte(c.EncryptionKey)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
