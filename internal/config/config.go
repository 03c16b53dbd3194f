// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGCS = "gcs"
	ProviderS3  = "s3"

	DefaultTokenScope  = "https://www.googleapis.com/auth/devstorage.read_write"
	DefaultGCSEndpoint = "https://storage.googleapis.com"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Cache       CacheConfig
	Log         LogConfig
	Sync        SyncConfig
	Auth        AuthConfig
	Drive       DriveConfig
	Destination DestinationConfig

	// problems found while reading, reported by Validate
	loadErrs []error
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
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

type LogConfig struct {
	Level  string
	Format string
}

// SyncConfig drives a single sweep of the source folder.
type SyncConfig struct {
	SourceFolderID  string
	ArchiveFolderID string
	MaxFilesPerRun  int
	RetryCount      int
	RetryDelay      time.Duration
	Interval        time.Duration
	KeyTimezone     string
	KeyLocation     *time.Location
	LedgerEnabled   bool
}

// AuthConfig holds the optional service-account key material. When
// ServiceAccountKey is empty the process falls back to ambient credentials.
type AuthConfig struct {
	ServiceAccountKey string
	KeyFile           string
	Scope             string
}

type DriveConfig struct {
	CredentialsJSON string
	Endpoint        string
}

type DestinationConfig struct {
	Provider    string
	ProjectID   string
	GCSBucket   string
	GCSEndpoint string
	HTTPTimeout time.Duration
	S3          S3Config
}

// S3Config encapsulates the connection info for S3-compatible storage.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// ConfigurationError reports a missing or invalid setting. It is fatal and
// raised before any I/O happens.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is not configured", e.Key)
	}
	return fmt.Sprintf("%s is invalid: %s", e.Key, e.Reason)
}

var (
	once     sync.Once
	instance *Config
)

// Load reads .env and the process environment once and returns the shared config.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.GetViper()
		SetDefaults(v)
		v.AutomaticEnv()

		instance = FromViper(v)
	})

	return instance
}

// SetDefaults registers every key with its default so AutomaticEnv can see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "release")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 300)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})

	v.SetDefault("DB_DRIVER", "pgx")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "docsync")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_KEY_PREFIX", "docsync")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("DRIVE_FOLDER_ID", "")
	v.SetDefault("ARCHIVE_FOLDER_ID", "")
	v.SetDefault("MAX_FILES_PER_RUN", 50)
	v.SetDefault("RETRY_COUNT", 3)
	v.SetDefault("RETRY_DELAY_MS", 1000)
	v.SetDefault("SYNC_INTERVAL", time.Hour)
	v.SetDefault("OBJECT_KEY_TIMEZONE", "UTC")
	v.SetDefault("LEDGER_ENABLED", false)

	v.SetDefault("GCS_SERVICE_ACCOUNT_KEY", "")
	v.SetDefault("GCS_SERVICE_ACCOUNT_KEY_FILE", "")
	v.SetDefault("GCS_TOKEN_SCOPE", DefaultTokenScope)

	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("DRIVE_ENDPOINT", "")

	v.SetDefault("DESTINATION_PROVIDER", ProviderGCS)
	v.SetDefault("GCP_PROJECT_ID", "")
	v.SetDefault("GCS_BUCKET_NAME", "")
	v.SetDefault("GCS_ENDPOINT", DefaultGCSEndpoint)
	v.SetDefault("HTTP_TIMEOUT", 60*time.Second)
	v.SetDefault("S3_ENDPOINT", "")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)
}

// FromViper builds a Config from v. Problems found while reading (an
// unreadable key file, an unknown time zone) are kept so Validate can
// report them together with missing settings.
func FromViper(v *viper.Viper) *Config {
	var errs []error

	keyJSON := strings.TrimSpace(v.GetString("GCS_SERVICE_ACCOUNT_KEY"))
	keyFile := v.GetString("GCS_SERVICE_ACCOUNT_KEY_FILE")
	if keyJSON == "" && keyFile != "" {
		raw, err := os.ReadFile(keyFile)
		if err != nil {
			errs = append(errs, &ConfigurationError{Key: "GCS_SERVICE_ACCOUNT_KEY_FILE", Reason: err.Error()})
		} else {
			keyJSON = strings.TrimSpace(string(raw))
		}
	}

	tz := v.GetString("OBJECT_KEY_TIMEZONE")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		errs = append(errs, &ConfigurationError{Key: "OBJECT_KEY_TIMEZONE", Reason: err.Error()})
		loc = nil
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Driver:   v.GetString("DB_DRIVER"),
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
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
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Sync: SyncConfig{
			SourceFolderID:  v.GetString("DRIVE_FOLDER_ID"),
			ArchiveFolderID: v.GetString("ARCHIVE_FOLDER_ID"),
			MaxFilesPerRun:  v.GetInt("MAX_FILES_PER_RUN"),
			RetryCount:      v.GetInt("RETRY_COUNT"),
			RetryDelay:      time.Duration(v.GetInt("RETRY_DELAY_MS")) * time.Millisecond,
			Interval:        v.GetDuration("SYNC_INTERVAL"),
			KeyTimezone:     tz,
			KeyLocation:     loc,
			LedgerEnabled:   v.GetBool("LEDGER_ENABLED"),
		},
		Auth: AuthConfig{
			ServiceAccountKey: keyJSON,
			KeyFile:           keyFile,
			Scope:             v.GetString("GCS_TOKEN_SCOPE"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			Endpoint:        v.GetString("DRIVE_ENDPOINT"),
		},
		Destination: DestinationConfig{
			Provider:    strings.ToLower(v.GetString("DESTINATION_PROVIDER")),
			ProjectID:   v.GetString("GCP_PROJECT_ID"),
			GCSBucket:   v.GetString("GCS_BUCKET_NAME"),
			GCSEndpoint: strings.TrimSuffix(v.GetString("GCS_ENDPOINT"), "/"),
			HTTPTimeout: v.GetDuration("HTTP_TIMEOUT"),
			S3: S3Config{
				Endpoint:  v.GetString("S3_ENDPOINT"),
				AccessKey: v.GetString("S3_ACCESS_KEY"),
				SecretKey: v.GetString("S3_SECRET_KEY"),
				Bucket:    v.GetString("S3_BUCKET"),
				Region:    v.GetString("S3_REGION"),
				UseSSL:    v.GetBool("S3_USE_SSL"),
			},
		},
		loadErrs: errs,
	}

	return cfg
}

// Validate checks every required setting and returns all problems at once.
func (c *Config) Validate() error {
	var result *multierror.Error
	for _, err := range c.loadErrs {
		result = multierror.Append(result, err)
	}

	required := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			result = multierror.Append(result, &ConfigurationError{Key: key})
		}
	}

	required("DRIVE_FOLDER_ID", c.Sync.SourceFolderID)
	required("GCP_PROJECT_ID", c.Destination.ProjectID)

	switch c.Destination.Provider {
	case ProviderGCS:
		required("GCS_BUCKET_NAME", c.Destination.GCSBucket)
		required("GCS_ENDPOINT", c.Destination.GCSEndpoint)
	case ProviderS3:
		required("S3_ENDPOINT", c.Destination.S3.Endpoint)
		required("S3_BUCKET", c.Destination.S3.Bucket)
		required("S3_ACCESS_KEY", c.Destination.S3.AccessKey)
		required("S3_SECRET_KEY", c.Destination.S3.SecretKey)
	default:
		result = multierror.Append(result, &ConfigurationError{
			Key:    "DESTINATION_PROVIDER",
			Reason: fmt.Sprintf("unsupported provider %q", c.Destination.Provider),
		})
	}

	if c.Sync.MaxFilesPerRun <= 0 {
		result = multierror.Append(result, &ConfigurationError{Key: "MAX_FILES_PER_RUN", Reason: "must be positive"})
	}
	if c.Sync.RetryCount <= 0 {
		result = multierror.Append(result, &ConfigurationError{Key: "RETRY_COUNT", Reason: "must be positive"})
	}
	if c.Sync.RetryDelay < 0 {
		result = multierror.Append(result, &ConfigurationError{Key: "RETRY_DELAY_MS", Reason: "must not be negative"})
	}
	if c.Sync.Interval <= 0 {
		result = multierror.Append(result, &ConfigurationError{Key: "SYNC_INTERVAL", Reason: "must be positive"})
	}

	return result.ErrorOrNil()
}

// HasServiceAccountKey reports whether key material was configured, which
// selects the self-minted credential mode over ambient credentials.
func (c *Config) HasServiceAccountKey() bool {
	return c.Auth.ServiceAccountKey != ""
}

// Public is the non-secret view of the configuration served to operators.
type Public struct {
	SourceFolderID  string `json:"source_folder_id"`
	ArchiveFolderID string `json:"archive_folder_id"`
	Provider        string `json:"destination_provider"`
	Bucket          string `json:"bucket"`
	ProjectID       string `json:"project_id"`
	MaxFilesPerRun  int    `json:"max_files_per_run"`
	RetryCount      int    `json:"retry_count"`
	RetryDelayMS    int64  `json:"retry_delay_ms"`
	SyncInterval    string `json:"sync_interval"`
	KeyTimezone     string `json:"object_key_timezone"`
	LedgerEnabled   bool   `json:"ledger_enabled"`
	CacheEnabled    bool   `json:"cache_enabled"`
}

func (c *Config) Public() Public {
	bucket := c.Destination.GCSBucket
	if c.Destination.Provider == ProviderS3 {
		bucket = c.Destination.S3.Bucket
	}
	return Public{
		SourceFolderID:  c.Sync.SourceFolderID,
		ArchiveFolderID: c.Sync.ArchiveFolderID,
		Provider:        c.Destination.Provider,
		Bucket:          bucket,
		ProjectID:       c.Destination.ProjectID,
		MaxFilesPerRun:  c.Sync.MaxFilesPerRun,
		RetryCount:      c.Sync.RetryCount,
		RetryDelayMS:    c.Sync.RetryDelay.Milliseconds(),
		SyncInterval:    c.Sync.Interval.String(),
		KeyTimezone:     c.Sync.KeyTimezone,
		LedgerEnabled:   c.Sync.LedgerEnabled,
		CacheEnabled:    c.Cache.Enabled,
	}
}
