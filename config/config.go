package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"locrepos/models"
	"locrepos/table"
)

// Configuration keys. Cobra flags are bound onto the same keys.
const (
	KeyGitHubToken     = "GITHUB_ACCESS_TOKEN"
	KeyAPIURL          = "GITHUB_API_URL"
	KeyLocations       = "LOCATIONS"
	KeyMaxUsers        = "MAX_USERS_PER_LOCATION"
	KeyMaxRepos        = "MAX_REPOS_PER_USER"
	KeyRequestTimeout  = "REQUEST_TIMEOUT"
	KeyPreviewRows     = "PREVIEW_ROWS"
	KeyLogLevel        = "LOG_LEVEL"
	KeyInterval        = "COLLECT_INTERVAL"
	KeyStoreEnabled    = "STORE_ENABLED"
	KeyPostgresHost    = "POSTGRES_HOST"
	KeyPostgresPort    = "POSTGRES_PORT"
	KeyPostgresUser    = "POSTGRES_USER"
	KeyPostgresPass    = "POSTGRES_PASSWORD"
	KeyPostgresDB      = "POSTGRES_DB"
	KeyMaxOpenConns    = "DB_MAX_OPEN_CONNS"
	KeyMaxIdleConns    = "DB_MAX_IDLE_CONNS"
	KeyConnMaxLifetime = "DB_CONN_MAX_LIFETIME"
)

var (
	ErrNoLocations   = errors.New("at least one location is required")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config holds all configuration for the application
type Config struct {
	GitHubToken    string
	APIBaseURL     string
	Locations      []string
	Quota          models.Quota
	RequestTimeout time.Duration
	PreviewRows    int
	LogLevel       string
	Interval       time.Duration
	Store          StoreConfig
}

// StoreConfig describes the optional Postgres snapshot store.
type StoreConfig struct {
	Enabled         bool
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string.
func (s StoreConfig) DSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s port=%s host=%s sslmode=disable",
		s.User, s.Password, s.Database, s.Port, s.Host,
	)
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAPIURL, "https://api.github.com")
	v.SetDefault(KeyLocations, "Milan,Turin")
	v.SetDefault(KeyMaxUsers, 50)
	v.SetDefault(KeyMaxRepos, 10)
	v.SetDefault(KeyRequestTimeout, "30s")
	v.SetDefault(KeyPreviewRows, table.DefaultHeadRows)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyInterval, "0s")
	v.SetDefault(KeyStoreEnabled, false)
	v.SetDefault(KeyPostgresHost, "localhost")
	v.SetDefault(KeyPostgresPort, "5432")
	v.SetDefault(KeyMaxOpenConns, 25)
	v.SetDefault(KeyMaxIdleConns, 25)
	v.SetDefault(KeyConnMaxLifetime, "5m")
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", f, err)
		}
	}
	return nil
}

// Load populates c from v. Environment variables are read through
// AutomaticEnv; explicit values set or bound on v take precedence.
func (c *Config) Load(v *viper.Viper) error {
	SetDefaults(v)
	v.AutomaticEnv()

	c.GitHubToken = v.GetString(KeyGitHubToken)

	c.APIBaseURL = v.GetString(KeyAPIURL)
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %s must be an absolute URL, got %q", ErrInvalidConfig, KeyAPIURL, c.APIBaseURL)
	}

	c.Locations = locationsFrom(v)
	if len(c.Locations) == 0 {
		return ErrNoLocations
	}

	c.Quota = models.Quota{
		UsersPerLocation: v.GetInt(KeyMaxUsers),
		ReposPerUser:     v.GetInt(KeyMaxRepos),
	}
	if err := c.Quota.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var err error
	if c.RequestTimeout, err = durationFrom(v, KeyRequestTimeout); err != nil {
		return err
	}
	if c.Interval, err = durationFrom(v, KeyInterval); err != nil {
		return err
	}
	if c.Interval < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, KeyInterval)
	}

	c.PreviewRows = v.GetInt(KeyPreviewRows)
	if c.PreviewRows < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, KeyPreviewRows)
	}
	c.LogLevel = v.GetString(KeyLogLevel)

	c.Store = StoreConfig{
		Enabled:      v.GetBool(KeyStoreEnabled),
		Host:         v.GetString(KeyPostgresHost),
		Port:         v.GetString(KeyPostgresPort),
		User:         v.GetString(KeyPostgresUser),
		Password:     v.GetString(KeyPostgresPass),
		Database:     v.GetString(KeyPostgresDB),
		MaxOpenConns: v.GetInt(KeyMaxOpenConns),
		MaxIdleConns: v.GetInt(KeyMaxIdleConns),
	}
	if c.Store.ConnMaxLifetime, err = durationFrom(v, KeyConnMaxLifetime); err != nil {
		return err
	}
	if c.Store.Enabled && c.Store.Database == "" {
		return fmt.Errorf("%w: %s is required when the store is enabled", ErrInvalidConfig, KeyPostgresDB)
	}

	return nil
}

// locationsFrom accepts either a string slice (repeated flags) or a comma
// separated string (environment).
func locationsFrom(v *viper.Viper) []string {
	var raws []string
	switch val := v.Get(KeyLocations).(type) {
	case string:
		raws = []string{val}
	case []string:
		raws = val
	case []any:
		for _, item := range val {
			raws = append(raws, fmt.Sprint(item))
		}
	}

	var locations []string
	for _, raw := range raws {
		locations = append(locations, models.ParseLocations(raw)...)
	}
	return locations
}

func durationFrom(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}
