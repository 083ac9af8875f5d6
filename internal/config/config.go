// Package config reads the server settings from the environment
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/celestiaorg/geoimport/internal/constants"
	"github.com/celestiaorg/geoimport/internal/db"
	"github.com/celestiaorg/geoimport/internal/services"
)

// Defaults for settings that are not set in the environment
const (
	DefaultServerPort  = "8080"
	DefaultMaxUploadMB = 50
)

// Config holds the settings of the geoimport server
type Config struct {
	ServerPort string `validate:"required,numeric"`
	LogLevel   string

	DBDriver     string `validate:"oneof=postgres sqlite"`
	DBHost       string
	DBUser       string
	DBPassword   string
	DBName       string
	DBPort       int `validate:"gte=0,lte=65535"`
	DBSSLEnabled bool
	SQLitePath   string

	// DBAutoMigrate is false when the schema is managed with cmd/migrate
	DBAutoMigrate bool

	WorkerCount        int           `validate:"gte=1"`
	QueueSize          int           `validate:"gte=1"`
	JobMaxAge          time.Duration `validate:"gt=0"`
	JobCleanupInterval time.Duration `validate:"gte=0"`
	MaxUploadMB        int64         `validate:"gte=1"`

	ReplacementTTL   time.Duration `validate:"gte=0"`
	ReplacementSweep time.Duration `validate:"gte=0"`

	DuplicateBatchThreshold   int `validate:"gte=0"`
	DuplicateBatchSize        int `validate:"gte=0"`
	DuplicateBatchConcurrency int `validate:"gte=0"`

	BBoxMaxFeatures          int     `validate:"gte=0"`
	BBoxSuspiciousLonSpan    float64 `validate:"gte=0,lte=360"`
	BBoxSuspiciousLatSpan    float64 `validate:"gte=0,lte=180"`
	BBoxSuspiciousMinResults int64   `validate:"gte=0"`
}

// GetEnv retrieves the value of an environment variable with a fallback value if not set
func GetEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// LoadDotEnv loads .env style files into the environment. Missing files are
// ignored, variables already set are kept.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		ServerPort: GetEnv(constants.EnvServerPort, DefaultServerPort),
		LogLevel:   GetEnv(constants.EnvLogLevel, "info"),

		DBDriver:     GetEnv(constants.EnvDBDriver, db.DriverPostgres),
		DBHost:       GetEnv(constants.EnvDBHost, db.DefaultHost),
		DBUser:       GetEnv(constants.EnvDBUser, db.DefaultUser),
		DBPassword:   GetEnv(constants.EnvDBPassword, db.DefaultPassword),
		DBName:       GetEnv(constants.EnvDBName, db.DefaultDBName),
		DBPort:       p.intEnv(constants.EnvDBPort, db.DefaultPort),
		DBSSLEnabled: p.boolEnv(constants.EnvDBSSLEnabled, db.DefaultSSLEnabled),
		SQLitePath:   GetEnv(constants.EnvSQLitePath, db.DefaultSQLitePath),

		DBAutoMigrate: p.boolEnv(constants.EnvDBAutoMigrate, true),

		WorkerCount:        p.intEnv(constants.EnvWorkerCount, services.DefaultWorkerCount),
		QueueSize:          p.intEnv(constants.EnvQueueSize, services.DefaultQueueSize),
		JobMaxAge:          p.durationEnv(constants.EnvJobMaxAge, services.DefaultJobMaxAge),
		JobCleanupInterval: p.durationEnv(constants.EnvJobCleanupInterval, services.DefaultJobCleanupInterval),
		MaxUploadMB:        int64(p.intEnv(constants.EnvMaxUploadMB, DefaultMaxUploadMB)),

		ReplacementTTL:   p.durationEnv(constants.EnvReplacementTTL, services.DefaultReplacementTTL),
		ReplacementSweep: p.durationEnv(constants.EnvReplacementSweep, services.DefaultCleanupInterval),

		DuplicateBatchThreshold:   p.intEnv(constants.EnvDuplicateBatchThreshold, services.DefaultDuplicateBatchThreshold),
		DuplicateBatchSize:        p.intEnv(constants.EnvDuplicateBatchSize, services.DefaultDuplicateBatchSize),
		DuplicateBatchConcurrency: p.intEnv(constants.EnvDuplicateBatchConcurrency, services.DefaultDuplicateConcurrency),

		BBoxMaxFeatures:          p.intEnv(constants.EnvBBoxMaxFeatures, services.DefaultBBoxMaxFeatures),
		BBoxSuspiciousLonSpan:    p.floatEnv(constants.EnvBBoxSuspiciousLonSpan, services.DefaultSuspiciousLonSpan),
		BBoxSuspiciousLatSpan:    p.floatEnv(constants.EnvBBoxSuspiciousLatSpan, services.DefaultSuspiciousLatSpan),
		BBoxSuspiciousMinResults: int64(p.intEnv(constants.EnvBBoxSuspiciousMinResults, services.DefaultSuspiciousMinResults)),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the value ranges of the configuration
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return fmt.Errorf("invalid configuration: %s failed %s check (got %v)", fe.Field(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// DBOptions returns the database connection options
func (c *Config) DBOptions() db.Options {
	ssl := c.DBSSLEnabled
	return db.Options{
		Driver:      c.DBDriver,
		Host:        c.DBHost,
		User:        c.DBUser,
		Password:    c.DBPassword,
		DBName:      c.DBName,
		Port:        c.DBPort,
		SSLEnabled:  &ssl,
		SQLitePath:  c.SQLitePath,
		SkipMigrate: !c.DBAutoMigrate,
	}
}

// ImportConfig returns the settings of the import pipeline
func (c *Config) ImportConfig() services.ImportConfig {
	return services.ImportConfig{
		MaxUploadBytes: c.MaxUploadMB << 20,
		Runner: services.RunnerConfig{
			Workers:   c.WorkerCount,
			QueueSize: c.QueueSize,
		},
		Tracker: services.TrackerConfig{
			MaxAge:          c.JobMaxAge,
			CleanupInterval: c.JobCleanupInterval,
		},
		Duplicates: services.DuplicateConfig{
			BatchThreshold: c.DuplicateBatchThreshold,
			BatchSize:      c.DuplicateBatchSize,
			Concurrency:    c.DuplicateBatchConcurrency,
		},
		BBox: services.BBoxConfig{
			SuspiciousLonSpan:    c.BBoxSuspiciousLonSpan,
			SuspiciousLatSpan:    c.BBoxSuspiciousLatSpan,
			SuspiciousMinResults: c.BBoxSuspiciousMinResults,
			DefaultLimit:         c.BBoxMaxFeatures,
		},
		Cleanup: services.CleanupConfig{
			Interval: c.ReplacementSweep,
			TTL:      c.ReplacementTTL,
		},
	}
}

// parser keeps the first conversion error so Load reports one message
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid value %q for %s: %w", value, key, err)
	}
}

func (p *parser) intEnv(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) floatEnv(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) boolEnv(key string, fallback bool) bool {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}

func (p *parser) durationEnv(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.fail(key, raw, err)
		return fallback
	}
	return v
}
