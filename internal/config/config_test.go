package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/geoimport/internal/constants"
	"github.com/celestiaorg/geoimport/internal/db"
	"github.com/celestiaorg/geoimport/internal/services"
)

var allKeys = []string{
	constants.EnvServerPort, constants.EnvLogLevel,
	constants.EnvDBDriver, constants.EnvDBHost, constants.EnvDBUser, constants.EnvDBPassword,
	constants.EnvDBName, constants.EnvDBPort, constants.EnvDBSSLEnabled, constants.EnvSQLitePath,
	constants.EnvDBAutoMigrate,
	constants.EnvWorkerCount, constants.EnvQueueSize, constants.EnvJobMaxAge, constants.EnvJobCleanupInterval,
	constants.EnvMaxUploadMB, constants.EnvReplacementTTL, constants.EnvReplacementSweep,
	constants.EnvDuplicateBatchThreshold, constants.EnvDuplicateBatchSize, constants.EnvDuplicateBatchConcurrency,
	constants.EnvBBoxMaxFeatures, constants.EnvBBoxSuspiciousLonSpan, constants.EnvBBoxSuspiciousLatSpan,
	constants.EnvBBoxSuspiciousMinResults,
}

// clearEnv unsets every config variable for the duration of the test
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.ServerPort)
	assert.Equal(t, db.DriverPostgres, cfg.DBDriver)
	assert.Equal(t, db.DefaultPort, cfg.DBPort)
	assert.Equal(t, services.DefaultWorkerCount, cfg.WorkerCount)
	assert.Equal(t, services.DefaultJobMaxAge, cfg.JobMaxAge)
	assert.True(t, cfg.DBAutoMigrate)
	assert.False(t, cfg.DBOptions().SkipMigrate)

	imports := cfg.ImportConfig()
	assert.Equal(t, int64(DefaultMaxUploadMB<<20), imports.MaxUploadBytes)
	assert.Equal(t, services.DefaultReplacementTTL, imports.Cleanup.TTL)
	assert.Equal(t, float64(services.DefaultSuspiciousLonSpan), imports.BBox.SuspiciousLonSpan)
	assert.Equal(t, services.DefaultBBoxMaxFeatures, imports.BBox.DefaultLimit)
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv(constants.EnvDBDriver, db.DriverSQLite)
	t.Setenv(constants.EnvSQLitePath, "/tmp/geo.db")
	t.Setenv(constants.EnvDBSSLEnabled, "true")
	t.Setenv(constants.EnvWorkerCount, "8")
	t.Setenv(constants.EnvJobMaxAge, "30m")
	t.Setenv(constants.EnvMaxUploadMB, "5")
	t.Setenv(constants.EnvBBoxSuspiciousLonSpan, "120.5")
	t.Setenv(constants.EnvBBoxSuspiciousMinResults, "3")
	t.Setenv(constants.EnvDuplicateBatchSize, "25")

	cfg, err := Load()
	require.NoError(t, err)

	opts := cfg.DBOptions()
	assert.Equal(t, db.DriverSQLite, opts.Driver)
	assert.Equal(t, "/tmp/geo.db", opts.SQLitePath)
	require.NotNil(t, opts.SSLEnabled)
	assert.True(t, *opts.SSLEnabled)

	imports := cfg.ImportConfig()
	assert.Equal(t, 8, imports.Runner.Workers)
	assert.Equal(t, 30*time.Minute, imports.Tracker.MaxAge)
	assert.Equal(t, int64(5<<20), imports.MaxUploadBytes)
	assert.Equal(t, 120.5, imports.BBox.SuspiciousLonSpan)
	assert.Equal(t, int64(3), imports.BBox.SuspiciousMinResults)
	assert.Equal(t, 25, imports.Duplicates.BatchSize)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "non numeric worker count", key: constants.EnvWorkerCount, val: "many"},
		{name: "zero workers", key: constants.EnvWorkerCount, val: "0"},
		{name: "bad duration", key: constants.EnvJobMaxAge, val: "1 hour"},
		{name: "bad bool", key: constants.EnvDBSSLEnabled, val: "sometimes"},
		{name: "unknown driver", key: constants.EnvDBDriver, val: "mysql"},
		{name: "span out of range", key: constants.EnvBBoxSuspiciousLatSpan, val: "500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.val)

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_PORT=9090\nWORKER_COUNT=2\n"), 0o600))

	t.Setenv(constants.EnvWorkerCount, "6")
	require.NoError(t, LoadDotEnv(path))
	t.Cleanup(func() { _ = os.Unsetenv(constants.EnvServerPort) })

	assert.Equal(t, "9090", os.Getenv(constants.EnvServerPort))
	assert.Equal(t, "6", os.Getenv(constants.EnvWorkerCount), "variables already set win")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))
}
