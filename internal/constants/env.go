// Package constants provides centralized definitions of constants used throughout the application
package constants

// Database environment variable names
const (
	// EnvDBDriver selects the gorm dialect, "postgres" or "sqlite"
	EnvDBDriver     = "DB_DRIVER"
	EnvDBHost       = "DB_HOST"
	EnvDBUser       = "DB_USER"
	EnvDBPassword   = "DB_PASSWORD"
	EnvDBName       = "DB_NAME"
	EnvDBPort       = "DB_PORT"
	EnvDBSSLEnabled = "DB_SSL_ENABLED"

	// EnvDBAutoMigrate turns gorm AutoMigrate off when set to false
	EnvDBAutoMigrate = "DB_AUTO_MIGRATE"

	// EnvSQLitePath is the database file used with the sqlite driver
	EnvSQLitePath = "SQLITE_PATH"
)

// Server environment variable names
const (
	EnvServerPort = "SERVER_PORT"

	// EnvLogLevel is parsed by logrus, e.g. "debug" or "warn"
	EnvLogLevel = "LOG_LEVEL"
)

// Import pipeline environment variable names
const (
	// EnvWorkerCount is the number of jobs processed concurrently
	EnvWorkerCount        = "WORKER_COUNT"
	// EnvQueueSize is the number of jobs waiting for a worker before uploads are refused
	EnvQueueSize          = "QUEUE_SIZE"
	// EnvJobMaxAge is how long finished jobs stay queryable, as a Go duration
	EnvJobMaxAge          = "JOB_MAX_AGE"
	// EnvJobCleanupInterval is the minimum time between job registry compactions
	EnvJobCleanupInterval = "JOB_CLEANUP_INTERVAL"
	EnvMaxUploadMB        = "MAX_UPLOAD_MB"

	EnvReplacementTTL   = "REPLACEMENT_TTL"
	EnvReplacementSweep = "REPLACEMENT_SWEEP_INTERVAL"

	EnvDuplicateBatchThreshold   = "DUPLICATE_BATCH_THRESHOLD"
	EnvDuplicateBatchSize        = "DUPLICATE_BATCH_SIZE"
	EnvDuplicateBatchConcurrency = "DUPLICATE_BATCH_CONCURRENCY"
)

// Bbox query environment variable names
const (
	// EnvBBoxMaxFeatures is the default cap on features returned per viewport
	EnvBBoxMaxFeatures          = "BBOX_MAX_FEATURES"
	EnvBBoxSuspiciousLonSpan    = "BBOX_SUSPICIOUS_LON_SPAN"
	EnvBBoxSuspiciousLatSpan    = "BBOX_SUSPICIOUS_LAT_SPAN"
	EnvBBoxSuspiciousMinResults = "BBOX_SUSPICIOUS_MIN_RESULTS"
)

// CLI environment variable names
const (
	// EnvAPIURL is the base URL the CLI talks to
	EnvAPIURL = "GEOIMPORT_API_URL"

	// EnvUserID is the user the CLI acts as
	EnvUserID = "GEOIMPORT_USER_ID"
)
