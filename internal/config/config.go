// Package config reads process configuration from QCSTORE_* environment
// variables.
//
//	QCSTORE_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	QCSTORE_SQLITE_PATH: path to sqlite file (default ./qcstore.db)
//	QCSTORE_POSTGRES_DSN: postgres DSN when driver=postgres
//	QCSTORE_POSTGRES_SCHEMA: postgres schema (default raw_material)
//	QCSTORE_PARTITIONS_FILE: YAML partition ranges (default ranges when unset)
//	QCSTORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	QCSTORE_BLOB_FS_ROOT: directory root when blob driver=fs (default ./blobdata)
//	QCSTORE_BLOB_S3_BUCKET, QCSTORE_BLOB_S3_REGION, QCSTORE_BLOB_S3_ENDPOINT,
//	QCSTORE_BLOB_S3_PATH_STYLE: S3 / MinIO archive target
//	QCSTORE_LOG_MODE: dev|prod (default dev)
//	QCSTORE_METRICS_NAMESPACE: prometheus namespace (default qcstore)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// Storage selects and parameterises the record store.
type Storage struct {
	Driver         StorageDriver
	SQLitePath     string
	PostgresDSN    string
	PostgresSchema string
	PartitionsFile string
}

// Blob configures the archive target.
type Blob struct {
	Driver      string
	FSRoot      string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3PathStyle bool
}

// Config is the full process configuration.
type Config struct {
	Storage          Storage
	Blob             Blob
	LogMode          string
	MetricsNamespace string
}

// Load reads the process environment.
func Load() (Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through getenv.
func LoadFrom(getenv func(string) string) (Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	cfg := Config{
		Storage: Storage{
			Driver:         StorageDriver(strings.ToLower(get("QCSTORE_STORAGE_DRIVER", string(StorageSQLite)))),
			SQLitePath:     get("QCSTORE_SQLITE_PATH", "./qcstore.db"),
			PostgresDSN:    get("QCSTORE_POSTGRES_DSN", ""),
			PostgresSchema: get("QCSTORE_POSTGRES_SCHEMA", "raw_material"),
			PartitionsFile: get("QCSTORE_PARTITIONS_FILE", ""),
		},
		Blob: Blob{
			Driver:     strings.ToLower(get("QCSTORE_BLOB_DRIVER", "fs")),
			FSRoot:     get("QCSTORE_BLOB_FS_ROOT", "./blobdata"),
			S3Bucket:   get("QCSTORE_BLOB_S3_BUCKET", ""),
			S3Region:   get("QCSTORE_BLOB_S3_REGION", "us-east-1"),
			S3Endpoint: get("QCSTORE_BLOB_S3_ENDPOINT", ""),
		},
		LogMode:          get("QCSTORE_LOG_MODE", "dev"),
		MetricsNamespace: get("QCSTORE_METRICS_NAMESPACE", "qcstore"),
	}
	if raw := get("QCSTORE_BLOB_S3_PATH_STYLE", ""); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("QCSTORE_BLOB_S3_PATH_STYLE: %w", err)
		}
		cfg.Blob.S3PathStyle = v
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks driver names and driver-specific requirements.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage driver %s", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("QCSTORE_BLOB_S3_BUCKET required for s3 driver")
		}
	default:
		return fmt.Errorf("unknown blob driver %s", c.Blob.Driver)
	}
	return nil
}
