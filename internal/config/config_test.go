package config

import (
	"strings"
	"testing"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(envOf(nil))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Storage.Driver != StorageSQLite || cfg.Storage.SQLitePath != "./qcstore.db" {
		t.Fatalf("unexpected storage defaults: %+v", cfg.Storage)
	}
	if cfg.Storage.PostgresSchema != "raw_material" {
		t.Fatalf("unexpected schema default %q", cfg.Storage.PostgresSchema)
	}
	if cfg.Blob.Driver != "fs" || cfg.Blob.FSRoot != "./blobdata" {
		t.Fatalf("unexpected blob defaults: %+v", cfg.Blob)
	}
	if cfg.LogMode != "dev" || cfg.MetricsNamespace != "qcstore" {
		t.Fatalf("unexpected ambient defaults: %+v", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("QCSTORE_STORAGE_DRIVER", "Postgres")
	t.Setenv("QCSTORE_POSTGRES_DSN", "postgres://db/qc")
	t.Setenv("QCSTORE_PARTITIONS_FILE", "/etc/qc/partitions.yaml")
	t.Setenv("QCSTORE_BLOB_DRIVER", "s3")
	t.Setenv("QCSTORE_BLOB_S3_BUCKET", "qc-archive")
	t.Setenv("QCSTORE_BLOB_S3_PATH_STYLE", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Storage.Driver != StoragePostgres || cfg.Storage.PostgresDSN != "postgres://db/qc" {
		t.Fatalf("unexpected storage: %+v", cfg.Storage)
	}
	if cfg.Storage.PartitionsFile != "/etc/qc/partitions.yaml" {
		t.Fatalf("unexpected partitions file %q", cfg.Storage.PartitionsFile)
	}
	if !cfg.Blob.S3PathStyle || cfg.Blob.S3Bucket != "qc-archive" {
		t.Fatalf("unexpected blob: %+v", cfg.Blob)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"storage", map[string]string{"QCSTORE_STORAGE_DRIVER": "mysql"}, "unknown storage driver"},
		{"blob", map[string]string{"QCSTORE_BLOB_DRIVER": "gcs"}, "unknown blob driver"},
		{"bucket", map[string]string{"QCSTORE_BLOB_DRIVER": "s3"}, "BUCKET required"},
		{"path style", map[string]string{"QCSTORE_BLOB_S3_PATH_STYLE": "sometimes"}, "PATH_STYLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFrom(envOf(tc.env))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}
