package core

import (
	"context"
	"fmt"

	"rawmatqc/internal/config"
	"rawmatqc/internal/infra/persistence/memory"
	"rawmatqc/internal/infra/persistence/postgres"
	"rawmatqc/internal/infra/persistence/sqlite"
	"rawmatqc/internal/partition"
)

// OpenPersistentStore builds the partition router from cfg.PartitionsFile
// and opens the configured backend. Durable stores implement io.Closer.
// Invalid partition configuration is returned as a ConfigurationError.
func OpenPersistentStore(ctx context.Context, cfg config.Storage, engine *RulesEngine, opts ...memory.Option) (PersistentStore, error) {
	router, err := partition.Load(cfg.PartitionsFile)
	if err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.NewStore(router, engine, opts...), nil
	case config.StorageSQLite, "":
		return sqlite.NewStore(ctx, cfg.SQLitePath, router, engine, opts...)
	case config.StoragePostgres:
		return postgres.NewStore(ctx, postgres.Options{
			DSN:    cfg.PostgresDSN,
			Schema: cfg.PostgresSchema,
			Router: router,
			Engine: engine,
		}, opts...)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
