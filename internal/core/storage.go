package core

import (
	"context"
	"fmt"
	"strings"

	"buildcore/internal/infra/persistence/memory"
	"buildcore/internal/infra/persistence/postgres"
	"buildcore/internal/infra/persistence/sqlite"
	"buildcore/pkg/domain"
)

// StorageDriver identifies a concrete persistent storage implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

type (
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)

// StorageConfig selects a backend. An empty driver means sqlite.
type StorageConfig struct {
	Driver      string
	SQLitePath  string
	PostgresDSN string
}

// OpenPersistentStore opens the configured store. The returned closer releases
// database handles and is never nil.
func OpenPersistentStore(ctx context.Context, cfg StorageConfig) (PersistentStore, func() error, error) {
	noop := func() error { return nil }
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), noop, nil
	case StorageSQLite:
		s, err := sqlite.NewStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	case StoragePostgres:
		s, err := postgres.NewStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown storage driver %s", cfg.Driver)
	}
}
