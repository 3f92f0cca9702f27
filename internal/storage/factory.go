package storage

import (
	"fmt"
	"log/slog"

	"github.com/rigtwin/twin/internal/config"
	"github.com/rigtwin/twin/internal/storage/memory"
	"github.com/rigtwin/twin/internal/storage/postgres"
	sqlitestorage "github.com/rigtwin/twin/internal/storage/sqlite"
	"github.com/rigtwin/twin/pkg/core"
)

// NewBackend creates a storage backend based on configuration. The result is
// not initialised yet.
func NewBackend(cfg config.StorageConfig, db config.DBConfig, log *slog.Logger) (Backend, error) {
	var b Backend
	switch cfg.Type {
	case "postgres":
		b = postgres.New(postgres.Dependencies{DSN: db.DSN(), FallbackPath: db.FallbackPath, Logger: log})
	case "sqlite":
		s, err := sqlitestorage.New(sqlitestorage.Config{
			DumpInterval: cfg.SQLite.DumpInterval,
			DumpPath:     cfg.SQLite.DumpPath,
		}, log)
		if err != nil {
			return nil, err
		}
		b = s
	case "memory", "":
		b = memory.New(cfg.Memory, log)
	default:
		return nil, fmt.Errorf("%w: unknown storage type: %s", core.ErrConfiguration, cfg.Type)
	}
	return NewCached(b, cfg.CacheSize, cfg.CacheTTL), nil
}
