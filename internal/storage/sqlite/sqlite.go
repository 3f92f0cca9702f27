// Package sqlitestorage implements the path store on an in-memory SQLite
// database with periodic disk dumps via VACUUM INTO. A dump found at startup
// is loaded back into memory.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rigtwin/twin/internal/database"
	"github.com/rigtwin/twin/internal/model"
	gormstorage "github.com/rigtwin/twin/internal/storage/gorm"

	"gorm.io/gorm"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	DumpInterval time.Duration
	DumpPath     string // Path for periodic VACUUM INTO dumps
	// Name distinguishes in-memory databases within one process.
	Name string
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      Config
	log      *slog.Logger
	stopChan chan struct{}
	done     sync.WaitGroup
	dumpMu   sync.Mutex
}

// New creates a new SQLite storage backend.
func New(cfg Config, log *slog.Logger) (*Backend, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	name := cfg.Name
	if name == "" {
		name = "rigtwin"
	}
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Logger: log}),
		db:       db,
		cfg:      cfg,
		log:      log,
		stopChan: make(chan struct{}),
	}, nil
}

// Init migrates the schema, restores the last dump and starts the dump
// goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if err := b.restore(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.done.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// Close stops the dump goroutine, writes a final dump and closes the
// in-memory database.
func (b *Backend) Close() error {
	close(b.stopChan)
	b.done.Wait()

	var err error
	if b.cfg.DumpPath != "" {
		err = b.Dump()
	}
	if sqlDB, dbErr := b.db.DB(); dbErr == nil {
		_ = sqlDB.Close()
	}
	return err
}

// Dump writes the current database to DumpPath.
func (b *Backend) Dump() error {
	b.dumpMu.Lock()
	defer b.dumpMu.Unlock()
	return database.VacuumInto(b.db, b.cfg.DumpPath)
}

// restore copies rows from an existing dump file into memory.
func (b *Backend) restore() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	if _, err := os.Stat(b.cfg.DumpPath); err != nil {
		return nil
	}

	disk, err := database.OpenSQLite(b.cfg.DumpPath)
	if err != nil {
		return fmt.Errorf("failed to open dump: %w", err)
	}
	defer func() {
		if sqlDB, err := disk.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()
	if err := database.Migrate(disk); err != nil {
		return err
	}

	var paths []model.Path
	if err := disk.Find(&paths).Error; err != nil {
		return fmt.Errorf("failed to read dumped paths: %w", err)
	}
	var regions []model.Region
	if err := disk.Find(&regions).Error; err != nil {
		return fmt.Errorf("failed to read dumped regions: %w", err)
	}

	if err := gormstorage.UpsertPaths(b.db, paths); err != nil {
		return err
	}
	if len(regions) > 0 {
		if err := b.db.Create(&regions).Error; err != nil {
			return fmt.Errorf("failed to restore regions: %w", err)
		}
	}
	b.log.Info("Restored SQLite dump", "path", b.cfg.DumpPath, "paths", len(paths), "regions", len(regions))
	return nil
}

// dumpLoop periodically dumps the in-memory SQLite database to disk via VACUUM INTO.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.done.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
