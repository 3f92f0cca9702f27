// Package postgres implements the path store on PostgreSQL. Saves are queued
// and written by a background goroutine; reads flush the queue first.
package postgres

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rigtwin/twin/internal/database"
	"github.com/rigtwin/twin/internal/model"
	"github.com/rigtwin/twin/internal/model/convert"
	"github.com/rigtwin/twin/internal/queue"
	gormstorage "github.com/rigtwin/twin/internal/storage/gorm"
	"github.com/rigtwin/twin/pkg/core"

	"gorm.io/gorm"
)

// DefaultFlushInterval paces the background writer.
const DefaultFlushInterval = 2 * time.Second

// Dependencies holds all dependencies for the postgres backend.
type Dependencies struct {
	// DB is used when set; otherwise Init connects with DSN.
	DB  *gorm.DB
	DSN string

	// FallbackPath is a SQLite file used when Postgres cannot be reached.
	FallbackPath  string
	Logger        *slog.Logger
	FlushInterval time.Duration
}

// Backend embeds the GORM backend and defers path writes to a queue.
type Backend struct {
	*gormstorage.Backend
	deps     Dependencies
	log      *slog.Logger
	paths    *queue.Queue[model.Path]
	owned    bool
	local    bool
	writeMu  sync.Mutex
	stopChan chan struct{}
	done     sync.WaitGroup
}

// New creates a new postgres backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = DefaultFlushInterval
	}
	return &Backend{
		deps:  deps,
		log:   deps.Logger,
		paths: queue.New[model.Path](),
	}
}

// Init connects if needed, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		db, local, err := database.OpenWithFallback(b.deps.DSN, b.deps.FallbackPath)
		if err != nil {
			return err
		}
		if local {
			b.log.Warn("Postgres unreachable, storing paths in local SQLite", "path", b.deps.FallbackPath)
		}
		b.deps.DB, b.owned, b.local = db, true, local
	}

	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: b.deps.DB, Logger: b.log})
	if err := b.Backend.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done.Add(1)
	go b.writer()
	return nil
}

// Close stops the writer and flushes what is left.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	close(b.stopChan)
	b.done.Wait()
	b.stopChan = nil
	err := b.Flush()
	if b.owned {
		err = errors.Join(err, database.Close(b.deps.DB))
	}
	return err
}

// Local reports whether Init fell back to the SQLite file.
func (b *Backend) Local() bool {
	return b.local
}

// Pending returns the number of queued, unwritten paths.
func (b *Backend) Pending() int {
	return b.paths.Len()
}

// SavePath validates and converts p, then queues it for the writer.
func (b *Backend) SavePath(p *core.ReferencePath) error {
	row, err := convert.CoreToPath(p)
	if err != nil {
		return err
	}
	b.paths.Push(row)
	return nil
}

// LoadPath flushes queued writes and reads the row.
func (b *Backend) LoadPath(id string) (*core.ReferencePath, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return b.Backend.LoadPath(id)
}

// ListPaths flushes queued writes and reads the catalogue.
func (b *Backend) ListPaths() ([]core.PathInfo, error) {
	if err := b.Flush(); err != nil {
		return nil, err
	}
	return b.Backend.ListPaths()
}

// DeletePath flushes queued writes and deletes the row.
func (b *Backend) DeletePath(id string) error {
	if err := b.Flush(); err != nil {
		return err
	}
	return b.Backend.DeletePath(id)
}

// Flush writes every queued path in one transaction. On failure the rows go
// back on the queue.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return writeQueue(b.deps.DB, b.paths, "paths", b.log)
}

// writeQueue writes all items from a queue to the database in a transaction.
func writeQueue(db *gorm.DB, q *queue.Queue[model.Path], name string, log *slog.Logger) error {
	if q.Empty() {
		return nil
	}

	items := q.Drain()
	// later saves of the same id win
	last := make(map[string]int, len(items))
	for i, it := range items {
		last[it.ID] = i
	}
	rows := make([]model.Path, 0, len(last))
	for i, it := range items {
		if last[it.ID] == i {
			rows = append(rows, it)
		}
	}

	tx := db.Begin()
	if tx.Error != nil {
		q.Requeue(items...)
		return fmt.Errorf("failed to begin %s: %w", name, tx.Error)
	}
	if err := gormstorage.UpsertPaths(tx, rows); err != nil {
		log.Error("Error writing queue", "queue", name, "error", err)
		tx.Rollback()
		q.Requeue(items...)
		return err
	}
	if err := tx.Commit().Error; err != nil {
		q.Requeue(items...)
		return fmt.Errorf("failed to commit %s: %w", name, err)
	}
	log.Debug("Wrote queue", "queue", name, "rows", len(rows))
	return nil
}

// writer periodically drains the queue into the DB.
func (b *Backend) writer() {
	defer b.done.Done()
	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			_ = b.Flush()
		}
	}
}
