// Package gormstorage implements the path store on any gorm dialect. The
// sqlite and postgres backends wrap it.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/rigtwin/twin/internal/database"
	"github.com/rigtwin/twin/internal/model"
	"github.com/rigtwin/twin/internal/model/convert"
	"github.com/rigtwin/twin/pkg/core"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger
}

// Backend stores paths as rows of model.Path.
type Backend struct {
	db  *gorm.DB
	log *slog.Logger
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	log := deps.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Backend{db: deps.DB, log: log}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB { return b.db }

// Init migrates the schema.
func (b *Backend) Init() error {
	if b.db == nil {
		return fmt.Errorf("%w: gorm backend has no database", core.ErrConfiguration)
	}
	b.log.Info("Migrating schema", "dialect", b.db.Dialector.Name())
	return database.Migrate(b.db)
}

// Close is a no-op; the connection belongs to the caller.
func (b *Backend) Close() error {
	return nil
}

// SavePath upserts p.
func (b *Backend) SavePath(p *core.ReferencePath) error {
	row, err := convert.CoreToPath(p)
	if err != nil {
		return err
	}
	return UpsertPaths(b.db, []model.Path{row})
}

// UpsertPaths writes rows, replacing existing rows with the same id.
func UpsertPaths(db *gorm.DB, rows []model.Path) error {
	if len(rows) == 0 {
		return nil
	}
	err := db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to write paths: %w", err)
	}
	return nil
}

// LoadPath decodes the stored document.
func (b *Backend) LoadPath(id string) (*core.ReferencePath, error) {
	var row model.Path
	err := b.db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrPathNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load path: %w", err)
	}
	return convert.PathToCore(row)
}

// ListPaths returns the catalogue ordered by recording time. Rows whose
// document fails to decode are logged and left out.
func (b *Backend) ListPaths() ([]core.PathInfo, error) {
	var rows []model.Path
	err := b.db.
		Select("id", "name", "vehicle_id", "recorded_at", "samples", "max_time", "document").
		Order("recorded_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list paths: %w", err)
	}
	out := make([]core.PathInfo, 0, len(rows))
	for _, row := range rows {
		if _, err := convert.PathToCore(row); err != nil {
			b.log.Warn("Excluding invalid path row", "id", row.ID, "error", err)
			continue
		}
		out = append(out, convert.PathToInfo(row))
	}
	return out, nil
}

// DeletePath removes the row.
func (b *Backend) DeletePath(id string) error {
	res := b.db.Where("id = ?", id).Delete(&model.Path{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete path: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", core.ErrPathNotFound, id)
	}
	return nil
}

// SaveRegions replaces the stored region set.
func (b *Backend) SaveRegions(regions []core.Region) error {
	rows := make([]model.Region, 0, len(regions))
	for i, r := range regions {
		row, err := convert.CoreToRegion(r, i)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return b.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Region{}).Error; err != nil {
			return fmt.Errorf("failed to clear regions: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to write regions: %w", err)
		}
		return nil
	})
}

// LoadRegions returns the stored regions in saved order. Rows that fail to
// decode are logged and skipped.
func (b *Backend) LoadRegions() ([]core.Region, error) {
	var rows []model.Region
	if err := b.db.Order("position").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load regions: %w", err)
	}
	out := make([]core.Region, 0, len(rows))
	for _, row := range rows {
		r, err := convert.RegionToCore(row)
		if err != nil {
			b.log.Warn("Skipping invalid region row", "region", row.Name, "error", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
