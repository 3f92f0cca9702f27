// internal/storage/memory/memory.go
package memory

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rigtwin/twin/internal/config"
	"github.com/rigtwin/twin/internal/pathcodec"
	"github.com/rigtwin/twin/pkg/core"
)

// regionsFile holds the saved region set next to the path documents.
const regionsFile = "regions.json"

// Backend keeps paths in memory and mirrors every path to its own file in
// OutputDir. With an empty OutputDir nothing touches the disk.
type Backend struct {
	cfg         config.MemoryConfig
	log         *slog.Logger
	format      pathcodec.Format
	compression pathcodec.Compression

	paths   map[string]*core.ReferencePath
	files   map[string]string // path id -> file name in OutputDir
	regions []core.Region

	mu sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Backend{
		cfg:   cfg,
		log:   log,
		paths: make(map[string]*core.ReferencePath),
		files: make(map[string]string),
	}
}

// Init resolves the encoding and loads every readable path file from
// OutputDir. Files that fail to decode or validate are logged and skipped.
func (b *Backend) Init() error {
	var err error
	if b.format, err = pathcodec.ParseFormat(b.cfg.Format); err != nil {
		return err
	}
	comp := b.cfg.Compression
	if comp == "" && b.cfg.CompressOutput {
		comp = string(pathcodec.CompressionGzip)
	}
	if b.compression, err = pathcodec.ParseCompression(comp); err != nil {
		return err
	}

	if b.cfg.OutputDir == "" {
		return nil
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	entries, err := os.ReadDir(b.cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to read output directory: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range entries {
		if e.IsDir() || e.Name() == regionsFile {
			continue
		}
		if _, _, _, ok := pathcodec.SplitName(e.Name()); !ok {
			continue
		}
		p, err := b.readPathFile(e.Name())
		if err != nil {
			b.log.Warn("Excluding invalid path file", "file", e.Name(), "error", err)
			continue
		}
		if old, dup := b.files[p.ID]; dup {
			b.log.Warn("Duplicate path id, keeping first file", "id", p.ID, "file", e.Name(), "kept", old)
			continue
		}
		b.paths[p.ID] = p
		b.files[p.ID] = e.Name()
	}

	regions, err := b.readRegionsFile()
	switch {
	case err == nil:
		b.regions = regions
	case !os.IsNotExist(err):
		b.log.Warn("Ignoring unreadable regions file", "error", err)
	}

	b.log.Info("Path store loaded", "dir", b.cfg.OutputDir, "paths", len(b.paths))
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// SavePath validates p, writes its file and replaces any earlier path with
// the same id.
func (b *Backend) SavePath(p *core.ReferencePath) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.ID == "" || strings.ContainsAny(p.ID, `/\`) || p.ID == "." || p.ID == ".." {
		return fmt.Errorf("%w: unusable path id %q", core.ErrConfiguration, p.ID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir != "" {
		name := p.ID + pathcodec.Extension(b.format, b.compression)
		if err := b.writePathFile(name, p); err != nil {
			return err
		}
		if old, ok := b.files[p.ID]; ok && old != name {
			_ = os.Remove(filepath.Join(b.cfg.OutputDir, old))
		}
		b.files[p.ID] = name
	}
	b.paths[p.ID] = p
	return nil
}

// LoadPath returns the stored path with the given id.
func (b *Backend) LoadPath(id string) (*core.ReferencePath, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.paths[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrPathNotFound, id)
	}
	return p, nil
}

// ListPaths returns the catalogue ordered by recording time, then id.
func (b *Backend) ListPaths() ([]core.PathInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.PathInfo, 0, len(b.paths))
	for _, p := range b.paths {
		out = append(out, p.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RecordedAt.Equal(out[j].RecordedAt) {
			return out[i].RecordedAt.Before(out[j].RecordedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeletePath removes the path and its file.
func (b *Backend) DeletePath(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.paths[id]; !ok {
		return fmt.Errorf("%w: %s", core.ErrPathNotFound, id)
	}
	if name, ok := b.files[id]; ok {
		if err := os.Remove(filepath.Join(b.cfg.OutputDir, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove path file: %w", err)
		}
		delete(b.files, id)
	}
	delete(b.paths, id)
	return nil
}

// SaveRegions stores the region set.
func (b *Backend) SaveRegions(regions []core.Region) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir != "" {
		if err := b.writeRegionsFile(regions); err != nil {
			return err
		}
	}
	b.regions = append([]core.Region(nil), regions...)
	return nil
}

// LoadRegions returns the stored region set.
func (b *Backend) LoadRegions() ([]core.Region, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return append([]core.Region(nil), b.regions...), nil
}
