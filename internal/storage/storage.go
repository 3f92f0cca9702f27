// internal/storage/storage.go
package storage

import (
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rigtwin/twin/pkg/core"
)

// Backend is the interface all path stores must satisfy.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// SavePath stores p under p.ID, replacing any earlier path with that id.
	SavePath(p *core.ReferencePath) error
	// LoadPath returns core.ErrPathNotFound when no path has the id.
	LoadPath(id string) (*core.ReferencePath, error)
	// ListPaths returns the catalogue ordered by recording time.
	ListPaths() ([]core.PathInfo, error)
	DeletePath(id string) error
}

// RegionStore is an optional interface for backends that can persist the
// region set alongside recorded paths.
type RegionStore interface {
	SaveRegions(regions []core.Region) error
	LoadRegions() ([]core.Region, error)
}

// Cached keeps recently loaded paths in an expiring LRU in front of another
// backend. Cached paths are shared between callers and must not be mutated.
type Cached struct {
	Backend
	lru *expirable.LRU[string, *core.ReferencePath]
}

// NewCached wraps b. A size of zero or less returns b unchanged.
func NewCached(b Backend, size int, ttl time.Duration) Backend {
	if size <= 0 {
		return b
	}
	return &Cached{
		Backend: b,
		lru:     expirable.NewLRU[string, *core.ReferencePath](size, nil, ttl),
	}
}

// SavePath stores p and refreshes the cache entry.
func (c *Cached) SavePath(p *core.ReferencePath) error {
	if err := c.Backend.SavePath(p); err != nil {
		if p != nil {
			c.lru.Remove(p.ID)
		}
		return err
	}
	c.lru.Add(p.ID, p)
	return nil
}

// LoadPath serves from the cache when possible.
func (c *Cached) LoadPath(id string) (*core.ReferencePath, error) {
	if p, ok := c.lru.Get(id); ok {
		return p, nil
	}
	p, err := c.Backend.LoadPath(id)
	if err != nil {
		return nil, err
	}
	c.lru.Add(id, p)
	return p, nil
}

// DeletePath removes the path from the backend and the cache.
func (c *Cached) DeletePath(id string) error {
	c.lru.Remove(id)
	return c.Backend.DeletePath(id)
}

// Close purges the cache and closes the backend.
func (c *Cached) Close() error {
	c.lru.Purge()
	return c.Backend.Close()
}

// Unwrap returns the backend behind a cache, or b itself.
func Unwrap(b Backend) Backend {
	if c, ok := b.(*Cached); ok {
		return c.Backend
	}
	return b
}

// Regions returns the region store behind b, unwrapping a cache.
func Regions(b Backend) (RegionStore, bool) {
	rs, ok := Unwrap(b).(RegionStore)
	return rs, ok
}

// IsNotFound reports whether err means the path does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, core.ErrPathNotFound)
}
