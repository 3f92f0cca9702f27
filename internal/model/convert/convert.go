package convert

import (
	"encoding/json"
	"fmt"

	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/internal/model"
	"github.com/rigtwin/twin/internal/pathcodec"
	"github.com/rigtwin/twin/pkg/core"
)

// PathToCore decodes the Document column of a GORM model.Path. Malformed
// documents wrap core.ErrDataIntegrity.
func PathToCore(m model.Path) (*core.ReferencePath, error) {
	p, err := pathcodec.Unmarshal(m.Document, pathcodec.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("path %s: %w", m.ID, err)
	}
	if p.ID != m.ID {
		return nil, fmt.Errorf("%w: path row %s holds document %s", core.ErrDataIntegrity, m.ID, p.ID)
	}
	return p, nil
}

// PathToInfo builds the catalogue entry from the row columns alone.
func PathToInfo(m model.Path) core.PathInfo {
	return core.PathInfo{
		ID:         m.ID,
		Name:       m.Name,
		VehicleID:  m.VehicleID,
		RecordedAt: m.RecordedAt.UTC(),
		Samples:    m.Samples,
		MaxTime:    m.MaxTime,
	}
}

// PathStart returns the tractor rear axle position at t=0.
func PathStart(m model.Path) core.Point {
	return geo.FromGeomPoint(m.StartPoint)
}

// RegionToCore converts a GORM model.Region back. The vertex JSON is
// authoritative; the boundary polygon is used when it is missing.
func RegionToCore(m model.Region) (core.Region, error) {
	if len(m.Vertices) > 0 {
		var verts []core.Point
		if err := json.Unmarshal(m.Vertices, &verts); err != nil {
			return core.Region{}, fmt.Errorf("%w: region %s: %v", core.ErrDataIntegrity, m.Name, err)
		}
		return core.Region{Name: m.Name, Vertices: verts}, nil
	}
	if m.Boundary.IsEmpty() {
		return core.Region{}, fmt.Errorf("%w: region %s has no geometry", core.ErrDataIntegrity, m.Name)
	}
	return geo.PolygonToRegion(m.Name, m.Boundary), nil
}
