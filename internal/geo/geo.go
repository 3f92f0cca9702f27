package geo

import (
	"fmt"
	"math"

	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/wroge/wgs84"
)

// Regions and recorded poses are stored as simplefeatures geometries so the
// gorm models can persist them as WKB on both SQLite and Postgres.

// ToGeomPoint converts a ground-plane point to a 2D geom.Point. Non-finite
// coordinates are rejected.
func ToGeomPoint(p core.Point) (geom.Point, error) {
	point, err := geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Type: geom.DimXY,
	})
	if err != nil {
		return geom.Point{}, fmt.Errorf("%w: point (%g, %g): %v", core.ErrDataIntegrity, p.X, p.Y, err)
	}
	return point, nil
}

// FromGeomPoint converts a geom.Point back. Empty points map to the origin.
func FromGeomPoint(p geom.Point) core.Point {
	xy, ok := p.XY()
	if !ok {
		return core.Point{}
	}
	return core.Point{X: xy.X, Y: xy.Y}
}

// RegionToPolygon builds a closed geom.Polygon from a region's vertices.
// The ring is not checked for simplicity; see ValidateRegion.
func RegionToPolygon(r core.Region) (geom.Polygon, error) {
	if len(r.Vertices) == 0 {
		return geom.Polygon{}, nil
	}
	flat := make([]float64, 0, (len(r.Vertices)+1)*2)
	for _, v := range r.Vertices {
		flat = append(flat, v.X, v.Y)
	}
	if first, last := r.Vertices[0], r.Vertices[len(r.Vertices)-1]; first != last {
		flat = append(flat, first.X, first.Y)
	}
	ring, err := geom.NewLineString(geom.NewSequence(flat, geom.DimXY), geom.DisableAllValidations)
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("region %q ring: %w", r.Name, err)
	}
	poly, err := geom.NewPolygon([]geom.LineString{ring}, geom.DisableAllValidations)
	if err != nil {
		return geom.Polygon{}, fmt.Errorf("region %q polygon: %w", r.Name, err)
	}
	return poly, nil
}

// PolygonToRegion extracts the exterior ring of poly as an open vertex list.
func PolygonToRegion(name string, poly geom.Polygon) core.Region {
	seq := poly.ExteriorRing().Coordinates()
	n := seq.Length()
	if n > 1 && seq.GetXY(0) == seq.GetXY(n-1) {
		n--
	}
	verts := make([]core.Point, n)
	for i := 0; i < n; i++ {
		xy := seq.GetXY(i)
		verts[i] = core.Point{X: xy.X, Y: xy.Y}
	}
	return core.Region{Name: name, Vertices: verts}
}

// ValidateRegion rejects regions that are not simple polygons with at least
// three distinct vertices.
func ValidateRegion(r core.Region) error {
	if r.Name == "" {
		return fmt.Errorf("%w: region has no name", core.ErrConfiguration)
	}
	if len(r.Vertices) < 3 {
		return fmt.Errorf("%w: region %q needs at least 3 vertices, got %d", core.ErrConfiguration, r.Name, len(r.Vertices))
	}
	poly, err := RegionToPolygon(r)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfiguration, err)
	}
	if _, err := geom.NewPolygon(poly.DumpRings()); err != nil {
		return fmt.Errorf("%w: region %q: %v", core.ErrConfiguration, r.Name, err)
	}
	return nil
}

// RegionCentroid returns the area centroid of the region, reporting false
// when the region encloses no area.
func RegionCentroid(r core.Region) (core.Point, bool) {
	poly, err := RegionToPolygon(r)
	if err != nil {
		return core.Point{}, false
	}
	c := FromGeomPoint(poly.Centroid())
	// zero-area rings yield NaN
	if math.IsNaN(c.X) || math.IsNaN(c.Y) || poly.IsEmpty() {
		return core.Point{}, false
	}
	return c, true
}

// ProjectWGS84 converts a longitude/latitude pair (EPSG:4326) into
// EPSG:3857 metres, the ground plane used by the simulation.
func ProjectWGS84(longitude, latitude float64) core.Point {
	epsg := wgs84.EPSG()
	f := epsg.Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return core.Point{X: x, Y: y}
}
