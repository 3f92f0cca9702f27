package sensor

import (
	"math"

	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/pkg/core"
)

// Body is a detectable shape in the scene: a circle when Polygon is empty,
// otherwise the polygon.
type Body struct {
	ID      string       `json:"id" mapstructure:"id"`
	Name    string       `json:"name" mapstructure:"name"`
	Center  core.Point   `json:"center" mapstructure:"center"`
	Radius  float64      `json:"radius" mapstructure:"radius"`
	Polygon []core.Point `json:"polygon,omitempty" mapstructure:"polygon"`
}

// IsCircle reports whether the body is a circle.
func (b Body) IsCircle() bool { return len(b.Polygon) == 0 }

// ClosestPoint returns the point of the body nearest to p.
func (b Body) ClosestPoint(p core.Point) core.Point {
	if !b.IsCircle() {
		return geo.ClosestPointOnPolygon(p, b.Polygon)
	}
	d := geo.Distance(b.Center, p)
	if d <= b.Radius {
		return p
	}
	f := b.Radius / d
	return core.Point{
		X: b.Center.X + (p.X-b.Center.X)*f,
		Y: b.Center.Y + (p.Y-b.Center.Y)*f,
	}
}

// RayHit returns the distance along the ray from origin in direction angle
// to the first point of the body, or false if the ray misses.
func (b Body) RayHit(origin core.Point, angle float64) (float64, bool) {
	dx, dy := math.Cos(angle), math.Sin(angle)
	if b.IsCircle() {
		return rayCircle(origin, dx, dy, b.Center, b.Radius)
	}
	best, hit := math.Inf(1), false
	for i := range b.Polygon {
		a, c := b.Polygon[i], b.Polygon[(i+1)%len(b.Polygon)]
		if t, ok := raySegment(origin, dx, dy, a, c); ok && t < best {
			best, hit = t, true
		}
	}
	return best, hit
}

func rayCircle(o core.Point, dx, dy float64, c core.Point, r float64) (float64, bool) {
	fx, fy := o.X-c.X, o.Y-c.Y
	b := fx*dx + fy*dy
	disc := b*b - (fx*fx + fy*fy - r*r)
	if disc < 0 {
		return 0, false
	}
	sq := math.Sqrt(disc)
	if t := -b - sq; t >= 0 {
		return t, true
	}
	if t := -b + sq; t >= 0 {
		return 0, true // origin inside the circle
	}
	return 0, false
}

func raySegment(o core.Point, dx, dy float64, a, b core.Point) (float64, bool) {
	ex, ey := b.X-a.X, b.Y-a.Y
	den := dx*ey - dy*ex
	if den == 0 {
		return 0, false
	}
	wx, wy := a.X-o.X, a.Y-o.Y
	t := (wx*ey - wy*ex) / den
	u := (wx*dy - wy*dx) / den
	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}
