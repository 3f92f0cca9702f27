package geo

import (
	"math"

	"github.com/rigtwin/twin/pkg/core"
)

// PointInPolygon reports whether p lies inside poly using the even-odd rule.
// The polygon is implicitly closed and may be wound either way. Points exactly
// on an edge follow the half-open convention of the crossing test: for an
// axis-aligned box the lower and left edges count as inside, the upper and
// right edges as outside.
func PointInPolygon(p core.Point, poly []core.Point) bool {
	if len(poly) < 3 {
		return false
	}
	inside := false
	for i := 0; i < len(poly); i++ {
		p0, p1 := poly[i], poly[(i+1)%len(poly)]
		if (p0.Y <= p.Y && p.Y < p1.Y) || (p1.Y <= p.Y && p.Y < p0.Y) {
			x := p0.X + (p.Y-p0.Y)*(p1.X-p0.X)/(p1.Y-p0.Y)
			if x > p.X {
				inside = !inside
			}
		}
	}
	return inside
}

// BoundingBoxInPolygon reports whether any corner of box is inside poly.
//
// This is deliberately an approximation: a box that crosses the polygon
// without any of its corners inside it is reported as outside.
func BoundingBoxInPolygon(box [4]core.Point, poly []core.Point) bool {
	for _, c := range box {
		if PointInPolygon(c, poly) {
			return true
		}
	}
	return false
}

// OrientedBoundingBox returns the footprint corners of a rig body spanning the
// longitudinal reference points front and rear, offset by halfWidth on each
// side along the lateral axis of heading. Corner order is front-left,
// front-right, rear-right, rear-left.
func OrientedBoundingBox(front, rear core.Point, halfWidth, heading float64) [4]core.Point {
	// lateral unit vector, pointing left of the heading
	lx, ly := -math.Sin(heading)*halfWidth, math.Cos(heading)*halfWidth
	return [4]core.Point{
		{X: front.X + lx, Y: front.Y + ly},
		{X: front.X - lx, Y: front.Y - ly},
		{X: rear.X - lx, Y: rear.Y - ly},
		{X: rear.X + lx, Y: rear.Y + ly},
	}
}

// TractorBox is the tractor footprint between front and rear axle.
func TractorBox(s core.VehicleState, g core.VehicleGeometry) [4]core.Point {
	return OrientedBoundingBox(s.FrontAxle(), s.RearAxle(), g.TractorWidth/2, s.Psi1)
}

// TrailerBox is the trailer footprint between fifth wheel and trailer axle.
func TrailerBox(s core.VehicleState, g core.VehicleGeometry) [4]core.Point {
	return OrientedBoundingBox(s.FifthWheel(), s.TrailerAxle(), g.TrailerWidth/2, s.Psi2)
}

// ClosestPointOnPolygon returns the point of poly's boundary or interior
// closest to p. If p is inside the polygon, p itself is returned.
func ClosestPointOnPolygon(p core.Point, poly []core.Point) core.Point {
	if len(poly) == 0 || PointInPolygon(p, poly) {
		return p
	}
	best := poly[0]
	bestD := math.Inf(1)
	for i := range poly {
		c := ClosestPointOnSegment(p, poly[i], poly[(i+1)%len(poly)])
		if d := Distance(p, c); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

// ClosestPointOnSegment projects p onto the segment a-b.
func ClosestPointOnSegment(p, a, b core.Point) core.Point {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return a
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return core.Point{X: a.X + t*dx, Y: a.Y + t*dy}
}

// Distance is the euclidean distance between two points.
func Distance(a, b core.Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}
