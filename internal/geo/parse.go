package geo

import (
	"encoding/json"
	"fmt"

	"github.com/rigtwin/twin/pkg/core"
)

// ParsePolygon parses a JSON array of coordinates into region vertices.
// Input format: "[[x1,y1],[x2,y2],...]"
func ParsePolygon(input string) ([]core.Point, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return nil, fmt.Errorf("failed to parse polygon JSON: %w", err)
	}

	if len(coords) < 3 {
		return nil, fmt.Errorf("polygon must have at least 3 points, got %d", len(coords))
	}

	verts := make([]core.Point, len(coords))
	for i, coord := range coords {
		if len(coord) < 2 {
			return nil, fmt.Errorf("coordinate %d has insufficient values", i)
		}
		verts[i] = core.Point{X: coord[0], Y: coord[1]}
	}

	return verts, nil
}

// ProjectVertices converts longitude/latitude vertices into local metres.
func ProjectVertices(lonLat []core.Point) []core.Point {
	out := make([]core.Point, len(lonLat))
	for i, p := range lonLat {
		out[i] = ProjectWGS84(p.X, p.Y)
	}
	return out
}
