// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/rigtwin/twin/internal/geo"
	"github.com/rigtwin/twin/internal/model"
	"github.com/rigtwin/twin/internal/pathcodec"
	"github.com/rigtwin/twin/pkg/core"
	"gorm.io/datatypes"
)

// CoreToPath converts a validated core.ReferencePath to a GORM model.Path.
// The JSON path document becomes the Document column.
func CoreToPath(p *core.ReferencePath) (model.Path, error) {
	if err := p.Validate(); err != nil {
		return model.Path{}, err
	}
	start, err := geo.ToGeomPoint(core.Point{X: p.StartPose.X1, Y: p.StartPose.Y1})
	if err != nil {
		return model.Path{}, fmt.Errorf("start pose: %w", err)
	}
	end, err := geo.ToGeomPoint(core.Point{X: p.EndPose.X1, Y: p.EndPose.Y1})
	if err != nil {
		return model.Path{}, fmt.Errorf("end pose: %w", err)
	}

	doc, err := pathcodec.Marshal(p, pathcodec.FormatJSON)
	if err != nil {
		return model.Path{}, err
	}

	info := p.Info()
	result := model.Path{
		ID:         info.ID,
		Name:       info.Name,
		VehicleID:  info.VehicleID,
		RecordedAt: info.RecordedAt,
		Samples:    info.Samples,
		MaxTime:    info.MaxTime,
		StartPoint: start,
		EndPoint:   end,
		Document:   datatypes.JSON(doc),
	}
	return result, nil
}

// CoreToRegion converts a core.Region to a GORM model.Region. position keeps
// the configured order.
func CoreToRegion(r core.Region, position int) (model.Region, error) {
	if err := geo.ValidateRegion(r); err != nil {
		return model.Region{}, err
	}
	vertices, err := json.Marshal(r.Vertices)
	if err != nil {
		return model.Region{}, fmt.Errorf("failed to marshal vertices: %w", err)
	}

	poly, err := geo.RegionToPolygon(r)
	if err != nil {
		return model.Region{}, err
	}
	return model.Region{
		Name:     r.Name,
		Position: position,
		Vertices: datatypes.JSON(vertices),
		Boundary: poly,
		Centroid: poly.Centroid(),
	}, nil
}
