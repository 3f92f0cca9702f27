package model

import (
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Path{},
	&Region{},
}

// Path is a stored reference path. Document holds the complete path
// document; the remaining columns serve the catalogue and spatial lookups.
type Path struct {
	ID         string         `json:"id" gorm:"primaryKey;size:127"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
	Name       string         `json:"name" gorm:"size:127"`
	VehicleID  string         `json:"vehicleId" gorm:"size:127;index:idx_path_vehicle_id"`
	RecordedAt time.Time      `json:"recordedAt" gorm:"index:idx_path_recorded_at"`
	Samples    int            `json:"samples"`
	MaxTime    float64        `json:"maxTime"`
	StartPoint geom.Point     `json:"startPoint"` // tractor rear axle at t=0
	EndPoint   geom.Point     `json:"endPoint"`
	Document   datatypes.JSON `json:"document"`
}

func (*Path) TableName() string {
	return "paths"
}

// Region is a stored occupancy region.
type Region struct {
	Name      string         `json:"name" gorm:"primaryKey;size:127"`
	Position  int            `json:"position"` // configuration order
	UpdatedAt time.Time      `json:"updatedAt"`
	Vertices  datatypes.JSON `json:"vertices"`
	Boundary  geom.Polygon   `json:"boundary"`
	Centroid  geom.Point     `json:"centroid"`
}

func (*Region) TableName() string {
	return "regions"
}
