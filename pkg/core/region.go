// pkg/core/region.go
package core

// Region is a named ground-plane polygon used for occupancy queries.
// The vertex list is not closed: the last vertex connects back to the first.
type Region struct {
	Name     string  `json:"name"`
	Vertices []Point `json:"vertices"`
}

// RegionTransition is emitted when a vehicle enters or leaves a region.
type RegionTransition struct {
	VehicleID string `json:"vehicleId"`
	Region    string `json:"region"`
	Entered   bool   `json:"entered"`
}
