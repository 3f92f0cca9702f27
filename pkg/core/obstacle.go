// pkg/core/obstacle.go
package core

// ObstacleRecord is one detected object as seen from a vehicle.
type ObstacleRecord struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
	Bearing  float64 `json:"bearing"` // radians from the tractor forward axis, positive to the left
}
