package kinematics

import (
	"fmt"
	"strings"
)

// Source selects where a vehicle's pose comes from each tick.
type Source int

const (
	// SourceActuation integrates (velocity, steer) samples from the active strategy.
	SourceActuation Source = iota
	// SourceMotionCapture assigns raw captured poses and bypasses integration.
	SourceMotionCapture
)

func (s Source) String() string {
	switch s {
	case SourceActuation:
		return "actuation"
	case SourceMotionCapture:
		return "mocap"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// ParseSource accepts the names produced by Source.String.
func ParseSource(name string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "actuation":
		return SourceActuation, nil
	case "mocap", "motioncapture", "motion-capture":
		return SourceMotionCapture, nil
	default:
		return SourceActuation, fmt.Errorf("unknown kinematics source %q", name)
	}
}
