package actuation

import (
	"math"
	"sync"

	"github.com/rigtwin/twin/pkg/core"
)

// Mock returns a settable constant sample.
type Mock struct {
	Sample core.ActuationSample
}

func (m *Mock) Name() string { return NameMock }

func (m *Mock) Input(float64) core.ActuationSample { return m.Sample }

// Controller passes through the last sample received from an external feed.
// In rate mode the second component is a steering rate in rad/s that is
// integrated into the steering angle and clamped to MaxSteer.
type Controller struct {
	RateMode bool
	MaxSteer float64

	mu       sync.Mutex
	velocity float64
	value    float64
	steer    float64
}

func (c *Controller) Name() string { return NameController }

// Set stores the latest velocity and steer (angle or rate) value.
func (c *Controller) Set(velocity, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.velocity = velocity
	c.value = value
}

func (c *Controller) Input(dt float64) core.ActuationSample {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.RateMode {
		return core.ActuationSample{Velocity: c.velocity, SteerAngle: c.value}
	}
	c.steer += c.value * dt
	if c.MaxSteer > 0 {
		c.steer = math.Max(-c.MaxSteer, math.Min(c.MaxSteer, c.steer))
	}
	return core.ActuationSample{Velocity: c.velocity, SteerAngle: c.steer}
}
