package vehicle

import (
	"math"
	"testing"

	"github.com/rigtwin/twin/internal/actuation"
	"github.com/rigtwin/twin/internal/kinematics"
	"github.com/rigtwin/twin/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		ID:       "rig1",
		Geometry: core.RawGeometry{L1: 5, L1C: 0.5, L2: 8, TractorWidth: 2.5, TrailerWidth: 2.6},
	}
}

func TestNew(t *testing.T) {
	v, err := New(testConfig())
	require.NoError(t, err)

	assert.Equal(t, "rig1", v.ID())
	assert.Equal(t, "rig1", v.Name())
	assert.Equal(t, actuation.NameController, v.Strategy().Name())
	assert.Equal(t, kinematics.SourceActuation, v.Source())
	assert.Equal(t, 1.0, v.Geometry().Scale)
	assert.Equal(t, 5.0, v.State().X0)
	assert.True(t, v.OwnsBody("rig1/trailer"))
	assert.False(t, v.OwnsBody("rig2/trailer"))
}

func TestNew_Invalid(t *testing.T) {
	cfg := testConfig()
	cfg.ID = ""
	_, err := New(cfg)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	cfg = testConfig()
	cfg.Geometry.L2 = 0
	_, err = New(cfg)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	cfg = testConfig()
	cfg.Source = "sonar"
	_, err = New(cfg)
	assert.ErrorIs(t, err, core.ErrConfiguration)

	cfg = testConfig()
	cfg.Strategy = "autopilot"
	_, err = New(cfg)
	assert.ErrorIs(t, err, core.ErrConfiguration)
}

// tick mirrors one simulation step for a single vehicle.
func tick(v *Vehicle, s actuation.Strategy, dt float64) core.ActuationSample {
	in := v.Input(s, dt)
	v.Apply(in, dt)
	return in
}

func TestTick_Braking(t *testing.T) {
	v, err := New(testConfig())
	require.NoError(t, err)
	v.SetActuation(10, 0)

	applied := tick(v, nil, 0.1)
	assert.Equal(t, 10.0, applied.Velocity)
	assert.InDelta(t, 1.0, v.State().X1, 1e-12)

	v.SetBraking(true)
	applied = tick(v, nil, 0.1)
	assert.Zero(t, applied.Velocity)
	assert.InDelta(t, 1.0, v.State().X1, 1e-12)
	assert.True(t, v.Snapshot().Braking)
}

func TestTick_ExplicitStrategy(t *testing.T) {
	v, err := New(testConfig())
	require.NoError(t, err)

	tick(v, &actuation.Mock{Sample: core.ActuationSample{Velocity: -2}}, 0.5)
	assert.InDelta(t, -1.0, v.State().X1, 1e-12)
	assert.Equal(t, actuation.NameController, v.Strategy().Name())
}

func TestInput_MotionCaptureReportsObservedMotion(t *testing.T) {
	v, err := New(testConfig())
	require.NoError(t, err)
	v.SetActuation(3, 0.2)
	v.SetSource(kinematics.SourceMotionCapture)
	v.SetBraking(true)

	assert.Equal(t, core.ActuationSample{}, tick(v, nil, 0.1), "no capture yet")

	v.SetRawPose(core.CapturePose{Position: core.Position3D{Z: 0.5}}, core.CapturePose{Position: core.Position3D{Z: -4}})
	tick(v, nil, 0.1)
	in := v.Input(nil, 0.1)
	assert.InDelta(t, 5, in.Velocity, 1e-9)
	assert.InDelta(t, v.State().Delta, in.SteerAngle, 1e-12)
}

func TestSetPositionAndAngles(t *testing.T) {
	v, err := New(testConfig())
	require.NoError(t, err)

	v.SetPosition(3, 4, 90, 45)
	p := v.Pose()
	assert.Equal(t, 3.0, p.X1)
	assert.Equal(t, 4.0, p.Y1)
	assert.InDelta(t, math.Pi/2, p.Psi1, 1e-12)
	assert.InDelta(t, math.Pi/4, p.Psi2, 1e-12)

	v.SetTractorAngle(-90, 0)
	v.SetTrailerAngle(45, 450)
	tick(v, nil, 0.1)
	p = v.Pose()
	assert.InDelta(t, 0, p.Psi1, 1e-12)
	assert.InDelta(t, math.Pi/2, p.Psi2, 1e-12)
}

func TestSelectStrategy(t *testing.T) {
	v, err := New(testConfig())
	require.NoError(t, err)

	require.NoError(t, v.SelectStrategy(actuation.NameKeyboard))
	v.Strategies().Keyboard.SetKeys(actuation.KeyForward)
	tick(v, nil, 1)
	assert.InDelta(t, actuation.DefaultKeyboardConfig.ForwardSpeed, v.State().X1, 1e-12)

	assert.ErrorIs(t, v.SelectStrategy("nope"), core.ErrConfiguration)
	assert.ErrorIs(t, v.SetStrategy(nil), core.ErrConfiguration)
	assert.Equal(t, actuation.NameKeyboard, v.Snapshot().Strategy)
}

func TestFootprints(t *testing.T) {
	v, err := New(testConfig())
	require.NoError(t, err)

	tractor := v.TractorBox()
	assert.Equal(t, core.Point{X: 5, Y: 1.25}, tractor[0])
	trailer := v.TrailerBox()
	assert.Equal(t, core.Point{X: -7.5, Y: -1.3}, trailer[2])
}
