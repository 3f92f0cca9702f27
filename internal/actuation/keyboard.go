package actuation

import (
	"fmt"
	"math"
	"strings"

	"github.com/rigtwin/twin/pkg/core"
)

// Keys is the set of held driving keys.
type Keys uint8

const (
	KeyForward Keys = 1 << iota
	KeyReverse
	KeyLeft
	KeyRight
)

// ParseKeys reads a held-key string such as "wa" or "forward+left".
// An empty string or "none" releases every key.
func ParseKeys(s string) (Keys, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" || s == "-" {
		return 0, nil
	}
	var k Keys
	if strings.ContainsAny(s, "+,") {
		for _, word := range strings.FieldsFunc(s, func(r rune) bool { return r == '+' || r == ',' }) {
			switch strings.TrimSpace(word) {
			case "forward", "up":
				k |= KeyForward
			case "reverse", "down":
				k |= KeyReverse
			case "left":
				k |= KeyLeft
			case "right":
				k |= KeyRight
			default:
				return 0, fmt.Errorf("unknown key %q", word)
			}
		}
		return k, nil
	}
	for _, r := range s {
		switch r {
		case 'w':
			k |= KeyForward
		case 's':
			k |= KeyReverse
		case 'a':
			k |= KeyLeft
		case 'd':
			k |= KeyRight
		default:
			return 0, fmt.Errorf("unknown key %q", r)
		}
	}
	return k, nil
}

// KeyboardConfig tunes the keyboard strategy.
type KeyboardConfig struct {
	ForwardSpeed float64 `json:"forwardSpeed" mapstructure:"forwardSpeed"` // m/s
	ReverseSpeed float64 `json:"reverseSpeed" mapstructure:"reverseSpeed"` // m/s, positive
	SteerRate    float64 `json:"steerRate" mapstructure:"steerRate"`       // rad/s
	MaxSteer     float64 `json:"maxSteer" mapstructure:"maxSteer"`         // rad
}

// DefaultKeyboardConfig is used for zero-valued fields.
var DefaultKeyboardConfig = KeyboardConfig{
	ForwardSpeed: 5,
	ReverseSpeed: 2,
	SteerRate:    0.5,
	MaxSteer:     0.6,
}

// Keyboard maps held keys to a fixed speed and a ramped steering angle.
type Keyboard struct {
	cfg   KeyboardConfig
	keys  Keys
	steer float64
}

func NewKeyboard(cfg KeyboardConfig) *Keyboard {
	if cfg.ForwardSpeed == 0 {
		cfg.ForwardSpeed = DefaultKeyboardConfig.ForwardSpeed
	}
	if cfg.ReverseSpeed == 0 {
		cfg.ReverseSpeed = DefaultKeyboardConfig.ReverseSpeed
	}
	if cfg.SteerRate == 0 {
		cfg.SteerRate = DefaultKeyboardConfig.SteerRate
	}
	if cfg.MaxSteer == 0 {
		cfg.MaxSteer = DefaultKeyboardConfig.MaxSteer
	}
	return &Keyboard{cfg: cfg}
}

func (k *Keyboard) Name() string { return NameKeyboard }

// SetKeys replaces the held key set.
func (k *Keyboard) SetKeys(keys Keys) { k.keys = keys }

func (k *Keyboard) Input(dt float64) core.ActuationSample {
	var v float64
	switch {
	case k.keys&KeyForward != 0 && k.keys&KeyReverse == 0:
		v = k.cfg.ForwardSpeed
	case k.keys&KeyReverse != 0 && k.keys&KeyForward == 0:
		v = -k.cfg.ReverseSpeed
	}

	switch {
	case k.keys&KeyLeft != 0 && k.keys&KeyRight == 0:
		k.steer += k.cfg.SteerRate * dt
	case k.keys&KeyRight != 0 && k.keys&KeyLeft == 0:
		k.steer -= k.cfg.SteerRate * dt
	default:
		k.steer = 0
	}
	k.steer = math.Max(-k.cfg.MaxSteer, math.Min(k.cfg.MaxSteer, k.steer))

	return core.ActuationSample{Velocity: v, SteerAngle: k.steer}
}
