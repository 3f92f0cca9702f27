// Package actuation provides the per-tick control input sources of a vehicle.
package actuation

import (
	"fmt"

	"github.com/rigtwin/twin/pkg/core"
)

// Strategy produces the control input for one physics tick.
type Strategy interface {
	Name() string
	Input(dt float64) core.ActuationSample
}

// Names of the selectable strategies.
const (
	NameKeyboard   = "keyboard"
	NameController = "controller"
	NameMock       = "mock"
	NameReplay     = "replay"
)

// Set holds one instance of every selectable strategy for a vehicle so that
// switching between them keeps their internal state.
type Set struct {
	Keyboard   *Keyboard
	Controller *Controller
	Mock       *Mock
}

// NewSet builds the selectable strategies with the given keyboard tuning.
func NewSet(kb KeyboardConfig) *Set {
	return &Set{
		Keyboard:   NewKeyboard(kb),
		Controller: &Controller{},
		Mock:       &Mock{},
	}
}

// Lookup returns the strategy registered under name. Replay strategies are
// bound to a path and cannot be selected by name.
func (s *Set) Lookup(name string) (Strategy, error) {
	switch name {
	case NameKeyboard:
		return s.Keyboard, nil
	case NameController:
		return s.Controller, nil
	case NameMock:
		return s.Mock, nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", core.ErrConfiguration, name)
	}
}
