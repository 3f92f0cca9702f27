// pkg/core/errors.go
package core

import "errors"

var (
	// ErrConfiguration marks missing or invalid geometry, config or dependencies.
	// The operation is aborted before any state changes.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidOperation marks a request that is not allowed in the current state,
	// such as starting a recording twice. Prior state is preserved.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrDataIntegrity marks a malformed persisted path.
	ErrDataIntegrity = errors.New("data integrity error")

	// ErrUnknownVehicle is returned when a command names a vehicle that is not registered.
	ErrUnknownVehicle = errors.New("unknown vehicle")

	// ErrPathNotFound is returned by storage backends for missing paths.
	ErrPathNotFound = errors.New("path not found")
)
