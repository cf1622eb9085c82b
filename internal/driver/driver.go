package driver

import (
	"context"

	"proof_of_heat"
)

// Driver is the capability contract implemented once per device kind.
// All operations may perform network I/O and none are assumed
// idempotent at the protocol level, so callers must not retry blindly.
type Driver interface {
	// Poll fetches a fresh Reading from the device.
	Poll(ctx context.Context) (proof_of_heat.Reading, error)

	// SetMode applies an operating mode on the device.
	SetMode(ctx context.Context, mode proof_of_heat.Mode) error

	// SetTargetTemperature applies a target setpoint in Celsius.
	SetTargetTemperature(ctx context.Context, celsius float64) error

	// Start powers the device on.
	Start(ctx context.Context) error

	// Stop powers the device off.
	Stop(ctx context.Context) error

	// SetPowerLimit caps the device's power draw in watts.
	SetPowerLimit(ctx context.Context, watts float64) error
}
