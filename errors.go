package proof_of_heat

import "errors"

// Error taxonomy shared by the registry, drivers, services and the
// HTTP layer. Wrap these with fmt.Errorf("...: %w", err) and test with
// errors.Is.
var (
	// ErrUnknownDevice: the requested device id was never registered.
	ErrUnknownDevice = errors.New("unknown device")

	// ErrInvalidMode: mode is not one of comfort|eco|off.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrInvalidRange: temperature or power limit outside configured
	// bounds. Rejected before any lock or I/O.
	ErrInvalidRange = errors.New("value out of range")

	// ErrDeviceBusy: the device's exclusive slot could not be acquired
	// within the command timeout. Retryable by the caller; the core
	// never auto-retries.
	ErrDeviceBusy = errors.New("device busy")

	// ErrDeviceUnreachable: network-level failure talking to the device.
	ErrDeviceUnreachable = errors.New("device unreachable")

	// ErrDeviceProtocol: the device answered but the exchange failed at
	// the protocol level.
	ErrDeviceProtocol = errors.New("device protocol error")

	// ErrDeviceRejected: the device refused the command.
	ErrDeviceRejected = errors.New("device rejected command")
)

// ErrorKind maps a driver error to the stable identifier stored in
// DeviceState.LastError and emitted in logs.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrDeviceUnreachable):
		return "DEVICE_UNREACHABLE"
	case errors.Is(err, ErrDeviceProtocol):
		return "DEVICE_PROTOCOL"
	case errors.Is(err, ErrDeviceRejected):
		return "DEVICE_REJECTED"
	default:
		return "ERROR"
	}
}
