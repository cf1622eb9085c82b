package service

import (
	"context"
	"time"

	"proof_of_heat"
	"proof_of_heat/internal/logger"
	"proof_of_heat/internal/registry"
	"proof_of_heat/internal/repository"
)

// Control exposes the serialized write commands. Each call validates
// its input before taking any lock, executes exactly one driver call
// under the device's exclusive slot, and publishes the confirmed state.
type Control interface {
	SetMode(ctx context.Context, deviceID string, mode proof_of_heat.Mode) (proof_of_heat.DeviceState, error)
	SetTargetTemperature(ctx context.Context, deviceID string, celsius float64) (proof_of_heat.DeviceState, error)
	Start(ctx context.Context, deviceID string) (proof_of_heat.DeviceState, error)
	Stop(ctx context.Context, deviceID string) (proof_of_heat.DeviceState, error)
	SetPowerLimit(ctx context.Context, deviceID string, watts float64) (proof_of_heat.DeviceState, error)
}

// Monitoring exposes read-only fleet state. Reads never block on
// in-flight polls or commands.
type Monitoring interface {
	Devices(ctx context.Context) []DeviceInfo
	Status(ctx context.Context, deviceID string) (DeviceStatus, error)
	StatusAll(ctx context.Context) []DeviceStatus
}

// History exposes the append-only snapshot log with filtering access.
type History interface {
	List(ctx context.Context, f HistoryFilter) ([]proof_of_heat.HistorySnapshot, error)
}

// DeviceInfo describes a registered device.
type DeviceInfo struct {
	ID              string                   `json:"id"`
	Kind            proof_of_heat.DeviceKind `json:"kind"`
	RefreshInterval time.Duration            `json:"refresh_interval"`
}

// DeviceStatus is the external view of a device snapshot. Stale is set
// when the last poll failed, so callers can tell fresh data from held
// data.
type DeviceStatus struct {
	proof_of_heat.DeviceState
	Kind      proof_of_heat.DeviceKind `json:"kind"`
	ModeLabel string                   `json:"mode_label"`
	Stale     bool                     `json:"stale"`
}

// HistoryFilter selects snapshots by time range and device.
type HistoryFilter struct {
	DeviceID string
	From     time.Time // inclusive; zero means no lower bound
	To       time.Time // inclusive; zero means no upper bound
}

// Bounds are the validation limits applied before any lock is taken.
type Bounds struct {
	MinTargetTempC float64
	MaxTargetTempC float64
	MaxPowerW      float64
}

// Service aggregates all sub-services.
type Service struct {
	Control
	Monitoring
	History
}

// NewService wires the registry, repositories and recorder into
// concrete services.
func NewService(reg *registry.Registry, repos *repository.Repository, rec *Recorder, bounds Bounds, log *logger.Logger) *Service {
	return &Service{
		Control:    NewControlService(reg, rec, bounds, log),
		Monitoring: NewMonitoringService(reg),
		History:    NewHistoryService(repos.History),
	}
}
