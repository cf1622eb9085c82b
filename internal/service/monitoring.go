package service

import (
	"context"

	"proof_of_heat"
	"proof_of_heat/internal/registry"
)

// MonitoringService serves lock-free snapshot reads: it only touches
// published DeviceState values and never waits on a device slot.
type MonitoringService struct {
	reg *registry.Registry
}

func NewMonitoringService(reg *registry.Registry) *MonitoringService {
	return &MonitoringService{reg: reg}
}

// Devices lists the registered fleet.
func (s *MonitoringService) Devices(ctx context.Context) []DeviceInfo {
	devices := s.reg.List()
	out := make([]DeviceInfo, 0, len(devices))
	for _, d := range devices {
		out = append(out, DeviceInfo{
			ID:              d.ID,
			Kind:            d.Kind,
			RefreshInterval: d.RefreshInterval,
		})
	}
	return out
}

// Status returns the latest snapshot of one device.
func (s *MonitoringService) Status(ctx context.Context, deviceID string) (DeviceStatus, error) {
	st, err := s.reg.ReadState(deviceID)
	if err != nil {
		return DeviceStatus{}, err
	}
	dev, err := s.reg.Get(deviceID)
	if err != nil {
		return DeviceStatus{}, err
	}
	return statusOf(dev, st), nil
}

// StatusAll returns the latest snapshots of the whole fleet.
func (s *MonitoringService) StatusAll(ctx context.Context) []DeviceStatus {
	devices := s.reg.List()
	states := s.reg.ReadAll()
	out := make([]DeviceStatus, 0, len(states))
	for i, st := range states {
		out = append(out, statusOf(devices[i], st))
	}
	return out
}

func statusOf(dev registry.Device, st proof_of_heat.DeviceState) DeviceStatus {
	return DeviceStatus{
		DeviceState: st,
		Kind:        dev.Kind,
		ModeLabel:   st.Mode.Label(),
		Stale:       st.Stale(),
	}
}
