package handlers

import (
	"context"

	"proof_of_heat"
	"proof_of_heat/internal/service"
)

// ---- Service Mocks ----

type mockControl struct {
	state proof_of_heat.DeviceState
	err   error

	setModeCalls    int
	lastMode        proof_of_heat.Mode
	setTargetCalls  int
	lastTargetC     float64
	startCalls      int
	stopCalls       int
	powerLimitCalls int
	lastWatts       float64
	lastDeviceID    string
}

func (m *mockControl) SetMode(ctx context.Context, deviceID string, mode proof_of_heat.Mode) (proof_of_heat.DeviceState, error) {
	m.setModeCalls++
	m.lastDeviceID = deviceID
	m.lastMode = mode
	return m.state, m.err
}

func (m *mockControl) SetTargetTemperature(ctx context.Context, deviceID string, celsius float64) (proof_of_heat.DeviceState, error) {
	m.setTargetCalls++
	m.lastDeviceID = deviceID
	m.lastTargetC = celsius
	return m.state, m.err
}

func (m *mockControl) Start(ctx context.Context, deviceID string) (proof_of_heat.DeviceState, error) {
	m.startCalls++
	m.lastDeviceID = deviceID
	return m.state, m.err
}

func (m *mockControl) Stop(ctx context.Context, deviceID string) (proof_of_heat.DeviceState, error) {
	m.stopCalls++
	m.lastDeviceID = deviceID
	return m.state, m.err
}

func (m *mockControl) SetPowerLimit(ctx context.Context, deviceID string, watts float64) (proof_of_heat.DeviceState, error) {
	m.powerLimitCalls++
	m.lastDeviceID = deviceID
	m.lastWatts = watts
	return m.state, m.err
}

type mockMonitoring struct {
	devices  []service.DeviceInfo
	status   service.DeviceStatus
	statuses []service.DeviceStatus
	err      error

	lastDeviceID string
}

func (m *mockMonitoring) Devices(ctx context.Context) []service.DeviceInfo {
	return m.devices
}

func (m *mockMonitoring) Status(ctx context.Context, deviceID string) (service.DeviceStatus, error) {
	m.lastDeviceID = deviceID
	return m.status, m.err
}

func (m *mockMonitoring) StatusAll(ctx context.Context) []service.DeviceStatus {
	return m.statuses
}

type mockHistory struct {
	snapshots  []proof_of_heat.HistorySnapshot
	err        error
	lastFilter service.HistoryFilter
}

func (m *mockHistory) List(ctx context.Context, f service.HistoryFilter) ([]proof_of_heat.HistorySnapshot, error) {
	m.lastFilter = f
	return m.snapshots, m.err
}
