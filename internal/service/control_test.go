package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"proof_of_heat"
	"proof_of_heat/internal/logger"
	"proof_of_heat/internal/registry"
)

// --- test doubles ---

type fakeDriver struct {
	mu sync.Mutex

	cmdErr  error
	pollErr error
	reading proof_of_heat.Reading

	setModeCalls   int
	setTargetCalls int
	startCalls     int
	stopCalls      int
	powerCalls     int
	pollCalls      int

	lastMode   proof_of_heat.Mode
	lastTarget float64
	lastWatts  float64
}

func (d *fakeDriver) Poll(ctx context.Context) (proof_of_heat.Reading, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pollCalls++
	return d.reading, d.pollErr
}

func (d *fakeDriver) SetMode(ctx context.Context, mode proof_of_heat.Mode) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setModeCalls++
	d.lastMode = mode
	return d.cmdErr
}

func (d *fakeDriver) SetTargetTemperature(ctx context.Context, celsius float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setTargetCalls++
	d.lastTarget = celsius
	return d.cmdErr
}

func (d *fakeDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.startCalls++
	return d.cmdErr
}

func (d *fakeDriver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopCalls++
	return d.cmdErr
}

func (d *fakeDriver) SetPowerLimit(ctx context.Context, watts float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.powerCalls++
	d.lastWatts = watts
	return d.cmdErr
}

type captureRecorder struct {
	mu        sync.Mutex
	snapshots []proof_of_heat.HistorySnapshot
}

func (r *captureRecorder) Record(s proof_of_heat.HistorySnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *captureRecorder) all() []proof_of_heat.HistorySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]proof_of_heat.HistorySnapshot(nil), r.snapshots...)
}

func testBounds() Bounds {
	return Bounds{MinTargetTempC: 10, MaxTargetTempC: 30, MaxPowerW: 3500}
}

func newControlEnv(t *testing.T) (*ControlService, *registry.Registry, *fakeDriver, *captureRecorder) {
	t.Helper()
	drv := &fakeDriver{}
	reg := registry.New()
	err := reg.Register(registry.Device{
		ID:             "miner-1",
		Kind:           proof_of_heat.KindMiner,
		CommandTimeout: 50 * time.Millisecond,
		Driver:         drv,
	}, proof_of_heat.DeviceState{Mode: proof_of_heat.ModeComfort, TargetTempC: 22})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	rec := &captureRecorder{}
	svc := NewControlService(reg, rec, testBounds(), logger.Get(logger.ErrorLevel))
	return svc, reg, drv, rec
}

// --- tests ---

func TestSetMode_Success(t *testing.T) {
	svc, reg, drv, rec := newControlEnv(t)

	st, err := svc.SetMode(context.Background(), "miner-1", proof_of_heat.ModeEco)
	if err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if st.Mode != proof_of_heat.ModeEco {
		t.Fatalf("expected eco, got %s", st.Mode)
	}
	if drv.setModeCalls != 1 || drv.lastMode != proof_of_heat.ModeEco {
		t.Fatalf("driver call: calls=%d mode=%s", drv.setModeCalls, drv.lastMode)
	}

	published, _ := reg.ReadState("miner-1")
	if published.Mode != proof_of_heat.ModeEco {
		t.Fatalf("published state not updated: %+v", published)
	}

	snaps := rec.all()
	if len(snaps) != 1 {
		t.Fatalf("expected exactly one snapshot, got %d", len(snaps))
	}
	if snaps[0].DeviceID != "miner-1" || snaps[0].Mode != proof_of_heat.ModeEco || snaps[0].TargetTempC != 22 {
		t.Fatalf("snapshot fields: %+v", snaps[0])
	}
}

func TestSetMode_InvalidModeRejectedBeforeDriver(t *testing.T) {
	svc, reg, drv, rec := newControlEnv(t)

	_, err := svc.SetMode(context.Background(), "miner-1", proof_of_heat.Mode("turbo"))
	if !errors.Is(err, proof_of_heat.ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if drv.setModeCalls != 0 {
		t.Fatalf("driver must not be called for invalid input")
	}
	st, _ := reg.ReadState("miner-1")
	if st.Mode != proof_of_heat.ModeComfort {
		t.Fatalf("state must be unchanged, got %+v", st)
	}
	if len(rec.all()) != 0 {
		t.Fatalf("no snapshot for rejected input")
	}
}

func TestSetMode_Idempotent(t *testing.T) {
	svc, reg, _, rec := newControlEnv(t)

	for i := 0; i < 2; i++ {
		if _, err := svc.SetMode(context.Background(), "miner-1", proof_of_heat.ModeEco); err != nil {
			t.Fatalf("SetMode #%d: %v", i+1, err)
		}
	}
	st, _ := reg.ReadState("miner-1")
	if st.Mode != proof_of_heat.ModeEco {
		t.Fatalf("expected eco after both calls, got %s", st.Mode)
	}
	// Two successful commands, two snapshots.
	if got := len(rec.all()); got != 2 {
		t.Fatalf("expected 2 snapshots, got %d", got)
	}
}

func TestSetMode_DriverErrorLeavesStateUnchanged(t *testing.T) {
	svc, reg, drv, rec := newControlEnv(t)
	drv.cmdErr = proof_of_heat.ErrDeviceUnreachable

	_, err := svc.SetMode(context.Background(), "miner-1", proof_of_heat.ModeOff)
	if !errors.Is(err, proof_of_heat.ErrDeviceUnreachable) {
		t.Fatalf("expected ErrDeviceUnreachable, got %v", err)
	}
	st, _ := reg.ReadState("miner-1")
	if st.Mode != proof_of_heat.ModeComfort {
		t.Fatalf("state must not be published before the ack, got %+v", st)
	}
	if len(rec.all()) != 0 {
		t.Fatalf("failed command must not record")
	}
}

func TestSetTargetTemperature_RangeValidation(t *testing.T) {
	svc, reg, drv, rec := newControlEnv(t)

	for _, bad := range []float64{9.9, 35.0, -5} {
		_, err := svc.SetTargetTemperature(context.Background(), "miner-1", bad)
		if !errors.Is(err, proof_of_heat.ErrInvalidRange) {
			t.Fatalf("target %.1f: expected ErrInvalidRange, got %v", bad, err)
		}
	}
	if drv.setTargetCalls != 0 {
		t.Fatalf("driver must not be called for out-of-range targets")
	}
	st, _ := reg.ReadState("miner-1")
	if st.TargetTempC != 22 {
		t.Fatalf("target must be unchanged, got %.1f", st.TargetTempC)
	}
	if len(rec.all()) != 0 {
		t.Fatalf("no snapshot for rejected input")
	}

	st, err := svc.SetTargetTemperature(context.Background(), "miner-1", 25.5)
	if err != nil {
		t.Fatalf("SetTargetTemperature: %v", err)
	}
	if st.TargetTempC != 25.5 || drv.lastTarget != 25.5 {
		t.Fatalf("target not applied: state=%.1f driver=%.1f", st.TargetTempC, drv.lastTarget)
	}
}

func TestStartStop_ModeTransitions(t *testing.T) {
	svc, _, drv, _ := newControlEnv(t)

	st, err := svc.Stop(context.Background(), "miner-1")
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if st.Mode != proof_of_heat.ModeOff || drv.stopCalls != 1 {
		t.Fatalf("expected off after stop: %+v calls=%d", st, drv.stopCalls)
	}

	st, err = svc.Start(context.Background(), "miner-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if st.Mode != proof_of_heat.ModeComfort || drv.startCalls != 1 {
		t.Fatalf("expected comfort after start from off: %+v calls=%d", st, drv.startCalls)
	}
}

func TestSetPowerLimit_BoundsAndPublish(t *testing.T) {
	svc, reg, drv, _ := newControlEnv(t)

	for _, bad := range []float64{0, -100, 4000} {
		if _, err := svc.SetPowerLimit(context.Background(), "miner-1", bad); !errors.Is(err, proof_of_heat.ErrInvalidRange) {
			t.Fatalf("watts %.0f: expected ErrInvalidRange, got %v", bad, err)
		}
	}
	if drv.powerCalls != 0 {
		t.Fatalf("driver must not be called for out-of-range limits")
	}

	st, err := svc.SetPowerLimit(context.Background(), "miner-1", 2500)
	if err != nil {
		t.Fatalf("SetPowerLimit: %v", err)
	}
	if st.PowerLimitW != 2500 || drv.lastWatts != 2500 {
		t.Fatalf("limit not applied: state=%.0f driver=%.0f", st.PowerLimitW, drv.lastWatts)
	}
	published, _ := reg.ReadState("miner-1")
	if published.PowerLimitW != 2500 {
		t.Fatalf("published state missing limit: %+v", published)
	}
}

func TestCommand_UnknownDevice(t *testing.T) {
	svc, _, _, _ := newControlEnv(t)

	if _, err := svc.SetMode(context.Background(), "nope", proof_of_heat.ModeEco); !errors.Is(err, proof_of_heat.ErrUnknownDevice) {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}

func TestCommand_DeviceBusyWhenSlotHeld(t *testing.T) {
	svc, reg, drv, rec := newControlEnv(t)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = reg.WithState(context.Background(), "miner-1", time.Second, func(ctx context.Context, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error) {
			close(held)
			<-release
			return cur, nil
		})
	}()
	<-held
	defer close(release)

	// CommandTimeout is 50ms in the test device, so this fails fast.
	_, err := svc.SetMode(context.Background(), "miner-1", proof_of_heat.ModeEco)
	if !errors.Is(err, proof_of_heat.ErrDeviceBusy) {
		t.Fatalf("expected ErrDeviceBusy, got %v", err)
	}
	if drv.setModeCalls != 0 {
		t.Fatalf("timed-out command must not have invoked the driver")
	}
	if len(rec.all()) != 0 {
		t.Fatalf("timed-out command must not record")
	}
}

func TestCommands_DifferentDevicesProceedInParallel(t *testing.T) {
	drv1 := &fakeDriver{}
	drv2 := &fakeDriver{}
	reg := registry.New()
	for id, d := range map[string]*fakeDriver{"miner-1": drv1, "miner-2": drv2} {
		err := reg.Register(registry.Device{ID: id, Kind: proof_of_heat.KindMiner, CommandTimeout: 50 * time.Millisecond, Driver: d},
			proof_of_heat.DeviceState{Mode: proof_of_heat.ModeComfort})
		if err != nil {
			t.Fatalf("register %s: %v", id, err)
		}
	}
	rec := &captureRecorder{}
	svc := NewControlService(reg, rec, testBounds(), logger.Get(logger.ErrorLevel))

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = reg.WithState(context.Background(), "miner-1", time.Second, func(ctx context.Context, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error) {
			close(held)
			<-release
			return cur, nil
		})
	}()
	<-held
	defer close(release)

	// miner-2 is not blocked by miner-1's slot.
	if _, err := svc.SetMode(context.Background(), "miner-2", proof_of_heat.ModeEco); err != nil {
		t.Fatalf("miner-2 command blocked by miner-1 slot: %v", err)
	}
	if drv2.setModeCalls != 1 {
		t.Fatalf("expected miner-2 driver call, got %d", drv2.setModeCalls)
	}
}
