package service

import (
	"context"
	"fmt"
	"time"

	"proof_of_heat"
	"proof_of_heat/internal/logger"
	"proof_of_heat/internal/registry"

	"github.com/google/uuid"
)

// defaultCommandTimeout bounds the wait for the device slot when the
// device config carries no I/O timeout. It bounds only the wait, never
// the driver call itself.
const defaultCommandTimeout = 10 * time.Second

// SnapshotRecorder is what the control path needs from the history
// recorder: a non-blocking handoff.
type SnapshotRecorder interface {
	Record(s proof_of_heat.HistorySnapshot)
}

// ControlService serializes write commands against polls and against
// each other, per device. Commands for different devices proceed fully
// in parallel.
type ControlService struct {
	reg    *registry.Registry
	rec    SnapshotRecorder
	bounds Bounds
	log    *logger.Logger
}

func NewControlService(reg *registry.Registry, rec SnapshotRecorder, bounds Bounds, log *logger.Logger) *ControlService {
	return &ControlService{reg: reg, rec: rec, bounds: bounds, log: log}
}

// SetMode switches the device's operating mode.
func (s *ControlService) SetMode(ctx context.Context, deviceID string, mode proof_of_heat.Mode) (proof_of_heat.DeviceState, error) {
	if !mode.Valid() {
		return proof_of_heat.DeviceState{}, fmt.Errorf("%w: %q", proof_of_heat.ErrInvalidMode, mode)
	}
	return s.command(ctx, deviceID, "set_mode", func(ctx context.Context, d registry.Device, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error) {
		if err := d.Driver.SetMode(ctx, mode); err != nil {
			return cur, err
		}
		next := cur
		next.Mode = mode
		return next, nil
	})
}

// SetTargetTemperature applies a new setpoint after range validation.
func (s *ControlService) SetTargetTemperature(ctx context.Context, deviceID string, celsius float64) (proof_of_heat.DeviceState, error) {
	if celsius < s.bounds.MinTargetTempC || celsius > s.bounds.MaxTargetTempC {
		return proof_of_heat.DeviceState{}, fmt.Errorf("%w: target %.1f outside [%.1f, %.1f]",
			proof_of_heat.ErrInvalidRange, celsius, s.bounds.MinTargetTempC, s.bounds.MaxTargetTempC)
	}
	return s.command(ctx, deviceID, "set_target_temperature", func(ctx context.Context, d registry.Device, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error) {
		if err := d.Driver.SetTargetTemperature(ctx, celsius); err != nil {
			return cur, err
		}
		next := cur
		next.TargetTempC = celsius
		return next, nil
	})
}

// Start powers the device on. A device sitting in "off" comes back in
// comfort mode; otherwise the mode is kept.
func (s *ControlService) Start(ctx context.Context, deviceID string) (proof_of_heat.DeviceState, error) {
	return s.command(ctx, deviceID, "start", func(ctx context.Context, d registry.Device, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error) {
		if err := d.Driver.Start(ctx); err != nil {
			return cur, err
		}
		next := cur
		if next.Mode == proof_of_heat.ModeOff {
			next.Mode = proof_of_heat.ModeComfort
		}
		return next, nil
	})
}

// Stop powers the device off.
func (s *ControlService) Stop(ctx context.Context, deviceID string) (proof_of_heat.DeviceState, error) {
	return s.command(ctx, deviceID, "stop", func(ctx context.Context, d registry.Device, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error) {
		if err := d.Driver.Stop(ctx); err != nil {
			return cur, err
		}
		next := cur
		next.Mode = proof_of_heat.ModeOff
		return next, nil
	})
}

// SetPowerLimit caps the device's draw after range validation.
func (s *ControlService) SetPowerLimit(ctx context.Context, deviceID string, watts float64) (proof_of_heat.DeviceState, error) {
	if watts <= 0 || watts > s.bounds.MaxPowerW {
		return proof_of_heat.DeviceState{}, fmt.Errorf("%w: power limit %.0fW outside (0, %.0f]",
			proof_of_heat.ErrInvalidRange, watts, s.bounds.MaxPowerW)
	}
	return s.command(ctx, deviceID, "set_power_limit", func(ctx context.Context, d registry.Device, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error) {
		if err := d.Driver.SetPowerLimit(ctx, watts); err != nil {
			return cur, err
		}
		next := cur
		next.PowerLimitW = watts
		return next, nil
	})
}

// command runs one driver call under the device's exclusive slot,
// waiting up to the device's command timeout for the slot. The state
// returned by apply is published only after the driver acked, and the
// history snapshot is recorded while the slot is still held.
func (s *ControlService) command(ctx context.Context, deviceID, name string,
	apply func(ctx context.Context, d registry.Device, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error),
) (proof_of_heat.DeviceState, error) {
	dev, err := s.reg.Get(deviceID)
	if err != nil {
		return proof_of_heat.DeviceState{}, err
	}

	wait := dev.CommandTimeout
	if wait <= 0 {
		wait = defaultCommandTimeout
	}

	st, err := s.reg.WithState(ctx, deviceID, wait, func(ctx context.Context, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error) {
		next, err := apply(ctx, dev, cur)
		if err != nil {
			return cur, err
		}
		s.rec.Record(snapshotOf(next))
		return next, nil
	})
	if err != nil {
		s.log.Warnw("command_rejected", "device", deviceID, "command", name, "kind", proof_of_heat.ErrorKind(err), "err", err)
		return st, err
	}
	return st, nil
}

// snapshotOf derives the history record for a command-driven state.
// The reading is the last known one; commands do not measure.
func snapshotOf(st proof_of_heat.DeviceState) proof_of_heat.HistorySnapshot {
	var reading proof_of_heat.Reading
	if st.LastReading != nil {
		reading = *st.LastReading
	}
	return proof_of_heat.HistorySnapshot{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		DeviceID:    st.DeviceID,
		Mode:        st.Mode,
		TargetTempC: st.TargetTempC,
		Reading:     reading,
	}
}
