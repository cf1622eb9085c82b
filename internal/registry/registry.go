package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"proof_of_heat"
	"proof_of_heat/internal/driver"
)

// Device is one configured device instance. Immutable after
// registration; only the driver keeps internal connection state.
type Device struct {
	ID              string
	Kind            proof_of_heat.DeviceKind
	RefreshInterval time.Duration
	CommandTimeout  time.Duration
	Driver          driver.Driver
}

// Mutator inspects the current snapshot and returns the next one.
// Whatever it returns is published, so a mutator that fails a driver
// call can either return cur unchanged (commands) or a copy with
// LastError set (polls). The mutator runs while the device's exclusive
// slot is held.
type Mutator func(ctx context.Context, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error)

// entry pairs a device with its published state and its exclusive slot.
// The slot is a one-token channel: holding the token means holding the
// device's right to call the driver and publish state.
type entry struct {
	device Device
	slot   chan struct{}
	state  atomic.Pointer[proof_of_heat.DeviceState]
}

// Registry owns the configured devices and their latest published
// states. Registration happens once at startup; runtime callers only
// read devices and mutate state through the slot.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds a device with its initial state. It is a startup-time
// operation; registering a duplicate id is an error.
func (r *Registry) Register(d Device, initial proof_of_heat.DeviceState) error {
	if d.ID == "" {
		return fmt.Errorf("register: empty device id")
	}
	if d.Driver == nil {
		return fmt.Errorf("register %q: nil driver", d.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[d.ID]; exists {
		return fmt.Errorf("register %q: already registered", d.ID)
	}

	initial.DeviceID = d.ID
	e := &entry{
		device: d,
		slot:   make(chan struct{}, 1),
	}
	e.state.Store(&initial)
	r.entries[d.ID] = e
	r.order = append(r.order, d.ID)
	return nil
}

// Get resolves a device id.
func (r *Registry) Get(id string) (Device, error) {
	e, err := r.lookup(id)
	if err != nil {
		return Device{}, err
	}
	return e.device, nil
}

// List returns all devices in registration order.
func (r *Registry) List() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].device)
	}
	return out
}

// ReadState returns the latest published snapshot without touching the
// slot: it never blocks on an in-flight poll or command.
func (r *Registry) ReadState(id string) (proof_of_heat.DeviceState, error) {
	e, err := r.lookup(id)
	if err != nil {
		return proof_of_heat.DeviceState{}, err
	}
	return *e.state.Load(), nil
}

// ReadAll returns the latest snapshots of all devices in registration
// order.
func (r *Registry) ReadAll() []proof_of_heat.DeviceState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]proof_of_heat.DeviceState, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.entries[id].state.Load())
	}
	return out
}

// WithState runs fn with exclusive access to the device, waiting up to
// wait for the slot. On timeout it fails with ErrDeviceBusy without
// having run fn. The wait bound covers only slot acquisition; once fn
// starts it runs to completion under the caller's ctx.
func (r *Registry) WithState(ctx context.Context, id string, wait time.Duration, fn Mutator) (proof_of_heat.DeviceState, error) {
	e, err := r.lookup(id)
	if err != nil {
		return proof_of_heat.DeviceState{}, err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case e.slot <- struct{}{}:
	case <-timer.C:
		return proof_of_heat.DeviceState{}, fmt.Errorf("%w: %s: slot not acquired within %s", proof_of_heat.ErrDeviceBusy, id, wait)
	case <-ctx.Done():
		return proof_of_heat.DeviceState{}, ctx.Err()
	}
	defer func() { <-e.slot }()

	return r.apply(ctx, e, fn)
}

// TryWithState is the non-blocking variant used by polls: if the slot
// is held it reports ok=false and runs nothing, so polls skip rather
// than queue.
func (r *Registry) TryWithState(ctx context.Context, id string, fn Mutator) (proof_of_heat.DeviceState, bool, error) {
	e, err := r.lookup(id)
	if err != nil {
		return proof_of_heat.DeviceState{}, false, err
	}

	select {
	case e.slot <- struct{}{}:
	default:
		return proof_of_heat.DeviceState{}, false, nil
	}
	defer func() { <-e.slot }()

	st, err := r.apply(ctx, e, fn)
	return st, true, err
}

// apply runs the mutator and publishes the state it returns. Publishing
// swaps the whole pointer, so readers never observe a half-updated
// snapshot.
func (r *Registry) apply(ctx context.Context, e *entry, fn Mutator) (proof_of_heat.DeviceState, error) {
	next, err := fn(ctx, *e.state.Load())
	next.DeviceID = e.device.ID
	e.state.Store(&next)
	return next, err
}

func (r *Registry) lookup(id string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", proof_of_heat.ErrUnknownDevice, id)
	}
	return e, nil
}
