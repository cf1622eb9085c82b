package scheduler

import (
	"context"
	"sync"
	"time"

	"proof_of_heat"
	"proof_of_heat/internal/logger"
	"proof_of_heat/internal/registry"

	"github.com/google/uuid"
)

// Recorder receives one history snapshot per successful poll. Record
// must not block; the recorder owns its own queueing.
type Recorder interface {
	Record(s proof_of_heat.HistorySnapshot)
}

// Poller runs one independent periodic loop per registered device.
// Loops for different devices are never synchronized to each other.
type Poller struct {
	reg             *registry.Registry
	rec             Recorder
	log             *logger.Logger
	clock           Clock
	defaultInterval time.Duration
}

func New(reg *registry.Registry, rec Recorder, log *logger.Logger, clock Clock, defaultInterval time.Duration) *Poller {
	return &Poller{
		reg:             reg,
		rec:             rec,
		log:             log,
		clock:           clock,
		defaultInterval: defaultInterval,
	}
}

// Run starts one polling goroutine per device and blocks until ctx is
// canceled and all loops have drained.
func (p *Poller) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, d := range p.reg.List() {
		wg.Add(1)
		go func(d registry.Device) {
			defer wg.Done()
			p.pollLoop(ctx, d)
		}(d)
	}
	wg.Wait()
}

func (p *Poller) pollLoop(ctx context.Context, d registry.Device) {
	interval := d.RefreshInterval
	if interval <= 0 {
		interval = p.defaultInterval
	}
	p.log.Infow("polling_scheduled", "device", d.ID, "interval", interval)

	t := p.clock.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C():
			p.PollOnce(ctx, d)
		}
	}
}

// PollOnce attempts a single poll tick. If the device's slot is held
// by an in-flight command the tick is skipped, not queued: the next
// tick retries, trading freshness for a bounded backlog.
func (p *Poller) PollOnce(ctx context.Context, d registry.Device) {
	_, ok, err := p.reg.TryWithState(ctx, d.ID, func(ctx context.Context, cur proof_of_heat.DeviceState) (proof_of_heat.DeviceState, error) {
		reading, pollErr := d.Driver.Poll(ctx)
		now := p.clock.Now().UTC()

		next := cur
		next.LastPollAt = now
		if pollErr != nil {
			// Keep the previous reading: stale but available. The
			// error indicator tells readers the data is old.
			next.LastError = &proof_of_heat.ErrorInfo{
				Kind:    proof_of_heat.ErrorKind(pollErr),
				Message: pollErr.Error(),
				At:      now,
			}
			return next, pollErr
		}

		next.LastReading = &reading
		next.LastError = nil

		// Recorded while the slot is held so per-device history order
		// matches the order operations completed.
		p.rec.Record(proof_of_heat.HistorySnapshot{
			ID:          uuid.NewString(),
			Timestamp:   now,
			DeviceID:    d.ID,
			Mode:        next.Mode,
			TargetTempC: next.TargetTempC,
			Reading:     reading,
		})
		return next, nil
	})

	switch {
	case err != nil && !ok:
		// Lookup failure; devices are never deregistered at runtime so
		// this indicates a wiring bug.
		p.log.Errorw("poll_lookup_failed", "device", d.ID, "err", err)
	case !ok:
		p.log.Debugw("poll_skipped_slot_busy", "device", d.ID)
	case err != nil:
		p.log.Warnw("poll_failed", "device", d.ID, "kind", proof_of_heat.ErrorKind(err), "err", err)
	}
}
