package service

import (
	"context"
	"sync/atomic"
	"time"

	"proof_of_heat"
	"proof_of_heat/internal/logger"
	"proof_of_heat/internal/repository"
)

const (
	defaultRecorderQueueSize = 256

	// Grace period for draining queued snapshots on shutdown.
	recorderDrainTimeout = 2 * time.Second
)

// Recorder appends history snapshots asynchronously. Producers hand
// snapshots over without waiting on storage: a full queue drops the
// snapshot and counts it, and a storage failure is logged but never
// fails the poll or command that produced the snapshot.
type Recorder struct {
	repo    repository.HistoryRepo
	log     *logger.Logger
	queue   chan proof_of_heat.HistorySnapshot
	dropped atomic.Uint64
}

func NewRecorder(repo repository.HistoryRepo, log *logger.Logger, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultRecorderQueueSize
	}
	return &Recorder{
		repo:  repo,
		log:   log,
		queue: make(chan proof_of_heat.HistorySnapshot, queueSize),
	}
}

// Record enqueues a snapshot without blocking. Under sustained
// overload snapshots are dropped; history is telemetry, not the system
// of record for current state.
func (r *Recorder) Record(s proof_of_heat.HistorySnapshot) {
	select {
	case r.queue <- s:
	default:
		n := r.dropped.Add(1)
		r.log.Warnw("history_snapshot_dropped", "device", s.DeviceID, "dropped_total", n)
	}
}

// Dropped reports how many snapshots were discarded on a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Run drains the queue until ctx is canceled, then flushes what is
// left within a short grace period.
func (r *Recorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case s := <-r.queue:
			r.append(ctx, s)
		}
	}
}

func (r *Recorder) append(ctx context.Context, s proof_of_heat.HistorySnapshot) {
	if err := r.repo.Append(ctx, s); err != nil {
		r.log.Errorw("history_write_failed", "device", s.DeviceID, "snapshot", s.ID, "err", err)
	}
}

// drain flushes snapshots still queued at shutdown.
func (r *Recorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), recorderDrainTimeout)
	defer cancel()
	for {
		select {
		case s := <-r.queue:
			r.append(ctx, s)
		default:
			return
		}
	}
}
