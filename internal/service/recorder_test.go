package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"proof_of_heat"
	"proof_of_heat/internal/logger"
)

type fakeHistoryRepo struct {
	mu        sync.Mutex
	appendErr error
	failID    string
	appended  []proof_of_heat.HistorySnapshot
	listed    []proof_of_heat.HistorySnapshot
	listErr   error
	lastFrom  time.Time
	lastTo    time.Time
	lastID    string
}

func (r *fakeHistoryRepo) Append(ctx context.Context, s proof_of_heat.HistorySnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil && (r.failID == "" || r.failID == s.ID) {
		return r.appendErr
	}
	r.appended = append(r.appended, s)
	return nil
}

func (r *fakeHistoryRepo) List(ctx context.Context, from, to time.Time, deviceID string) ([]proof_of_heat.HistorySnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFrom, r.lastTo, r.lastID = from, to, deviceID
	return r.listed, r.listErr
}

func (r *fakeHistoryRepo) appendedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.appended)
}

func (r *fakeHistoryRepo) appendedCopy() []proof_of_heat.HistorySnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]proof_of_heat.HistorySnapshot(nil), r.appended...)
}

func snap(id, device string) proof_of_heat.HistorySnapshot {
	return proof_of_heat.HistorySnapshot{
		ID:        id,
		Timestamp: time.Now().UTC(),
		DeviceID:  device,
		Mode:      proof_of_heat.ModeComfort,
	}
}

func waitForCount(t *testing.T, repo *fakeHistoryRepo, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if repo.appendedCount() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("expected %d appends, got %d", want, repo.appendedCount())
}

func TestRecorder_AppendsInOrder(t *testing.T) {
	repo := &fakeHistoryRepo{}
	rec := NewRecorder(repo, logger.Get(logger.ErrorLevel), 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	for _, id := range []string{"a", "b", "c"} {
		rec.Record(snap(id, "miner-1"))
	}
	waitForCount(t, repo, 3)
	cancel()
	<-done

	got := repo.appendedCopy()
	for i, id := range []string{"a", "b", "c"} {
		if got[i].ID != id {
			t.Fatalf("order broken at %d: %+v", i, got)
		}
	}
}

func TestRecorder_DropsWhenQueueFull(t *testing.T) {
	repo := &fakeHistoryRepo{}
	// No Run goroutine, so the queue never empties.
	rec := NewRecorder(repo, logger.Get(logger.ErrorLevel), 2)

	for i := 0; i < 5; i++ {
		rec.Record(snap("x", "miner-1"))
	}
	if got := rec.Dropped(); got != 3 {
		t.Fatalf("expected 3 drops, got %d", got)
	}
	if repo.appendedCount() != 0 {
		t.Fatalf("nothing should reach storage without Run")
	}
}

func TestRecorder_StorageFailureDoesNotStopTheLoop(t *testing.T) {
	// Only snapshot "a" fails; "b" must still land.
	repo := &fakeHistoryRepo{appendErr: errors.New("disk full"), failID: "a"}
	rec := NewRecorder(repo, logger.Get(logger.ErrorLevel), 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		rec.Run(ctx)
		close(done)
	}()

	rec.Record(snap("a", "miner-1"))
	rec.Record(snap("b", "miner-1"))
	waitForCount(t, repo, 1)
	cancel()
	<-done

	if got := repo.appendedCopy(); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("expected only the non-failing append, got %+v", got)
	}
}

func TestRecorder_DrainsQueueOnShutdown(t *testing.T) {
	repo := &fakeHistoryRepo{}
	rec := NewRecorder(repo, logger.Get(logger.ErrorLevel), 16)

	// Enqueue before the loop starts, then cancel immediately: Run must
	// flush the backlog before returning.
	for _, id := range []string{"a", "b", "c"} {
		rec.Record(snap(id, "miner-1"))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec.Run(ctx)

	if repo.appendedCount() != 3 {
		t.Fatalf("expected backlog flushed on shutdown, got %d", repo.appendedCount())
	}
}
