package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"proof_of_heat"
)

func TestHistoryList_RejectsInvertedRange(t *testing.T) {
	repo := &fakeHistoryRepo{}
	svc := NewHistoryService(repo)

	from := time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if _, err := svc.List(context.Background(), HistoryFilter{From: from, To: to}); !errors.Is(err, errInvalidTimeRange) {
		t.Fatalf("expected errInvalidTimeRange, got %v", err)
	}
}

func TestHistoryList_NormalizesToUTCAndTrimsDeviceID(t *testing.T) {
	repo := &fakeHistoryRepo{listed: []proof_of_heat.HistorySnapshot{{ID: "s1"}}}
	svc := NewHistoryService(repo)

	loc := time.FixedZone("CEST", 2*3600)
	from := time.Date(2026, 8, 1, 14, 0, 0, 0, loc)

	got, err := svc.List(context.Background(), HistoryFilter{From: from, DeviceID: "  miner-1 "})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].ID != "s1" {
		t.Fatalf("snapshots: %+v", got)
	}
	if repo.lastID != "miner-1" {
		t.Fatalf("device id not trimmed: %q", repo.lastID)
	}
	wantFrom := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	if !repo.lastFrom.Equal(wantFrom) || repo.lastFrom.Location() != time.UTC {
		t.Fatalf("from not normalized: %v", repo.lastFrom)
	}
	if !repo.lastTo.IsZero() {
		t.Fatalf("zero To must stay zero, got %v", repo.lastTo)
	}
}

func TestHistoryList_OpenEndedRanges(t *testing.T) {
	repo := &fakeHistoryRepo{}
	svc := NewHistoryService(repo)

	// Both bounds zero is a full-range query, not an error.
	if _, err := svc.List(context.Background(), HistoryFilter{}); err != nil {
		t.Fatalf("open-ended query: %v", err)
	}
}

func TestHistoryList_PropagatesRepoError(t *testing.T) {
	want := errors.New("query failed")
	repo := &fakeHistoryRepo{listErr: want}
	svc := NewHistoryService(repo)

	if _, err := svc.List(context.Background(), HistoryFilter{}); !errors.Is(err, want) {
		t.Fatalf("expected repo error, got %v", err)
	}
}
