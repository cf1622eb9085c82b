package repository

import (
	"context"
	"database/sql"
	"time"

	"proof_of_heat"
)

// HistoryRepo is the append-only snapshot store. Append is write-once;
// List filters by time range and device id, ordered by timestamp ASC.
type HistoryRepo interface {
	Append(ctx context.Context, s proof_of_heat.HistorySnapshot) error
	List(ctx context.Context, from, to time.Time, deviceID string) ([]proof_of_heat.HistorySnapshot, error)
}

type Repository struct {
	History HistoryRepo
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		History: NewHistorySQLite(db),
	}
}
