package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"proof_of_heat"

	"github.com/google/uuid"
)

type HistorySQLite struct {
	db *sql.DB
}

func NewHistorySQLite(db *sql.DB) *HistorySQLite { return &HistorySQLite{db: db} }

const (
	insertHistorySQL = `
		INSERT INTO history (id, ts, device_id, mode, target_c, temp_c, power_w, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectHistorySQL = `SELECT id, ts, device_id, mode, target_c, temp_c, power_w, raw FROM history`

	// SQLite TIMESTAMP format
	sqliteTimeLayout = "2006-01-02 15:04:05"
)

// Append inserts a snapshot. If ID or Timestamp are empty, they're set.
func (r *HistorySQLite) Append(ctx context.Context, s proof_of_heat.HistorySnapshot) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	} else {
		s.Timestamp = s.Timestamp.UTC()
	}

	var rawPtr *string
	if len(s.Reading.Raw) > 0 {
		raw := string(s.Reading.Raw)
		rawPtr = &raw
	}

	_, err := r.db.ExecContext(ctx, insertHistorySQL,
		s.ID,
		s.Timestamp.Format(sqliteTimeLayout),
		s.DeviceID,
		string(s.Mode),
		s.TargetTempC,
		s.Reading.MeasuredTempC,
		s.Reading.PowerWatts,
		rawPtr,
	)
	return err
}

// List returns snapshots filtered by [from, to] (inclusive) and/or
// device id, ordered by timestamp ASC.
func (r *HistorySQLite) List(ctx context.Context, from, to time.Time, deviceID string) ([]proof_of_heat.HistorySnapshot, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, from.UTC().Format(sqliteTimeLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, to.UTC().Format(sqliteTimeLayout))
	}
	if deviceID = strings.TrimSpace(deviceID); deviceID != "" {
		conds = append(conds, "device_id = ?")
		args = append(args, deviceID)
	}

	q := selectHistorySQL
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY ts ASC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]proof_of_heat.HistorySnapshot, 0, 64)
	for rows.Next() {
		var (
			s    proof_of_heat.HistorySnapshot
			mode string
			raw  sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.DeviceID, &mode, &s.TargetTempC, &s.Reading.MeasuredTempC, &s.Reading.PowerWatts, &raw); err != nil {
			return nil, err
		}
		s.Mode = proof_of_heat.Mode(mode)
		s.Timestamp = s.Timestamp.UTC()
		if raw.Valid && raw.String != "" {
			s.Reading.Raw = []byte(raw.String)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
