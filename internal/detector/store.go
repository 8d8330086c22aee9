package detector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/coldguard/pkg/models"
)

// Sink accepts one result per evaluated reading. Records are never updated.
type Sink interface {
	Append(ctx context.Context, r models.HybridResult) (int64, error)
}

var _ Sink = (*ReadingStore)(nil)

// ReadingStore records evaluated readings in the shared SQLite database.
type ReadingStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewReadingStore creates a ReadingStore backed by the given database.
func NewReadingStore(db *sql.DB) *ReadingStore {
	return &ReadingStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Append stores r and returns its arrival sequence number.
func (s *ReadingStore) Append(ctx context.Context, r models.HybridResult) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO temperature_readings (
			recorded_at, temperature, reconstruction_error,
			raw_anomaly, persistence_alert, bounds_breach, hybrid_alert
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.now(), r.Temperature, r.ReconstructionError,
		boolToInt(r.RawAnomaly), boolToInt(r.PersistenceAlert),
		boolToInt(r.BoundsBreach), boolToInt(r.HybridAlert),
	)
	if err != nil {
		return 0, fmt.Errorf("append reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append reading id: %w", err)
	}
	return id, nil
}

// List returns up to limit readings, newest first.
func (s *ReadingStore) List(ctx context.Context, limit int) ([]models.StoredReading, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, recorded_at, temperature, reconstruction_error,
			raw_anomaly, persistence_alert, bounds_breach, hybrid_alert
		FROM temperature_readings ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var out []models.StoredReading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Summary aggregates alert counts over the whole history.
func (s *ReadingStore) Summary(ctx context.Context) (models.ReadingSummary, error) {
	var sum models.ReadingSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(raw_anomaly), 0),
			COALESCE(SUM(persistence_alert), 0),
			COALESCE(SUM(bounds_breach), 0),
			COALESCE(SUM(hybrid_alert), 0)
		FROM temperature_readings`,
	).Scan(&sum.Total, &sum.RawAnomalies, &sum.PersistenceHits, &sum.BoundsBreaches, &sum.HybridAlerts)
	if err != nil {
		return sum, fmt.Errorf("summarize readings: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, recorded_at, temperature, reconstruction_error,
			raw_anomaly, persistence_alert, bounds_breach, hybrid_alert
		FROM temperature_readings ORDER BY id DESC LIMIT 1`)
	latest, err := scanReading(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return sum, err
	default:
		sum.Latest = &latest
	}
	return sum, nil
}

// DeleteOlderThan purges readings recorded before cutoff.
func (s *ReadingStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM temperature_readings WHERE recorded_at < ?", cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old readings: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (models.StoredReading, error) {
	var (
		r                            models.StoredReading
		raw, persistence, breach, hy int
	)
	err := row.Scan(&r.ID, &r.Timestamp, &r.Temperature, &r.ReconstructionError,
		&raw, &persistence, &breach, &hy)
	if errors.Is(err, sql.ErrNoRows) {
		return r, err
	}
	if err != nil {
		return r, fmt.Errorf("scan reading row: %w", err)
	}
	r.RawAnomaly = raw != 0
	r.PersistenceAlert = persistence != 0
	r.BoundsBreach = breach != 0
	r.HybridAlert = hy != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
