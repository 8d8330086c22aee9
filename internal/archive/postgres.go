package archive

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HerbHall/coldguard/pkg/models"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS temperature_readings (
	id                   BIGSERIAL PRIMARY KEY,
	event_id             UUID NOT NULL UNIQUE,
	sequence             BIGINT NOT NULL,
	evaluated_at         TIMESTAMPTZ NOT NULL,
	temperature          DOUBLE PRECISION NOT NULL,
	reconstruction_error DOUBLE PRECISION NOT NULL,
	raw_anomaly          BOOLEAN NOT NULL,
	persistence_alert    BOOLEAN NOT NULL,
	bounds_breach        BOOLEAN NOT NULL,
	hybrid_alert         BOOLEAN NOT NULL,
	archived_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_temperature_readings_evaluated_at
	ON temperature_readings (evaluated_at);
`

// Writer persists evaluated readings.
type Writer interface {
	Write(ctx context.Context, ev models.EvaluatedEvent) error
	Ping(ctx context.Context) error
	Close() error
}

// PostgresWriter appends readings to a Postgres table.
type PostgresWriter struct {
	db *sql.DB
}

// OpenPostgres connects to dsn, sizes the pool and creates the schema.
func OpenPostgres(ctx context.Context, cfg Config) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}
	return &PostgresWriter{db: db}, nil
}

// Write inserts one reading. Redelivered events are ignored.
func (w *PostgresWriter) Write(ctx context.Context, ev models.EvaluatedEvent) error {
	r := ev.Result
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO temperature_readings
			(event_id, sequence, evaluated_at, temperature, reconstruction_error,
			 raw_anomaly, persistence_alert, bounds_breach, hybrid_alert)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (event_id) DO NOTHING`,
		ev.ID, ev.Sequence, ev.EvaluatedAt, r.Temperature, r.ReconstructionError,
		r.RawAnomaly, r.PersistenceAlert, r.BoundsBreach, r.HybridAlert,
	)
	if err != nil {
		return fmt.Errorf("archive reading %s: %w", ev.ID, err)
	}
	return nil
}

// Count returns the number of archived readings.
func (w *PostgresWriter) Count(ctx context.Context) (int64, error) {
	var n int64
	err := w.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM temperature_readings").Scan(&n)
	return n, err
}

func (w *PostgresWriter) Ping(ctx context.Context) error { return w.db.PingContext(ctx) }

func (w *PostgresWriter) Close() error { return w.db.Close() }
