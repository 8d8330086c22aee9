package detector

import (
	"database/sql"

	"github.com/HerbHall/coldguard/pkg/plugin"
)

func migrations() []plugin.Migration {
	return []plugin.Migration{
		{
			Version:     1,
			Description: "create temperature_readings",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE IF NOT EXISTS temperature_readings (
						id                   INTEGER  PRIMARY KEY AUTOINCREMENT,
						recorded_at          DATETIME NOT NULL,
						temperature          REAL     NOT NULL,
						reconstruction_error REAL     NOT NULL,
						raw_anomaly          INTEGER  NOT NULL DEFAULT 0,
						persistence_alert    INTEGER  NOT NULL DEFAULT 0,
						bounds_breach        INTEGER  NOT NULL DEFAULT 0,
						hybrid_alert         INTEGER  NOT NULL DEFAULT 0
					)`,
					`CREATE INDEX IF NOT EXISTS idx_temperature_readings_recorded_at
						ON temperature_readings(recorded_at)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
