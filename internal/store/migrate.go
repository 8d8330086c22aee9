package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/HerbHall/coldguard/pkg/plugin"
)

const migrationsDDL = `
CREATE TABLE IF NOT EXISTS _migrations (
	plugin_name TEXT     NOT NULL,
	version     INTEGER  NOT NULL,
	description TEXT     NOT NULL,
	applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (plugin_name, version)
)`

// Migrate applies the plugin's migrations whose versions are not yet in the
// _migrations ledger. Each migration commits on its own, so a failure keeps
// the ones before it. Migrations must be in ascending Version order.
func (s *SQLiteStore) Migrate(ctx context.Context, pluginName string, migrations []plugin.Migration) error {
	if s.readOnly {
		return fmt.Errorf("migrate %s: database opened read-only", pluginName)
	}
	var err error
	s.once.Do(func() { _, err = s.db.ExecContext(ctx, migrationsDDL) })
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	applied, err := s.appliedVersions(ctx, pluginName)
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := s.Tx(ctx, func(tx *sql.Tx) error { return record(ctx, tx, pluginName, m) }); err != nil {
			return fmt.Errorf("migration %s/%d (%s): %w", pluginName, m.Version, m.Description, err)
		}
	}
	return nil
}

func (s *SQLiteStore) appliedVersions(ctx context.Context, pluginName string) (map[int]bool, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM _migrations WHERE plugin_name = ?", pluginName)
	if err != nil {
		return nil, fmt.Errorf("list migrations for %s: %w", pluginName, err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		applied[v] = true
	}
	return applied, rows.Err()
}

func record(ctx context.Context, tx *sql.Tx, pluginName string, m plugin.Migration) error {
	if err := m.Up(tx); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		"INSERT INTO _migrations (plugin_name, version, description) VALUES (?, ?, ?)",
		pluginName, m.Version, m.Description,
	)
	return err
}
