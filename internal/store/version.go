package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// ErrNewerSchema means the database was last written by a newer coldguard
// than the running binary.
var ErrNewerSchema = errors.New("database was created by a newer version of coldguard")

// devVersion is what unreleased builds report; it never blocks an open.
const devVersion = "dev"

// CheckVersion records the binary version in _schema_meta and refuses to
// continue when the database belongs to a newer release. The stored version
// only moves forward.
func (s *SQLiteStore) CheckVersion(ctx context.Context, current string) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS _schema_meta (
			id          INTEGER  PRIMARY KEY CHECK (id = 1),
			app_version TEXT     NOT NULL,
			updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("ensure schema meta table: %w", err)
	}

	stored, err := s.StoredVersion(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO _schema_meta (id, app_version, updated_at) VALUES (1, ?, CURRENT_TIMESTAMP)", current)
		if err != nil {
			return fmt.Errorf("insert schema version: %w", err)
		}
		return nil
	case err != nil:
		return err
	}

	if stored != devVersion && current != devVersion {
		switch semver.Compare(canonical(current), canonical(stored)) {
		case -1:
			return fmt.Errorf("%w: database=%s, binary=%s", ErrNewerSchema, stored, current)
		case 0:
			return nil
		}
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE _schema_meta SET app_version = ?, updated_at = CURRENT_TIMESTAMP WHERE id = 1", current); err != nil {
		return fmt.Errorf("update schema version: %w", err)
	}
	return nil
}

// StoredVersion returns the version recorded by the last CheckVersion.
// It returns sql.ErrNoRows on a database that has never been checked.
func (s *SQLiteStore) StoredVersion(ctx context.Context) (string, error) {
	var v string
	err := s.db.QueryRowContext(ctx, "SELECT app_version FROM _schema_meta WHERE id = 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("query schema version: %w", err)
	}
	return v, err
}

func canonical(v string) string {
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}
